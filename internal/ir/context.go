package ir

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Context owns every function of a compilation unit and the shared
// constant table. After Freeze the table is read-only and safe for
// concurrent readers without locking.
type Context struct {
	Functions []*Function
	Entry     string

	data      map[string]uint256.Int
	dataOrder []string
	frozen    bool
}

func NewContext() *Context {
	return &Context{data: make(map[string]uint256.Int)}
}

func (c *Context) AddFunction(fn *Function) error {
	if c.Function(fn.Name) != nil {
		return fmt.Errorf("duplicate function %q", fn.Name)
	}
	fn.ctx = c
	c.Functions = append(c.Functions, fn)
	if fn.IsEntry {
		c.Entry = fn.Name
	}
	return nil
}

func (c *Context) Function(name string) *Function {
	for _, fn := range c.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

func (c *Context) EntryFunction() *Function { return c.Function(c.Entry) }

func (c *Context) RemoveFunction(name string) {
	for i, fn := range c.Functions {
		if fn.Name == name {
			fn.ctx = nil
			c.Functions = append(c.Functions[:i], c.Functions[i+1:]...)
			return
		}
	}
}

// SetData declares or overwrites a constant. It fails once the table is frozen.
func (c *Context) SetData(name string, value *uint256.Int) error {
	if c.frozen {
		return fmt.Errorf("constant table is frozen: cannot set %q", name)
	}
	if _, exists := c.data[name]; !exists {
		c.dataOrder = append(c.dataOrder, name)
	}
	c.data[name] = *value
	return nil
}

// Data looks up a constant
func (c *Context) Data(name string) (uint256.Int, bool) {
	v, ok := c.data[name]
	return v, ok
}

// DataNames lists constants in declaration order
func (c *Context) DataNames() []string { return c.dataOrder }

// Freeze makes the constant table immutable
func (c *Context) Freeze()        { c.frozen = true }
func (c *Context) IsFrozen() bool { return c.frozen }

// Clone deep-copies the context; the copy is not frozen
func (c *Context) Clone() *Context {
	n := NewContext()
	n.Entry = c.Entry
	for _, name := range c.dataOrder {
		v := c.data[name]
		_ = n.SetData(name, &v)
	}
	for _, fn := range c.Functions {
		cp := fn.Clone()
		cp.ctx = n
		n.Functions = append(n.Functions, cp)
	}
	return n
}
