package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Function owns its blocks (an arena indexed by BlockID, removed blocks
// leave nil) and its variable namespace.
type Function struct {
	Name     string
	Blocks   []*BasicBlock
	Order    []BlockID // layout order; Order[0] is the entry block
	Entry    BlockID
	Vars     []string
	Internal bool
	IsEntry  bool

	ctx      *Context
	varIndex map[string]Var
	labels   map[string]BlockID
	nextInst InstID
	nextTemp int
}

func NewFunction(name string) *Function {
	return &Function{
		Name:     name,
		Entry:    NoBlock,
		varIndex: make(map[string]Var),
		labels:   make(map[string]BlockID),
	}
}

// Context returns the owning context, or nil for a detached function
func (f *Function) Context() *Context { return f.ctx }

// NewVar creates a variable with a name unique in the function. If the
// name is taken a numeric suffix is appended.
func (f *Function) NewVar(name string) Var {
	if name == "" {
		return f.NewTemp()
	}
	if _, taken := f.varIndex[name]; taken {
		name = f.freshName(name, func(n string) bool { _, t := f.varIndex[n]; return t })
	}
	v := Var(len(f.Vars))
	f.Vars = append(f.Vars, name)
	f.varIndex[name] = v
	return v
}

// NewTemp creates an anonymous temporary printed as %N
func (f *Function) NewTemp() Var {
	for {
		f.nextTemp++
		name := strconv.Itoa(f.nextTemp)
		if _, taken := f.varIndex[name]; !taken {
			v := Var(len(f.Vars))
			f.Vars = append(f.Vars, name)
			f.varIndex[name] = v
			return v
		}
	}
}

// VarOrNew returns the variable with exactly this name, creating it if needed
func (f *Function) VarOrNew(name string) Var {
	if v, ok := f.varIndex[name]; ok {
		return v
	}
	return f.NewVar(name)
}

func (f *Function) LookupVar(name string) (Var, bool) {
	v, ok := f.varIndex[name]
	return v, ok
}

func (f *Function) VarName(v Var) string {
	if v < 0 || int(v) >= len(f.Vars) {
		return fmt.Sprintf("<var %d>", int(v))
	}
	return f.Vars[v]
}

// BaseName strips SSA version suffixes: "y:3" -> "y"
func BaseName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}

func (f *Function) freshName(base string, taken func(string) bool) string {
	for i := 1; ; i++ {
		cand := base + "." + strconv.Itoa(i)
		if !taken(cand) {
			return cand
		}
	}
}

// NewBlock appends a block to the arena and the layout order. Labels are
// made unique within the function.
func (f *Function) NewBlock(label string) *BasicBlock {
	if _, taken := f.labels[label]; taken || label == "" {
		if label == "" {
			label = "bb"
		}
		label = f.freshName(label, func(n string) bool { _, t := f.labels[n]; return t })
	}
	b := &BasicBlock{ID: BlockID(len(f.Blocks)), Label: label}
	f.Blocks = append(f.Blocks, b)
	f.Order = append(f.Order, b.ID)
	f.labels[label] = b.ID
	if f.Entry == NoBlock {
		f.Entry = b.ID
	}
	return b
}

// NewBlockAfter creates a block placed right after anchor in layout order
func (f *Function) NewBlockAfter(anchor BlockID, label string) *BasicBlock {
	b := f.NewBlock(label)
	f.Order = f.Order[:len(f.Order)-1]
	pos := len(f.Order)
	for i, id := range f.Order {
		if id == anchor {
			pos = i + 1
			break
		}
	}
	f.Order = append(f.Order, NoBlock)
	copy(f.Order[pos+1:], f.Order[pos:])
	f.Order[pos] = b.ID
	return b
}

// Block returns the live block with the given ID, or nil
func (f *Function) Block(id BlockID) *BasicBlock {
	if id < 0 || int(id) >= len(f.Blocks) {
		return nil
	}
	return f.Blocks[id]
}

func (f *Function) BlockByLabel(label string) *BasicBlock {
	id, ok := f.labels[label]
	if !ok {
		return nil
	}
	return f.Block(id)
}

func (f *Function) EntryBlock() *BasicBlock { return f.Block(f.Entry) }

// Layout returns live blocks in layout order
func (f *Function) Layout() []*BasicBlock {
	out := make([]*BasicBlock, 0, len(f.Order))
	for _, id := range f.Order {
		if b := f.Block(id); b != nil {
			out = append(out, b)
		}
	}
	return out
}

// NumBlocks counts live blocks
func (f *Function) NumBlocks() int { return len(f.Order) }

// LayoutIndex returns the position of a block in layout order, or -1
func (f *Function) LayoutIndex(id BlockID) int {
	for i, x := range f.Order {
		if x == id {
			return i
		}
	}
	return -1
}

// RemoveBlock drops a block from the arena and the layout. The caller is
// responsible for terminators and phis still naming it.
func (f *Function) RemoveBlock(id BlockID) {
	b := f.Block(id)
	if b == nil {
		return
	}
	delete(f.labels, b.Label)
	f.Blocks[id] = nil
	for i, x := range f.Order {
		if x == id {
			f.Order = append(f.Order[:i], f.Order[i+1:]...)
			break
		}
	}
}

// NewInst creates a detached instruction with a fresh ID
func (f *Function) NewInst(op Opcode, out Var, operands ...Operand) *Instruction {
	inst := &Instruction{ID: f.nextInst, Opcode: op, Operands: operands, Output: out, Block: NoBlock}
	f.nextInst++
	return inst
}

// Params returns the outputs of the entry block's param instructions in order
func (f *Function) Params() []Var {
	entry := f.EntryBlock()
	if entry == nil {
		return nil
	}
	var params []Var
	for _, inst := range entry.Instructions {
		if inst.Opcode == OpParam {
			params = append(params, inst.Output)
		}
	}
	return params
}

// InstCount counts instructions across live blocks
func (f *Function) InstCount() int {
	n := 0
	for _, b := range f.Layout() {
		n += len(b.Instructions)
	}
	return n
}

// Instructions calls fn for every instruction in layout order until it returns false
func (f *Function) Instructions(fn func(b *BasicBlock, inst *Instruction) bool) {
	for _, b := range f.Layout() {
		for _, inst := range b.Instructions {
			if !fn(b, inst) {
				return
			}
		}
	}
}

// RebuildCFG re-derives every block's Preds and Succs from the terminators
func (f *Function) RebuildCFG() {
	for _, b := range f.Layout() {
		b.Preds = b.Preds[:0]
		b.Succs = b.Succs[:0]
	}
	for _, b := range f.Layout() {
		b.Succs = DeriveSuccs(b)
		for _, s := range b.Succs {
			if sb := f.Block(s); sb != nil {
				sb.Preds = append(sb.Preds, b.ID)
			}
		}
	}
}

// DeriveSuccs returns the successor set implied by b's terminator,
// deduplicated, in operand order.
func DeriveSuccs(b *BasicBlock) []BlockID {
	t := b.Terminator()
	if t == nil {
		return nil
	}
	var succs []BlockID
	for _, id := range t.Targets() {
		dup := false
		for _, s := range succs {
			if s == id {
				dup = true
				break
			}
		}
		if !dup {
			succs = append(succs, id)
		}
	}
	return succs
}

// Clone deep-copies the function. Block, variable and instruction IDs are
// preserved.
func (f *Function) Clone() *Function {
	c := &Function{
		Name:     f.Name,
		Blocks:   make([]*BasicBlock, len(f.Blocks)),
		Order:    append([]BlockID(nil), f.Order...),
		Entry:    f.Entry,
		Vars:     append([]string(nil), f.Vars...),
		Internal: f.Internal,
		IsEntry:  f.IsEntry,
		varIndex: make(map[string]Var, len(f.varIndex)),
		labels:   make(map[string]BlockID, len(f.labels)),
		nextInst: f.nextInst,
		nextTemp: f.nextTemp,
	}
	for k, v := range f.varIndex {
		c.varIndex[k] = v
	}
	for k, v := range f.labels {
		c.labels[k] = v
	}
	for i, b := range f.Blocks {
		if b == nil {
			continue
		}
		nb := &BasicBlock{
			ID:    b.ID,
			Label: b.Label,
			Preds: append([]BlockID(nil), b.Preds...),
			Succs: append([]BlockID(nil), b.Succs...),
		}
		for _, inst := range b.Instructions {
			nb.Instructions = append(nb.Instructions, inst.clone())
		}
		c.Blocks[i] = nb
	}
	return c
}
