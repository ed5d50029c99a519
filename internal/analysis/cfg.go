package analysis

import (
	"stackc/internal/ir"
)

// CFG re-derives block edges from terminators and orders the reachable blocks
type CFG struct {
	fn        *ir.Function
	reachable []bool
	postorder []ir.BlockID
	rpo       []ir.BlockID
	rpoIndex  []int
}

func computeCFG(fn *ir.Function) *CFG {
	fn.RebuildCFG()
	c := &CFG{
		fn:        fn,
		reachable: make([]bool, len(fn.Blocks)),
		rpoIndex:  make([]int, len(fn.Blocks)),
	}
	for i := range c.rpoIndex {
		c.rpoIndex[i] = -1
	}
	if fn.EntryBlock() == nil {
		return c
	}

	// iterative DFS; a frame remembers the next successor to visit
	type frame struct {
		id   ir.BlockID
		next int
	}
	stack := []frame{{id: fn.Entry}}
	c.reachable[fn.Entry] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := fn.Block(top.id).Succs
		if top.next < len(succs) {
			s := succs[top.next]
			top.next++
			if !c.reachable[s] {
				c.reachable[s] = true
				stack = append(stack, frame{id: s})
			}
			continue
		}
		c.postorder = append(c.postorder, top.id)
		stack = stack[:len(stack)-1]
	}

	c.rpo = make([]ir.BlockID, len(c.postorder))
	for i, id := range c.postorder {
		j := len(c.postorder) - 1 - i
		c.rpo[j] = id
		c.rpoIndex[id] = j
	}
	return c
}

func (c *CFG) Reachable(id ir.BlockID) bool {
	return int(id) >= 0 && int(id) < len(c.reachable) && c.reachable[id]
}

func (c *CFG) Postorder() []ir.BlockID        { return c.postorder }
func (c *CFG) ReversePostorder() []ir.BlockID { return c.rpo }

// RPOIndex is the reverse-postorder number of a reachable block, else -1
func (c *CFG) RPOIndex(id ir.BlockID) int {
	if int(id) < 0 || int(id) >= len(c.rpoIndex) {
		return -1
	}
	return c.rpoIndex[id]
}

// Unreachable lists live blocks not reachable from the entry, in layout order
func (c *CFG) Unreachable() []ir.BlockID {
	var out []ir.BlockID
	for _, b := range c.fn.Layout() {
		if !c.Reachable(b.ID) {
			out = append(out, b.ID)
		}
	}
	return out
}

// IsBackEdge reports whether from -> to closes a cycle in RPO
func (c *CFG) IsBackEdge(from, to ir.BlockID) bool {
	return c.RPOIndex(to) >= 0 && c.RPOIndex(to) <= c.RPOIndex(from)
}
