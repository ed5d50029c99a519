package passes

import (
	"stackc/internal/ir"
)

// replaceUses rewrites every use of from in fn. Phi operands only accept
// variables, so a literal replacement leaves phi uses in place; the
// second result reports whether any use remains.
func replaceUses(fn *ir.Function, from ir.Var, to ir.Operand) (int, bool) {
	n := 0
	remaining := false
	fn.Instructions(func(_ *ir.BasicBlock, inst *ir.Instruction) bool {
		if inst.IsPhi() && !to.IsVar() {
			if inst.Uses(from) {
				remaining = true
			}
			return true
		}
		n += inst.ReplaceUses(from, to)
		return true
	})
	return n, remaining
}

// removeUnreachable drops every block the entry cannot reach, cleaning up
// the phis of surviving successors
func removeUnreachable(fn *ir.Function, reachable func(ir.BlockID) bool) bool {
	var dead []ir.BlockID
	for _, b := range fn.Layout() {
		if !reachable(b.ID) {
			dead = append(dead, b.ID)
		}
	}
	if len(dead) == 0 {
		return false
	}
	for _, id := range dead {
		for _, s := range ir.DeriveSuccs(fn.Block(id)) {
			if sb := fn.Block(s); sb != nil && reachable(s) {
				sb.RemovePhiEdge(id)
			}
		}
	}
	for _, id := range dead {
		fn.RemoveBlock(id)
	}
	fn.RebuildCFG()
	return true
}

// dropEdge removes the phi inputs flowing along from→to after a
// terminator stopped naming to
func dropEdge(fn *ir.Function, from, to ir.BlockID) {
	for _, s := range ir.DeriveSuccs(fn.Block(from)) {
		if s == to {
			return
		}
	}
	if tb := fn.Block(to); tb != nil {
		tb.RemovePhiEdge(from)
	}
}

// collapsePhis turns phis with a single incoming value into assigns and
// moves them behind the remaining phis
func collapsePhis(fn *ir.Function) bool {
	changed := false
	for _, b := range fn.Layout() {
		collapsed := false
		for _, phi := range b.Phis() {
			edges := phi.PhiEdges()
			if len(edges) == 0 {
				continue
			}
			v := edges[0].Value
			same := true
			for _, e := range edges[1:] {
				if e.Value != v {
					same = false
					break
				}
			}
			if same {
				phi.MakeAssign(ir.VarOp(v))
				collapsed = true
			}
		}
		if collapsed {
			regroupPhis(b)
			changed = true
		}
	}
	return changed
}

// regroupPhis moves phis to the front of b, preserving relative order
func regroupPhis(b *ir.BasicBlock) {
	out := make([]*ir.Instruction, 0, len(b.Instructions))
	for _, inst := range b.Instructions {
		if inst.IsPhi() {
			out = append(out, inst)
		}
	}
	for _, inst := range b.Instructions {
		if !inst.IsPhi() {
			out = append(out, inst)
		}
	}
	b.Instructions = out
}
