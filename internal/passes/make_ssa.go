package passes

import (
	"fmt"
	"sort"

	"stackc/internal/analysis"
	"stackc/internal/errors"
	"stackc/internal/ir"
)

// MakeSSA converts multiply-assigned variables to SSA form. Phis are
// placed at the iterated dominance frontier of the defining blocks where
// the variable is live-in, and every definition gets a fresh name:N.
type MakeSSA struct{}

func (MakeSSA) Name() string { return "MakeSSA" }

func (MakeSSA) Requires() []analysis.Kind {
	return []analysis.Kind{analysis.KindCFG, analysis.KindDFG}
}

func (MakeSSA) Run(fn *ir.Function, cache *analysis.Cache) (ir.Mutation, error) {
	if len(cache.DFG().MultiplyDefined()) == 0 {
		return ir.MutNone, nil
	}

	mut := ir.MutInstructions | ir.MutOperands
	cfg := cache.CFG()
	if removeUnreachable(fn, cfg.Reachable) {
		mut |= ir.MutBlocks | ir.MutTerminators
		cache.Invalidate(ir.MutAll)
	}

	dfg := cache.DFG()
	dom := cache.Dominators()
	live := cache.Liveness()

	renamed := map[ir.Var]bool{}
	for _, v := range dfg.MultiplyDefined() {
		renamed[v] = true
	}

	s := &ssaBuilder{fn: fn, dom: dom, renamed: renamed, stacks: map[ir.Var][]ir.Var{}, counter: map[string]int{}}
	s.placePhis(dfg, live)
	if err := s.rename(); err != nil {
		return mut, err
	}
	removeTrivialPhis(fn)
	fn.RebuildCFG()
	return mut, nil
}

type ssaBuilder struct {
	fn      *ir.Function
	dom     *analysis.Dominators
	renamed map[ir.Var]bool
	stacks  map[ir.Var][]ir.Var
	counter map[string]int
}

func (s *ssaBuilder) placePhis(dfg *analysis.DFG, live *analysis.Liveness) {
	for _, v := range sortedVars(s.renamed) {
		var defBlocks []ir.BlockID
		seen := map[ir.BlockID]bool{}
		for _, def := range dfg.Defs(v) {
			if !seen[def.Block] {
				seen[def.Block] = true
				defBlocks = append(defBlocks, def.Block)
			}
		}
		for _, id := range s.dom.IteratedFrontier(defBlocks) {
			if !live.LiveIn(id).Has(v) {
				continue
			}
			b := s.fn.Block(id)
			edges := make([]ir.PhiEdge, 0, len(b.Preds))
			for _, p := range b.Preds {
				edges = append(edges, ir.PhiEdge{Pred: p, Value: v})
			}
			phi := s.fn.NewInst(ir.OpPhi, v)
			phi.SetPhiEdges(edges)
			b.Insert(0, phi)
		}
	}
}

func (s *ssaBuilder) fresh(v ir.Var) ir.Var {
	base := ir.BaseName(s.fn.VarName(v))
	s.counter[base]++
	return s.fn.NewVar(fmt.Sprintf("%s:%d", base, s.counter[base]))
}

func (s *ssaBuilder) top(v ir.Var) (ir.Var, bool) {
	st := s.stacks[v]
	if len(st) == 0 {
		return ir.NoVar, false
	}
	return st[len(st)-1], true
}

// rename walks the dominator tree with an explicit stack
func (s *ssaBuilder) rename() error {
	type frame struct {
		id     ir.BlockID
		pushed []ir.Var
		child  int
		done   bool
	}
	stack := []*frame{{id: s.fn.Entry}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if !f.done {
			f.done = true
			pushed, err := s.renameBlock(s.fn.Block(f.id))
			if err != nil {
				return err
			}
			f.pushed = pushed
		}
		children := s.dom.Children(f.id)
		if f.child < len(children) {
			stack = append(stack, &frame{id: children[f.child]})
			f.child++
			continue
		}
		for _, v := range f.pushed {
			s.stacks[v] = s.stacks[v][:len(s.stacks[v])-1]
		}
		stack = stack[:len(stack)-1]
	}
	return nil
}

func (s *ssaBuilder) renameBlock(b *ir.BasicBlock) ([]ir.Var, error) {
	var pushed []ir.Var
	for i, inst := range b.Instructions {
		if !inst.IsPhi() {
			for j, op := range inst.Operands {
				if !op.IsVar() || !s.renamed[op.Var] {
					continue
				}
				cur, ok := s.top(op.Var)
				if !ok {
					return nil, errors.NewInvariant(errors.ErrorSSAViolation, ir.Coordinates(s.fn, b, i),
						"%%%s is used with no reaching definition", s.fn.VarName(op.Var))
				}
				inst.Operands[j] = ir.VarOp(cur)
			}
		}
		if inst.Output != ir.NoVar && s.renamed[inst.Output] {
			orig := inst.Output
			inst.Output = s.fresh(orig)
			s.stacks[orig] = append(s.stacks[orig], inst.Output)
			pushed = append(pushed, orig)
		}
	}

	for _, succ := range b.Succs {
		sb := s.fn.Block(succ)
		for _, phi := range sb.Phis() {
			for j := 0; j+1 < len(phi.Operands); j += 2 {
				if phi.Operands[j].Block != b.ID {
					continue
				}
				v := phi.Operands[j+1].Var
				if !s.renamed[v] {
					continue
				}
				cur, ok := s.top(v)
				if !ok {
					return nil, errors.NewInvariant(errors.ErrorSSAViolation, ir.CoordinatesOf(s.fn, phi),
						"%%%s has no definition reaching the edge from %s", s.fn.VarName(v), b.Label)
				}
				phi.Operands[j+1] = ir.VarOp(cur)
			}
		}
	}
	return pushed, nil
}

// removeTrivialPhis deletes phis whose inputs are all one value (or the
// phi itself) and forwards their uses
func removeTrivialPhis(fn *ir.Function) bool {
	changed := false
	for progress := true; progress; {
		progress = false
		for _, b := range fn.Layout() {
			for _, phi := range append([]*ir.Instruction(nil), b.Phis()...) {
				same := ir.NoVar
				trivial := true
				for _, e := range phi.PhiEdges() {
					if e.Value == phi.Output || e.Value == same {
						continue
					}
					if same != ir.NoVar {
						trivial = false
						break
					}
					same = e.Value
				}
				if !trivial || same == ir.NoVar {
					continue
				}
				b.Remove(phi)
				replaceUses(fn, phi.Output, ir.VarOp(same))
				progress = true
				changed = true
			}
		}
	}
	return changed
}

func sortedVars(set map[ir.Var]bool) []ir.Var {
	out := make([]ir.Var, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
