package analysis

import (
	"sort"

	"stackc/internal/ir"
)

// VarSet is a set of variables
type VarSet map[ir.Var]struct{}

func (s VarSet) Has(v ir.Var) bool { _, ok := s[v]; return ok }
func (s VarSet) Add(v ir.Var)      { s[v] = struct{}{} }
func (s VarSet) Remove(v ir.Var)   { delete(s, v) }

func (s VarSet) Clone() VarSet {
	c := make(VarSet, len(s))
	for v := range s {
		c[v] = struct{}{}
	}
	return c
}

func (s VarSet) Equal(o VarSet) bool {
	if len(s) != len(o) {
		return false
	}
	for v := range s {
		if !o.Has(v) {
			return false
		}
	}
	return true
}

// Sorted returns the members in ascending order
func (s VarSet) Sorted() []ir.Var {
	out := make([]ir.Var, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Liveness holds live-in and live-out sets per block. Live-in excludes the
// block's own phi outputs; a phi operand is live-out only on the edge
// from its predecessor.
type Liveness struct {
	fn      *ir.Function
	liveIn  []VarSet
	liveOut []VarSet
	after   map[ir.BlockID][]VarSet
}

func computeLiveness(fn *ir.Function, cfg *CFG) *Liveness {
	n := len(fn.Blocks)
	l := &Liveness{
		fn:      fn,
		liveIn:  make([]VarSet, n),
		liveOut: make([]VarSet, n),
		after:   make(map[ir.BlockID][]VarSet),
	}
	for _, b := range fn.Layout() {
		l.liveIn[b.ID] = VarSet{}
		l.liveOut[b.ID] = VarSet{}
	}

	// postorder first converges fastest for a backward problem; unreachable
	// blocks follow so they still get sets
	work := append([]ir.BlockID(nil), cfg.Postorder()...)
	work = append(work, cfg.Unreachable()...)
	queued := make([]bool, n)
	for _, id := range work {
		queued[id] = true
	}
	for len(work) > 0 {
		id := work[0]
		work = work[1:]
		queued[id] = false
		b := fn.Block(id)

		out := VarSet{}
		for _, s := range b.Succs {
			sb := fn.Block(s)
			for v := range l.liveIn[s] {
				out.Add(v)
			}
			for _, phi := range sb.Phis() {
				if v := phi.PhiValue(id); v != ir.NoVar {
					out.Add(v)
				}
			}
		}
		l.liveOut[id] = out

		in := transfer(b, out.Clone(), 0)
		if !in.Equal(l.liveIn[id]) {
			l.liveIn[id] = in
			for _, p := range b.Preds {
				if !queued[p] && fn.Block(p) != nil {
					queued[p] = true
					work = append(work, p)
				}
			}
		}
	}
	return l
}

// transfer walks b backwards from live (the set after the last
// instruction) down to instruction from, updating live in place.
// Phi outputs are removed; phi operands are not added.
func transfer(b *ir.BasicBlock, live VarSet, from int) VarSet {
	for i := len(b.Instructions) - 1; i >= from; i-- {
		inst := b.Instructions[i]
		if inst.Output != ir.NoVar {
			live.Remove(inst.Output)
		}
		if inst.IsPhi() {
			continue
		}
		for _, v := range inst.Inputs() {
			live.Add(v)
		}
	}
	return live
}

func (l *Liveness) LiveIn(b ir.BlockID) VarSet  { return l.liveIn[b] }
func (l *Liveness) LiveOut(b ir.BlockID) VarSet { return l.liveOut[b] }

// LiveAfter returns the variables live immediately after instruction idx of
// block b. The result must not be modified.
func (l *Liveness) LiveAfter(b ir.BlockID, idx int) VarSet {
	sets, ok := l.after[b]
	if !ok {
		sets = l.computeAfter(b)
		l.after[b] = sets
	}
	return sets[idx]
}

func (l *Liveness) computeAfter(id ir.BlockID) []VarSet {
	b := l.fn.Block(id)
	sets := make([]VarSet, len(b.Instructions))
	live := l.liveOut[id].Clone()
	for i := len(b.Instructions) - 1; i >= 0; i-- {
		sets[i] = live.Clone()
		inst := b.Instructions[i]
		if inst.Output != ir.NoVar {
			live.Remove(inst.Output)
		}
		if !inst.IsPhi() {
			for _, v := range inst.Inputs() {
				live.Add(v)
			}
		}
	}
	return sets
}

// IsLiveAfter reports whether v is still needed after instruction idx
func (l *Liveness) IsLiveAfter(v ir.Var, b ir.BlockID, idx int) bool {
	return l.LiveAfter(b, idx).Has(v)
}
