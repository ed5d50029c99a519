package passes

import (
	"github.com/holiman/uint256"
	"stackc/internal/analysis"
	"stackc/internal/ir"
)

type latticeKind uint8

const (
	latTop latticeKind = iota // not yet known
	latConst
	latBottom // overdefined
)

type lattice struct {
	kind  latticeKind
	value uint256.Int
}

func meet(a, b lattice) lattice {
	switch {
	case a.kind == latTop:
		return b
	case b.kind == latTop:
		return a
	case a.kind == latBottom || b.kind == latBottom:
		return lattice{kind: latBottom}
	case a.value.Eq(&b.value):
		return a
	}
	return lattice{kind: latBottom}
}

type edge struct{ from, to ir.BlockID }

// SCCP is sparse conditional constant propagation. Constant values are
// substituted into their uses, branches on constants become jumps and
// blocks no executable edge reaches are removed.
type SCCP struct{}

func (SCCP) Name() string { return "SCCP" }

func (SCCP) Requires() []analysis.Kind {
	return []analysis.Kind{analysis.KindCFG, analysis.KindDFG}
}

func (SCCP) RunsAfter() []string { return []string{"MakeSSA"} }

func (SCCP) Run(fn *ir.Function, cache *analysis.Cache) (ir.Mutation, error) {
	s := &sccp{
		fn:         fn,
		dfg:        cache.DFG(),
		values:     map[ir.Var]lattice{},
		executable: map[edge]bool{},
		visited:    map[ir.BlockID]bool{},
	}
	s.solve()
	return s.rewrite(), nil
}

type sccp struct {
	fn         *ir.Function
	dfg        *analysis.DFG
	values     map[ir.Var]lattice
	executable map[edge]bool
	visited    map[ir.BlockID]bool
	flowWork   []edge
	ssaWork    []*ir.Instruction
}

func (s *sccp) solve() {
	s.flowWork = append(s.flowWork, edge{from: ir.NoBlock, to: s.fn.Entry})
	for len(s.flowWork) > 0 || len(s.ssaWork) > 0 {
		for len(s.flowWork) > 0 {
			e := s.flowWork[len(s.flowWork)-1]
			s.flowWork = s.flowWork[:len(s.flowWork)-1]
			if s.executable[e] {
				continue
			}
			s.executable[e] = true
			b := s.fn.Block(e.to)
			first := !s.visited[b.ID]
			s.visited[b.ID] = true
			for _, inst := range b.Instructions {
				if inst.IsPhi() || first {
					s.visit(inst)
				}
			}
		}
		for len(s.ssaWork) > 0 {
			inst := s.ssaWork[len(s.ssaWork)-1]
			s.ssaWork = s.ssaWork[:len(s.ssaWork)-1]
			if s.visited[inst.Block] {
				s.visit(inst)
			}
		}
	}
}

func (s *sccp) operand(op ir.Operand) lattice {
	if op.IsLiteral() {
		return lattice{kind: latConst, value: op.Lit}
	}
	if s.dfg.Def(op.Var) == nil {
		return lattice{kind: latBottom}
	}
	return s.values[op.Var]
}

func (s *sccp) set(v ir.Var, val lattice) {
	old := s.values[v]
	if old.kind == val.kind && (val.kind != latConst || old.value.Eq(&val.value)) {
		return
	}
	s.values[v] = val
	s.ssaWork = append(s.ssaWork, s.dfg.Uses(v)...)
}

func (s *sccp) visit(inst *ir.Instruction) {
	if inst.IsTerminator() {
		s.visitTerminator(inst)
		return
	}
	if inst.Output == ir.NoVar {
		return
	}
	s.set(inst.Output, s.evaluate(inst))
}

func (s *sccp) evaluate(inst *ir.Instruction) lattice {
	switch {
	case inst.IsPhi():
		val := lattice{kind: latTop}
		for _, e := range inst.PhiEdges() {
			if s.executable[edge{from: e.Pred, to: inst.Block}] {
				val = meet(val, s.operand(ir.VarOp(e.Value)))
			}
		}
		return val
	case inst.Opcode == ir.OpDataload:
		ctx := s.fn.Context()
		if ctx != nil && ctx.IsFrozen() {
			if w, ok := ctx.Data(inst.Symbol()); ok {
				return lattice{kind: latConst, value: w}
			}
		}
		return lattice{kind: latBottom}
	case inst.Opcode != ir.OpAssign && !inst.Opcode.IsPure():
		return lattice{kind: latBottom}
	}

	args := make([]*uint256.Int, 0, len(inst.Operands))
	for _, op := range inst.Operands {
		val := s.operand(op)
		switch val.kind {
		case latTop:
			return val
		case latBottom:
			return val
		}
		w := val.value
		args = append(args, &w)
	}
	out, ok := fold(inst.Opcode, args)
	if !ok {
		return lattice{kind: latBottom}
	}
	return lattice{kind: latConst, value: *out}
}

func (s *sccp) visitTerminator(inst *ir.Instruction) {
	targets := inst.Targets()
	if inst.Opcode == ir.OpJnz {
		cond := s.operand(inst.Operands[0])
		switch cond.kind {
		case latTop:
			return
		case latConst:
			if cond.value.IsZero() {
				targets = targets[1:2]
			} else {
				targets = targets[0:1]
			}
		}
	}
	for _, t := range targets {
		s.flowWork = append(s.flowWork, edge{from: inst.Block, to: t})
	}
}

func (s *sccp) rewrite() ir.Mutation {
	mut := ir.MutNone

	for _, v := range sortedLatticeVars(s.values) {
		val := s.values[v]
		if val.kind != latConst {
			continue
		}
		def := s.dfg.Def(v)
		if def == nil || !s.visited[def.Block] {
			continue
		}
		lit := ir.WordOp(&val.value)
		if n, _ := replaceUses(s.fn, v, lit); n > 0 {
			mut |= ir.MutOperands
		}
		if def.Opcode == ir.OpAssign && def.Operands[0].Same(lit) {
			continue
		}
		def.MakeAssign(lit)
		mut |= ir.MutInstructions
		if b := s.fn.Block(def.Block); b != nil {
			regroupPhis(b)
		}
	}

	for _, b := range s.fn.Layout() {
		t := b.Terminator()
		if t == nil || t.Opcode != ir.OpJnz || !s.visited[b.ID] {
			continue
		}
		cond := s.operand(t.Operands[0])
		if cond.kind != latConst {
			continue
		}
		targets := t.Targets()
		keep, drop := targets[0], targets[1]
		if cond.value.IsZero() {
			keep, drop = drop, keep
		}
		t.Opcode = ir.OpJmp
		t.Operands = []ir.Operand{ir.LabelOp(keep)}
		dropEdge(s.fn, b.ID, drop)
		mut |= ir.MutTerminators
	}

	if removeUnreachable(s.fn, func(id ir.BlockID) bool { return s.visited[id] }) {
		mut |= ir.MutBlocks | ir.MutTerminators
	}
	s.fn.RebuildCFG()
	if collapsePhis(s.fn) {
		mut |= ir.MutInstructions
	}
	return mut
}

func sortedLatticeVars(m map[ir.Var]lattice) []ir.Var {
	set := make(map[ir.Var]bool, len(m))
	for v := range m {
		set[v] = true
	}
	return sortedVars(set)
}
