package stackify

import (
	"github.com/tliron/commonlog"
	"stackc/internal/analysis"
	"stackc/internal/errors"
	"stackc/internal/ir"
)

var log = commonlog.GetLogger("stackc.stackify")

const (
	DefaultReach = 16
	DefaultLimit = 1024
)

type Options struct {
	// Reach is the deepest slot DUP and SWAP can address
	Reach int
	// Limit is the maximum stack height
	Limit int
}

func (o Options) withDefaults() Options {
	if o.Reach <= 0 {
		o.Reach = DefaultReach
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	return o
}

type emitter struct {
	machine
	live    *analysis.Liveness
	layouts map[ir.BlockID][]ir.Var
}

// Emit schedules a normalized SSA function. Blocks are emitted in reverse
// postorder; a block with one predecessor starts with the layout its
// predecessor left, a merge block with the layout fixed by whichever
// predecessor was emitted first.
//
// When several copies of a value are available the shallowest is used,
// and permutations settle the deepest slot first.
func Emit(fn *ir.Function, opts Options) (*Function, error) {
	opts = opts.withDefaults()
	if err := ir.VerifyNormalized(fn); err != nil {
		return nil, err
	}
	cache := analysis.NewCache(fn)
	cfg := cache.CFG()
	for _, id := range cfg.ReversePostorder() {
		b := fn.Block(id)
		if len(b.Phis()) > 0 && len(b.Preds) < 2 {
			return nil, errors.NewInvariant(errors.ErrorNotNormalized, ir.Coordinates(fn, b, 0),
				"phi in a block with a single predecessor")
		}
	}

	e := &emitter{
		machine: machine{fn: fn, reach: opts.Reach, limit: opts.Limit},
		live:    cache.Liveness(),
		layouts: map[ir.BlockID][]ir.Var{},
	}
	entry := fn.Params()
	layout := make([]ir.Var, len(entry))
	for i, p := range entry {
		layout[len(entry)-1-i] = p
	}
	e.layouts[fn.Entry] = layout

	out := &Function{Name: fn.Name, fn: fn}
	for _, id := range cfg.ReversePostorder() {
		seg, err := e.emitBlock(fn.Block(id))
		if err != nil {
			return nil, err
		}
		out.Segments = append(out.Segments, seg)
	}
	ops, pushes, dups, swaps, pops := out.Counts()
	log.Debugf("%s: %d ops, %d pushes, %d dups, %d swaps, %d pops", fn.Name, ops, pushes, dups, swaps, pops)
	return out, nil
}

func (e *emitter) emitBlock(b *ir.BasicBlock) (*Segment, error) {
	entry, ok := e.layouts[b.ID]
	if !ok {
		return nil, errors.NewInvariant(errors.ErrorMalformedIR, ir.Coordinates(e.fn, b, -1),
			"no predecessor of %s was scheduled before it", b.Label)
	}
	seg := &Segment{Label: b.Label, Block: b.ID, Entry: entry}
	e.slots = e.slots[:0]
	for _, v := range entry {
		e.slots = append(e.slots, varValue(v))
	}
	e.items = nil

	start := 0
	for start < len(b.Instructions) {
		op := b.Instructions[start].Opcode
		if op != ir.OpPhi && !(op == ir.OpParam && b.ID == e.fn.Entry) {
			break
		}
		start++
	}
	e.at = ir.Coordinates(e.fn, b, start)
	if start > 0 {
		e.popDead(e.live.LiveAfter(b.ID, start-1))
	} else {
		e.popDead(e.live.LiveIn(b.ID))
	}

	for idx := start; idx < len(b.Instructions); idx++ {
		inst := b.Instructions[idx]
		e.at = ir.Coordinates(e.fn, b, idx)
		after := e.live.LiveAfter(b.ID, idx)

		var err error
		switch {
		case inst.Opcode == ir.OpPhi || inst.Opcode == ir.OpParam:
			err = errors.NewInvariant(errors.ErrorMalformedIR, e.at, "%s is not at the start of its block", inst.Opcode)
		case inst.IsTerminator():
			err = e.emitTerminator(b, inst, after)
		case inst.Opcode == ir.OpAssign:
			err = e.emitAssign(inst, after)
		default:
			ops := inst.StackOperands()
			if err = e.placeOperands(ops, after); err == nil {
				err = e.op(inst, nil, len(ops))
			}
		}
		if err != nil {
			return nil, err
		}
		if !inst.IsTerminator() {
			e.popDead(after)
		}
	}
	seg.Items = e.items
	return seg, nil
}

// surplus reports whether the slot at depth d can go: literals, dead
// variables, and copies of a variable that also sits deeper
func (e *emitter) surplus(d int, live analysis.VarSet) bool {
	v := e.peek(d)
	if v.isLiteral() || !live.Has(v.v) {
		return true
	}
	for deeper := d + 1; deeper < e.size(); deeper++ {
		if e.peek(deeper) == v {
			return true
		}
	}
	return false
}

// popDead removes surplus slots within reach, shallowest first. Slots out
// of reach stay; a later reconciliation reports them.
func (e *emitter) popDead(live analysis.VarSet) {
	for {
		found := -1
		for d := 0; d < e.size() && d <= e.reach; d++ {
			if e.surplus(d, live) {
				found = d
				break
			}
		}
		if found < 0 {
			return
		}
		// found is within reach, so this cannot fail
		_ = e.removeAt(found)
	}
}

// placeOperands leaves ops on top of the stack, operand 0 on top. Values
// live afterwards or repeated among ops are duplicated; the rest move.
func (e *emitter) placeOperands(ops []ir.Operand, after analysis.VarSet) error {
	need := map[value]int{}
	for _, op := range ops {
		if op.IsVar() {
			need[operandValue(op)]++
		}
	}
	missing := map[value]int{}
	for v, n := range need {
		if after.Has(v.v) {
			n++
		}
		have := e.count(v)
		if have == 0 {
			return errors.NewInvariant(errors.ErrorMalformedIR, e.at, "%s is not on the stack", e.name(v))
		}
		if n > have {
			missing[v] = n - have
		}
	}

	for j := len(ops) - 1; j >= 0; j-- {
		v := operandValue(ops[j])
		if v.isLiteral() {
			if err := e.push(v.lit); err != nil {
				return err
			}
			continue
		}
		if missing[v] > 0 {
			if err := e.dup(e.find(v, nil)); err != nil {
				return err
			}
			missing[v]--
		}
	}

	k := len(ops)
	for i := k - 1; i >= 0; i-- {
		want := operandValue(ops[i])
		if e.peek(i) == want {
			continue
		}
		d := e.find(want, func(d int) bool { return d > i && d < k })
		if err := e.swap(d); err != nil {
			return err
		}
		if err := e.swap(i); err != nil {
			return err
		}
	}
	return nil
}

// emitAssign renames a slot instead of emitting code. A source that is
// still needed is duplicated first.
func (e *emitter) emitAssign(inst *ir.Instruction, after analysis.VarSet) error {
	src := inst.Operands[0]
	if src.IsLiteral() {
		if err := e.push(src.Lit); err != nil {
			return err
		}
		e.set(0, varValue(inst.Output))
		return nil
	}
	v := varValue(src.Var)
	d := e.find(v, nil)
	if d < 0 {
		return errors.NewInvariant(errors.ErrorMalformedIR, e.at, "%s is not on the stack", e.name(v))
	}
	if after.Has(src.Var) {
		if err := e.dup(d); err != nil {
			return err
		}
		d = 0
	}
	e.set(d, varValue(inst.Output))
	return nil
}

func (e *emitter) emitTerminator(b *ir.BasicBlock, inst *ir.Instruction, after analysis.VarSet) error {
	targets := inst.Targets()
	labels := make([]string, len(targets))
	for i, t := range targets {
		labels[i] = e.fn.Block(t).Label
	}
	ops := inst.StackOperands()

	switch inst.Opcode {
	case ir.OpJmp:
		s := e.fn.Block(targets[0])
		if len(s.Preds) > 1 {
			if err := e.reconcile(b, s); err != nil {
				return err
			}
			return e.op(inst, labels, 0)
		}
		if err := e.op(inst, labels, 0); err != nil {
			return err
		}
		e.layouts[s.ID] = e.vars()
		return nil

	case ir.OpJnz, ir.OpDjmp:
		if err := e.placeOperands(ops, after); err != nil {
			return err
		}
		if err := e.op(inst, labels, len(ops)); err != nil {
			return err
		}
		for _, t := range ir.DeriveSuccs(b) {
			e.layouts[t] = e.vars()
		}
		return nil

	case ir.OpRet:
		if err := e.placeOperands(ops, after); err != nil {
			return err
		}
		if extra := e.size() - len(ops); extra > 0 {
			deepest := e.peek(e.size() - 1)
			return e.tooDeep(deepest, e.size()-1, e.reach)
		}
		return e.op(inst, labels, len(ops))
	}

	if err := e.placeOperands(ops, after); err != nil {
		return err
	}
	return e.op(inst, labels, len(ops))
}

// livePhis returns the phis of s whose output is used
func (e *emitter) livePhis(s *ir.BasicBlock) []*ir.Instruction {
	phis := s.Phis()
	if len(phis) == 0 {
		return nil
	}
	used := e.live.LiveAfter(s.ID, len(phis)-1)
	var out []*ir.Instruction
	for _, phi := range phis {
		if used.Has(phi.Output) {
			out = append(out, phi)
		}
	}
	return out
}

// joinLayout fixes the entry layout of merge block s from the stack at the
// end of its first scheduled predecessor p. Slots keep their current order;
// a phi output takes the slot of its incoming value.
func (e *emitter) joinLayout(p, s *ir.BasicBlock) []ir.Var {
	liveIn := e.live.LiveIn(s.ID)
	phis := e.livePhis(s)
	claimedVar := map[ir.Var]bool{}
	claimedPhi := map[*ir.Instruction]bool{}

	var layout []ir.Var
	for _, slot := range e.slots {
		if slot.isLiteral() {
			continue
		}
		if liveIn.Has(slot.v) && !claimedVar[slot.v] {
			claimedVar[slot.v] = true
			layout = append(layout, slot.v)
			continue
		}
		for _, phi := range phis {
			if !claimedPhi[phi] && phi.PhiValue(p.ID) == slot.v {
				claimedPhi[phi] = true
				layout = append(layout, phi.Output)
				break
			}
		}
	}
	for _, v := range liveIn.Sorted() {
		if !claimedVar[v] {
			layout = append(layout, v)
		}
	}
	for _, phi := range phis {
		if !claimedPhi[phi] {
			layout = append(layout, phi.Output)
		}
	}
	return layout
}

// reconcile reshapes the stack at the end of p into the entry layout of
// merge block s: surplus slots are popped, missing copies duplicated and
// the result permuted deepest slot first
func (e *emitter) reconcile(p, s *ir.BasicBlock) error {
	layout, fixed := e.layouts[s.ID]
	if !fixed {
		layout = e.joinLayout(p, s)
		e.layouts[s.ID] = layout
	}

	phiSource := map[ir.Var]ir.Var{}
	for _, phi := range s.Phis() {
		phiSource[phi.Output] = phi.PhiValue(p.ID)
	}
	target := make([]value, len(layout))
	want := map[value]int{}
	for i, v := range layout {
		if src, ok := phiSource[v]; ok {
			v = src
		}
		target[i] = varValue(v)
		want[target[i]]++
	}

	for {
		found := -1
		for d := 0; d < e.size(); d++ {
			v := e.peek(d)
			if v.isLiteral() || e.count(v) > want[v] {
				found = d
				break
			}
		}
		if found < 0 {
			break
		}
		if err := e.removeAt(found); err != nil {
			return err
		}
	}

	for _, v := range target {
		for e.count(v) < want[v] {
			d := e.find(v, nil)
			if d < 0 {
				return errors.NewInvariant(errors.ErrorMalformedIR, e.at,
					"%s is live into %s but not on the stack", e.name(v), s.Label)
			}
			if err := e.dup(d); err != nil {
				return err
			}
		}
	}

	n := len(target)
	for i := n - 1; i >= 0; i-- {
		v := target[n-1-i]
		if e.peek(i) == v {
			continue
		}
		d := e.find(v, func(d int) bool { return d >= i })
		if err := e.swap(d); err != nil {
			return err
		}
		if err := e.swap(i); err != nil {
			return err
		}
	}
	return nil
}
