package passes

import (
	"fmt"
	"strings"

	"stackc/internal/analysis"
	"stackc/internal/ir"
)

// TailMerge merges structurally equal halting blocks that have no phis
// and no live-in variables
type TailMerge struct{}

func (TailMerge) Name() string { return "TailMerge" }

func (TailMerge) Requires() []analysis.Kind {
	return []analysis.Kind{analysis.KindCFG, analysis.KindLiveness}
}

func (TailMerge) RunsImmediatelyBefore() []string { return []string{"SimplifyCFG"} }

func (TailMerge) Run(fn *ir.Function, cache *analysis.Cache) (ir.Mutation, error) {
	live := cache.Liveness()
	canonical := map[string]ir.BlockID{}
	var merged []ir.BlockID

	for _, b := range fn.Layout() {
		if b.ID == fn.Entry || !b.IsHalting() || len(b.Phis()) > 0 || len(live.LiveIn(b.ID)) > 0 {
			continue
		}
		key, ok := tailKey(b)
		if !ok {
			continue
		}
		keep, seen := canonical[key]
		if !seen {
			canonical[key] = b.ID
			continue
		}
		for _, p := range b.Preds {
			fn.Block(p).Terminator().ReplaceLabel(b.ID, keep)
		}
		log.Debugf("%s: merged tail %s into %s", fn.Name, b.Label, fn.Block(keep).Label)
		merged = append(merged, b.ID)
	}
	if len(merged) == 0 {
		return ir.MutNone, nil
	}
	for _, id := range merged {
		fn.RemoveBlock(id)
	}
	fn.RebuildCFG()
	return ir.MutBlocks | ir.MutTerminators, nil
}

// tailKey spells a block with its local definitions numbered by position
func tailKey(b *ir.BasicBlock) (string, bool) {
	local := map[ir.Var]int{}
	var sb strings.Builder
	for i, inst := range b.Instructions {
		sb.WriteString(inst.Opcode.String())
		for _, op := range inst.Operands {
			if op.IsVar() {
				n, ok := local[op.Var]
				if !ok {
					return "", false
				}
				fmt.Fprintf(&sb, " d%d", n)
				continue
			}
			sb.WriteString(" " + operandKey(op))
		}
		if inst.Output != ir.NoVar {
			local[inst.Output] = i
			fmt.Fprintf(&sb, " -> d%d", i)
		}
		sb.WriteByte(';')
	}
	return sb.String(), true
}
