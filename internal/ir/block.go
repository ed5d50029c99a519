package ir

// BasicBlock is a straight-line instruction sequence ending in exactly one
// terminator. Preds and Succs are derived from terminators by RebuildCFG.
type BasicBlock struct {
	ID           BlockID
	Label        string
	Instructions []*Instruction
	Preds        []BlockID
	Succs        []BlockID
}

// Terminator returns the last instruction if it is a terminator
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	last := b.Instructions[len(b.Instructions)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

func (b *BasicBlock) IsTerminated() bool { return b.Terminator() != nil }

// IsHalting reports whether control leaves the function at the end of b
func (b *BasicBlock) IsHalting() bool {
	t := b.Terminator()
	return t != nil && t.Opcode.IsHalting()
}

// Phis returns the leading phi instructions
func (b *BasicBlock) Phis() []*Instruction {
	n := 0
	for n < len(b.Instructions) && b.Instructions[n].IsPhi() {
		n++
	}
	return b.Instructions[:n]
}

// Body returns the instructions after the phis
func (b *BasicBlock) Body() []*Instruction {
	return b.Instructions[len(b.Phis()):]
}

func (b *BasicBlock) Append(inst *Instruction) {
	inst.Block = b.ID
	b.Instructions = append(b.Instructions, inst)
}

// Insert places inst at index i
func (b *BasicBlock) Insert(i int, inst *Instruction) {
	inst.Block = b.ID
	b.Instructions = append(b.Instructions, nil)
	copy(b.Instructions[i+1:], b.Instructions[i:])
	b.Instructions[i] = inst
}

// InsertBeforeTerminator keeps the terminator last
func (b *BasicBlock) InsertBeforeTerminator(inst *Instruction) {
	if b.IsTerminated() {
		b.Insert(len(b.Instructions)-1, inst)
		return
	}
	b.Append(inst)
}

// IndexOf returns the position of inst in the block, or -1
func (b *BasicBlock) IndexOf(inst *Instruction) int {
	for i, in := range b.Instructions {
		if in == inst {
			return i
		}
	}
	return -1
}

// Remove deletes inst from the block
func (b *BasicBlock) Remove(inst *Instruction) bool {
	i := b.IndexOf(inst)
	if i < 0 {
		return false
	}
	b.Instructions = append(b.Instructions[:i], b.Instructions[i+1:]...)
	return true
}

// RemoveIf deletes every instruction matching pred and returns the count
func (b *BasicBlock) RemoveIf(pred func(*Instruction) bool) int {
	kept := b.Instructions[:0]
	removed := 0
	for _, inst := range b.Instructions {
		if pred(inst) {
			removed++
			continue
		}
		kept = append(kept, inst)
	}
	for i := len(kept); i < len(b.Instructions); i++ {
		b.Instructions[i] = nil
	}
	b.Instructions = kept
	return removed
}

// HasPred reports whether p is a stored predecessor
func (b *BasicBlock) HasPred(p BlockID) bool {
	for _, x := range b.Preds {
		if x == p {
			return true
		}
	}
	return false
}

// ReplacePhiLabel renames the incoming edge from old to new in every phi
func (b *BasicBlock) ReplacePhiLabel(old, new BlockID) {
	for _, phi := range b.Phis() {
		phi.ReplaceLabel(old, new)
	}
}

// RemovePhiEdge drops the incoming edge from pred in every phi
func (b *BasicBlock) RemovePhiEdge(pred BlockID) {
	for _, phi := range b.Phis() {
		edges := phi.PhiEdges()
		kept := edges[:0]
		for _, e := range edges {
			if e.Pred != pred {
				kept = append(kept, e)
			}
		}
		phi.SetPhiEdges(kept)
	}
}
