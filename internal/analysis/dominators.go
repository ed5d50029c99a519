package analysis

import (
	"sort"

	"stackc/internal/ir"
)

// Dominators is the dominator tree of the reachable blocks, computed with
// the Cooper-Harvey-Kennedy iterative algorithm.
type Dominators struct {
	entry    ir.BlockID
	idom     []ir.BlockID
	children [][]ir.BlockID
	frontier [][]ir.BlockID
	pre      []int
	post     []int
	preorder []ir.BlockID
}

func computeDominators(fn *ir.Function, cfg *CFG) *Dominators {
	n := len(fn.Blocks)
	d := &Dominators{
		entry:    fn.Entry,
		idom:     make([]ir.BlockID, n),
		children: make([][]ir.BlockID, n),
		frontier: make([][]ir.BlockID, n),
		pre:      make([]int, n),
		post:     make([]int, n),
	}
	for i := range d.idom {
		d.idom[i] = ir.NoBlock
	}
	rpo := cfg.ReversePostorder()
	if len(rpo) == 0 {
		return d
	}
	d.idom[fn.Entry] = fn.Entry

	intersect := func(a, b ir.BlockID) ir.BlockID {
		for a != b {
			for cfg.RPOIndex(a) > cfg.RPOIndex(b) {
				a = d.idom[a]
			}
			for cfg.RPOIndex(b) > cfg.RPOIndex(a) {
				b = d.idom[b]
			}
		}
		return a
	}

	for changed := true; changed; {
		changed = false
		for _, b := range rpo[1:] {
			newIdom := ir.NoBlock
			for _, p := range fn.Block(b).Preds {
				if !cfg.Reachable(p) || d.idom[p] == ir.NoBlock {
					continue
				}
				if newIdom == ir.NoBlock {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom)
				}
			}
			if d.idom[b] != newIdom {
				d.idom[b] = newIdom
				changed = true
			}
		}
	}

	for _, b := range rpo[1:] {
		p := d.idom[b]
		d.children[p] = append(d.children[p], b)
	}
	for _, c := range d.children {
		sort.Slice(c, func(i, j int) bool { return cfg.RPOIndex(c[i]) < cfg.RPOIndex(c[j]) })
	}

	// dominance frontiers
	for _, b := range rpo {
		var preds []ir.BlockID
		for _, p := range fn.Block(b).Preds {
			if cfg.Reachable(p) {
				preds = append(preds, p)
			}
		}
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			for runner := p; runner != d.idom[b]; runner = d.idom[runner] {
				d.frontier[runner] = appendUnique(d.frontier[runner], b)
				if runner == d.entry {
					break
				}
			}
		}
	}

	d.number()
	return d
}

// number assigns pre/post DFS numbers on the tree for O(1) dominance queries
func (d *Dominators) number() {
	clock := 0
	type frame struct {
		id   ir.BlockID
		next int
	}
	stack := []frame{{id: d.entry}}
	d.pre[d.entry] = clock
	d.preorder = append(d.preorder, d.entry)
	clock++
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		kids := d.children[top.id]
		if top.next < len(kids) {
			k := kids[top.next]
			top.next++
			d.pre[k] = clock
			d.preorder = append(d.preorder, k)
			clock++
			stack = append(stack, frame{id: k})
			continue
		}
		d.post[top.id] = clock
		clock++
		stack = stack[:len(stack)-1]
	}
}

func appendUnique(list []ir.BlockID, id ir.BlockID) []ir.BlockID {
	for _, x := range list {
		if x == id {
			return list
		}
	}
	return append(list, id)
}

// Idom returns the immediate dominator, or NoBlock for the entry and
// unreachable blocks
func (d *Dominators) Idom(b ir.BlockID) ir.BlockID {
	if b == d.entry || int(b) >= len(d.idom) {
		return ir.NoBlock
	}
	return d.idom[b]
}

func (d *Dominators) Children(b ir.BlockID) []ir.BlockID { return d.children[b] }
func (d *Dominators) Frontier(b ir.BlockID) []ir.BlockID { return d.frontier[b] }

// Preorder walks the dominator tree from the entry, parents before children
func (d *Dominators) Preorder() []ir.BlockID { return d.preorder }

func (d *Dominators) reachable(b ir.BlockID) bool {
	return int(b) >= 0 && int(b) < len(d.idom) && d.idom[b] != ir.NoBlock
}

// Dominates reports whether every path from the entry to b passes through a
func (d *Dominators) Dominates(a, b ir.BlockID) bool {
	if !d.reachable(a) || !d.reachable(b) {
		return false
	}
	return d.pre[a] <= d.pre[b] && d.post[b] <= d.post[a]
}

func (d *Dominators) StrictlyDominates(a, b ir.BlockID) bool {
	return a != b && d.Dominates(a, b)
}

// IteratedFrontier returns the iterated dominance frontier of a set of blocks
func (d *Dominators) IteratedFrontier(blocks []ir.BlockID) []ir.BlockID {
	inResult := map[ir.BlockID]bool{}
	queued := map[ir.BlockID]bool{}
	work := append([]ir.BlockID(nil), blocks...)
	for _, b := range work {
		queued[b] = true
	}
	var result []ir.BlockID
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		if !d.reachable(b) {
			continue
		}
		for _, f := range d.frontier[b] {
			if inResult[f] {
				continue
			}
			inResult[f] = true
			result = append(result, f)
			if !queued[f] {
				queued[f] = true
				work = append(work, f)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return d.pre[result[i]] < d.pre[result[j]] })
	return result
}
