// Package analysis computes read-only facts about IR functions and caches
// them until a pass reports a mutation that invalidates them.
package analysis

import (
	"fmt"

	"github.com/tliron/commonlog"
	"stackc/internal/ir"
)

var log = commonlog.GetLogger("stackc.analysis")

// Kind names a cached analysis
type Kind int

const (
	KindCFG Kind = iota
	KindDominators
	KindLiveness
	KindDFG
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindCFG:
		return "cfg"
	case KindDominators:
		return "dominators"
	case KindLiveness:
		return "liveness"
	case KindDFG:
		return "dfg"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// InvalidatedBy lists the mutation classes that make an analysis stale
func (k Kind) InvalidatedBy() ir.Mutation {
	switch k {
	case KindCFG, KindDominators:
		return ir.MutTerminators | ir.MutBlocks
	case KindLiveness, KindDFG:
		return ir.MutAll
	}
	return ir.MutAll
}

// dependencies are dropped together with what they depend on
var dependents = map[Kind][]Kind{
	KindCFG: {KindDominators, KindLiveness},
}

// Cache holds the analyses of one function
type Cache struct {
	fn         *ir.Function
	cfg        *CFG
	dom        *Dominators
	live       *Liveness
	dfg        *DFG
	generation [numKinds]int
}

func NewCache(fn *ir.Function) *Cache {
	return &Cache{fn: fn}
}

func (c *Cache) Function() *ir.Function { return c.fn }

// Generation counts how many times an analysis has been computed
func (c *Cache) Generation(k Kind) int { return c.generation[k] }

// Valid reports whether an analysis is cached
func (c *Cache) Valid(k Kind) bool {
	switch k {
	case KindCFG:
		return c.cfg != nil
	case KindDominators:
		return c.dom != nil
	case KindLiveness:
		return c.live != nil
	case KindDFG:
		return c.dfg != nil
	}
	return false
}

// Ensure computes every listed analysis that is not cached
func (c *Cache) Ensure(kinds ...Kind) {
	for _, k := range kinds {
		switch k {
		case KindCFG:
			c.CFG()
		case KindDominators:
			c.Dominators()
		case KindLiveness:
			c.Liveness()
		case KindDFG:
			c.DFG()
		}
	}
}

func (c *Cache) CFG() *CFG {
	if c.cfg == nil {
		c.cfg = computeCFG(c.fn)
		c.bump(KindCFG)
	}
	return c.cfg
}

func (c *Cache) Dominators() *Dominators {
	if c.dom == nil {
		c.dom = computeDominators(c.fn, c.CFG())
		c.bump(KindDominators)
	}
	return c.dom
}

func (c *Cache) Liveness() *Liveness {
	if c.live == nil {
		c.live = computeLiveness(c.fn, c.CFG())
		c.bump(KindLiveness)
	}
	return c.live
}

func (c *Cache) DFG() *DFG {
	if c.dfg == nil {
		c.dfg = computeDFG(c.fn)
		c.bump(KindDFG)
	}
	return c.dfg
}

func (c *Cache) bump(k Kind) {
	c.generation[k]++
	log.Debugf("%s: computed %s (generation %d)", c.fn.Name, k, c.generation[k])
}

// Invalidate drops every analysis whose invalidating classes intersect m
func (c *Cache) Invalidate(m ir.Mutation) {
	if m == ir.MutNone {
		return
	}
	for k := Kind(0); k < numKinds; k++ {
		if k.InvalidatedBy().Has(m) {
			c.Drop(k)
		}
	}
}

// Drop discards one analysis and everything computed from it
func (c *Cache) Drop(k Kind) {
	switch k {
	case KindCFG:
		c.cfg = nil
	case KindDominators:
		c.dom = nil
	case KindLiveness:
		c.live = nil
	case KindDFG:
		c.dfg = nil
	}
	for _, d := range dependents[k] {
		c.Drop(d)
	}
}
