package analysis

import (
	"sort"

	"stackc/internal/ir"
)

// CallGraph records which functions invoke which, and what the program
// entry can reach
type CallGraph struct {
	order     []string
	callees   map[string][]string
	callers   map[string][]string
	reachable map[string]bool
	entry     string
}

// BuildCallGraph scans every invoke in the context
func BuildCallGraph(ctx *ir.Context) *CallGraph {
	g := &CallGraph{
		callees:   make(map[string][]string),
		callers:   make(map[string][]string),
		reachable: make(map[string]bool),
		entry:     ctx.Entry,
	}
	for _, fn := range ctx.Functions {
		g.order = append(g.order, fn.Name)
		seen := map[string]bool{}
		fn.Instructions(func(_ *ir.BasicBlock, inst *ir.Instruction) bool {
			if inst.Opcode != ir.OpInvoke {
				return true
			}
			callee := inst.Symbol()
			if !seen[callee] {
				seen[callee] = true
				g.callees[fn.Name] = append(g.callees[fn.Name], callee)
				g.callers[callee] = append(g.callers[callee], fn.Name)
			}
			return true
		})
	}

	if ctx.Function(ctx.Entry) != nil {
		work := []string{ctx.Entry}
		g.reachable[ctx.Entry] = true
		for len(work) > 0 {
			f := work[len(work)-1]
			work = work[:len(work)-1]
			for _, c := range g.callees[f] {
				if !g.reachable[c] {
					g.reachable[c] = true
					work = append(work, c)
				}
			}
		}
	}
	return g
}

func (g *CallGraph) Callees(name string) []string { return g.callees[name] }
func (g *CallGraph) Callers(name string) []string { return g.callers[name] }
func (g *CallGraph) Reachable(name string) bool   { return g.reachable[name] }

// Unreachable lists functions the entry can never call
func (g *CallGraph) Unreachable() []string {
	var out []string
	for _, name := range g.order {
		if !g.reachable[name] {
			out = append(out, name)
		}
	}
	return out
}

// IsRecursive reports whether name can reach itself through calls
func (g *CallGraph) IsRecursive(name string) bool {
	visited := map[string]bool{}
	work := append([]string(nil), g.callees[name]...)
	for len(work) > 0 {
		f := work[len(work)-1]
		work = work[:len(work)-1]
		if f == name {
			return true
		}
		if visited[f] {
			continue
		}
		visited[f] = true
		work = append(work, g.callees[f]...)
	}
	return false
}

// CalleesFirst orders the reachable functions so that callees come before
// their callers wherever the graph is acyclic
func (g *CallGraph) CalleesFirst() []string {
	var out []string
	visited := map[string]bool{}
	var visit func(string)
	visit = func(f string) {
		if visited[f] {
			return
		}
		visited[f] = true
		callees := append([]string(nil), g.callees[f]...)
		sort.Strings(callees)
		for _, c := range callees {
			visit(c)
		}
		if g.reachable[f] {
			out = append(out, f)
		}
	}
	if g.entry != "" {
		visit(g.entry)
	}
	return out
}
