// Package compiler drives a whole program through inlining, the per
// function pass pipeline, CFG normalization and stack scheduling.
package compiler

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"stackc/internal/analysis"
	"stackc/internal/config"
	"stackc/internal/errors"
	"stackc/internal/ir"
	"stackc/internal/passes"
	"stackc/internal/stackify"
)

var log = commonlog.GetLogger("stackc.compiler")

// Result collects the scheduled form of every surviving function, in
// Context order
type Result struct {
	Context   *ir.Context
	Functions []*stackify.Function
	Reports   []passes.Report
	Notices   []*errors.IRError

	// Spilled lists the variables moved to memory, per function
	Spilled map[string][]string
	// Removed lists functions the entry can never call
	Removed []string
}

// Function returns the scheduled code of name, or nil
func (r *Result) Function(name string) *stackify.Function {
	for _, f := range r.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

type unit struct {
	fn      *ir.Function
	out     *stackify.Function
	report  passes.Report
	spilled []string
	err     error
}

type compilation struct {
	cfg      *config.Config
	pipeline *passes.Pipeline
	spills   atomic.Int64
}

// Compile optimizes and schedules ctx. The returned Context may be a
// copy of ctx when inlining had to be retried.
func Compile(ctx *ir.Context, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, fn := range ctx.Functions {
		if err := ir.Verify(fn); err != nil {
			return nil, err
		}
	}

	ctx, err := inline(ctx, cfg.Tuning())
	if err != nil {
		return nil, err
	}

	result := &Result{Context: ctx, Spilled: map[string][]string{}}
	if ctx.EntryFunction() != nil {
		for _, name := range analysis.BuildCallGraph(ctx).Unreachable() {
			ctx.RemoveFunction(name)
			result.Removed = append(result.Removed, name)
			log.Debugf("removed unreachable function %s", name)
		}
	}
	ctx.Freeze()

	pipeline, err := passes.BuildPipeline(cfg.Level(), cfg.Disable, cfg.MaxIterations)
	if err != nil {
		return nil, err
	}
	c := &compilation{cfg: cfg, pipeline: pipeline}

	units := make([]*unit, len(ctx.Functions))
	for i, fn := range ctx.Functions {
		units[i] = &unit{fn: fn}
	}
	c.run(units)

	for _, u := range units {
		if u.err != nil {
			return nil, fmt.Errorf("compiling %s: %w", u.fn.Name, u.err)
		}
		result.Functions = append(result.Functions, u.out)
		result.Reports = append(result.Reports, u.report)
		if u.report.Notice != nil {
			result.Notices = append(result.Notices, u.report.Notice)
		}
		if len(u.spilled) > 0 {
			result.Spilled[u.fn.Name] = u.spilled
		}
	}
	log.Infof("compiled %d functions at %s", len(result.Functions), cfg.Level())
	return result, nil
}

// inline runs the Context-level inliner on a copy of ctx. An exhausted
// growth budget is retried once from the original with half the callee
// budget.
func inline(ctx *ir.Context, tuning passes.Tuning) (*ir.Context, error) {
	if tuning.InlineBudget == 0 || tuning.InlineDepth == 0 {
		return ctx, nil
	}
	inliner := &passes.Inliner{Budget: tuning.InlineBudget, Depth: tuning.InlineDepth, MaxGrowth: tuning.InlineMaxGrowth}
	work := ctx.Clone()
	_, err := inliner.RunContext(work)
	if err == nil {
		return work, nil
	}
	budget, ok := errors.AsInlineBudget(err)
	if !ok {
		return nil, err
	}
	log.Warningf("%s; retrying with callee budget %d", budget.Message, inliner.Budget/2)
	inliner.Budget /= 2
	work = ctx.Clone()
	if _, err := inliner.RunContext(work); err != nil {
		return nil, err
	}
	return work, nil
}

// run compiles the units on cfg.Jobs workers
func (c *compilation) run(units []*unit) {
	work := make(chan *unit)
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range work {
				c.compile(u)
			}
		}()
	}
	for _, u := range units {
		work <- u
	}
	close(work)
	wg.Wait()
}

func (c *compilation) compile(u *unit) {
	fn := u.fn
	u.report, u.err = c.pipeline.Run(fn)
	if u.err != nil {
		return
	}
	if _, u.err = (passes.Normalize{}).Run(fn, analysis.NewCache(fn)); u.err != nil {
		return
	}
	if u.err = ir.Verify(fn); u.err != nil {
		return
	}

	opts := c.cfg.StackOptions()
	out, err := stackify.Emit(fn, opts)
	if tooDeep, ok := errors.AsStackTooDeep(err); ok {
		v, found := fn.LookupVar(strings.TrimPrefix(tooDeep.Var, "%"))
		if !found {
			u.err = err
			return
		}
		slot := c.cfg.SpillSlot(int(c.spills.Add(1) - 1))
		log.Warningf("%s; spilling %s to %#x", tooDeep.Message, tooDeep.Var, slot)
		if u.err = passes.Spill(fn, v, slot); u.err != nil {
			return
		}
		u.spilled = append(u.spilled, tooDeep.Var)
		out, err = stackify.Emit(fn, opts)
	}
	if err != nil {
		u.err = err
		return
	}
	if u.err = stackify.Simulate(fn, out); u.err != nil {
		return
	}
	u.out = out
	ops, pushes, dups, swaps, pops := out.Counts()
	log.Debugf("%s: %d ops, %d stack items", fn.Name, ops, pushes+dups+swaps+pops)
}
