package passes

import (
	"fmt"

	"stackc/internal/analysis"
	"stackc/internal/errors"
	"stackc/internal/ir"
)

// DefaultMaxIterations bounds the number of full sweeps
const DefaultMaxIterations = 32

// Pipeline runs an ordered list of passes over one function until a full
// sweep changes nothing or MaxIterations sweeps have run
type Pipeline struct {
	Name          string
	Passes        []Pass
	MaxIterations int

	// VerifyEach checks CFG consistency after every pass invocation
	VerifyEach bool
}

// Report describes one pipeline run
type Report struct {
	Function        string
	Iterations      int
	FixpointReached bool
	Changes         map[string]int
	Notice          *errors.IRError
}

func NewPipeline(name string, list ...Pass) *Pipeline {
	return &Pipeline{Name: name, Passes: list, MaxIterations: DefaultMaxIterations}
}

// Validate checks pass ordering constraints
func (p *Pipeline) Validate() error {
	return ValidateOrder(p.Name, p.Passes)
}

func (p *Pipeline) Run(fn *ir.Function) (Report, error) {
	return p.RunWithCache(fn, analysis.NewCache(fn))
}

// RunWithCache runs the pipeline reusing an existing analysis cache
func (p *Pipeline) RunWithCache(fn *ir.Function, cache *analysis.Cache) (Report, error) {
	report := Report{Function: fn.Name, Changes: map[string]int{}}
	limit := p.MaxIterations
	if limit <= 0 {
		limit = DefaultMaxIterations
	}

	for iter := 1; iter <= limit; iter++ {
		report.Iterations = iter
		sweepChanged := false
		for _, pass := range p.Passes {
			changed, err := p.runPass(fn, cache, pass, limit, &report)
			if err != nil {
				return report, err
			}
			sweepChanged = sweepChanged || changed
		}
		if !sweepChanged {
			report.FixpointReached = true
			log.Debugf("%s: %s reached a fixpoint after %d sweeps", fn.Name, p.Name, iter)
			return report, nil
		}
	}

	report.Notice = errors.NewFixpointNotice(fn.Name, limit)
	log.Noticef("%s", report.Notice.Error())
	return report, nil
}

// runPass runs one pass, repeating fixpoint passes while they make progress
func (p *Pipeline) runPass(fn *ir.Function, cache *analysis.Cache, pass Pass, limit int, report *Report) (bool, error) {
	changed := false
	for round := 0; round < limit; round++ {
		cache.Ensure(pass.Requires()...)
		mut, err := pass.Run(fn, cache)
		if err != nil {
			return changed, fmt.Errorf("%s on %s: %w", pass.Name(), fn.Name, err)
		}
		cache.Invalidate(mut)
		if p.VerifyEach {
			if err := ir.Verify(fn); err != nil {
				return changed, fmt.Errorf("after %s: %w", pass.Name(), err)
			}
		}
		if mut == ir.MutNone {
			break
		}
		changed = true
		report.Changes[pass.Name()]++
		log.Debugf("%s: %s changed %s", fn.Name, pass.Name(), mut)
		if !isFixpoint(pass) {
			break
		}
	}
	return changed, nil
}
