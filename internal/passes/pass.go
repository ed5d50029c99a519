// Package passes holds the IR transformations and the pipeline that runs
// them to a fixpoint.
package passes

import (
	"github.com/tliron/commonlog"
	"stackc/internal/analysis"
	"stackc/internal/ir"
)

var log = commonlog.GetLogger("stackc.passes")

// Pass is a function-level transformation. Run reports the classes of
// rewrite it performed; ir.MutNone means nothing changed.
type Pass interface {
	Name() string
	Requires() []analysis.Kind
	Run(fn *ir.Function, cache *analysis.Cache) (ir.Mutation, error)
}

// ContextPass transforms a whole context (inlining)
type ContextPass interface {
	Name() string
	RunContext(ctx *ir.Context) (bool, error)
}

// FixpointPass is re-run while it keeps reporting change
type FixpointPass interface {
	Fixpoint() bool
}

// Ordering constraints checked by ValidateOrder. Each list holds
// alternatives; at least one must be satisfied.
type (
	runsAfter             interface{ RunsAfter() []string }
	runsBefore            interface{ RunsBefore() []string }
	runsImmediatelyAfter  interface{ RunsImmediatelyAfter() []string }
	runsImmediatelyBefore interface{ RunsImmediatelyBefore() []string }
)

func isFixpoint(p Pass) bool {
	f, ok := p.(FixpointPass)
	return ok && f.Fixpoint()
}
