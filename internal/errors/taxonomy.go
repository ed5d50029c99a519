package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"stackc/internal/ast"
)

// Class groups failures by how the driver must react to them
type Class int

const (
	// ProgrammerFatal is a violated internal invariant; it aborts the unit
	ProgrammerFatal Class = iota
	// ResourceExceeded may be retried once after a mitigating rewrite
	ResourceExceeded
	// FixpointNotReached is a best-effort notice and never aborts
	FixpointNotReached
)

func (c Class) String() string {
	switch c {
	case ProgrammerFatal:
		return "programmer-fatal"
	case ResourceExceeded:
		return "resource-exceeded"
	case FixpointNotReached:
		return "fixpoint-not-reached"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Coordinates locate a failure in the textual IR form.
// BlockIndex and Instruction are -1 when not applicable.
type Coordinates struct {
	Function    string
	Block       string
	BlockIndex  int
	Instruction int
}

// At builds coordinates for a function only
func At(function string) Coordinates {
	return Coordinates{Function: function, BlockIndex: -1, Instruction: -1}
}

// InBlock returns a copy narrowed to a block
func (c Coordinates) InBlock(label string, index int) Coordinates {
	c.Block = label
	c.BlockIndex = index
	return c
}

// AtInstruction returns a copy narrowed to an instruction within the block
func (c Coordinates) AtInstruction(index int) Coordinates {
	c.Instruction = index
	return c
}

func (c Coordinates) String() string {
	var parts []string
	if c.Function != "" {
		parts = append(parts, "function "+c.Function)
	}
	if c.Block != "" {
		parts = append(parts, fmt.Sprintf("block %s (#%d)", c.Block, c.BlockIndex))
	}
	if c.Instruction >= 0 && c.Block != "" {
		parts = append(parts, fmt.Sprintf("instruction %d", c.Instruction))
	}
	return strings.Join(parts, ", ")
}

// IRError is the structured failure value shared by every backend stage
type IRError struct {
	Class   Class
	Code    string
	Message string
	At      Coordinates
	Err     error
}

func (e *IRError) Error() string {
	msg := e.Message
	if loc := e.At.String(); loc != "" {
		msg = loc + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IRError) Unwrap() error { return e.Err }

func (e *IRError) base() *IRError { return e }

type classified interface {
	error
	base() *IRError
}

// MalformedInputError reports a source tree that breaks the frontend contract
type MalformedInputError struct {
	IRError
	Pos ast.Position
}

func NewMalformedInput(function string, pos ast.Position, format string, args ...any) *MalformedInputError {
	return &MalformedInputError{
		IRError: IRError{
			Class:   ProgrammerFatal,
			Code:    ErrorMalformedInput,
			Message: fmt.Sprintf(format, args...),
			At:      At(function),
		},
		Pos: pos,
	}
}

// InvariantError reports a broken IR invariant found by the verifier
type InvariantError struct {
	IRError
}

func NewInvariant(code string, at Coordinates, format string, args ...any) *InvariantError {
	return &InvariantError{IRError{
		Class:   ProgrammerFatal,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		At:      at,
	}}
}

// ParseError reports textual IR that could not be read
type ParseError struct {
	IRError
	Pos ast.Position
}

func NewParseError(pos ast.Position, err error) *ParseError {
	return &ParseError{
		IRError: IRError{
			Class:   ProgrammerFatal,
			Code:    ErrorParse,
			Message: "cannot parse IR",
			At:      Coordinates{BlockIndex: -1, Instruction: -1},
			Err:     err,
		},
		Pos: pos,
	}
}

// PassOrderError reports a pipeline that violates a pass ordering constraint
type PassOrderError struct {
	IRError
	Pipeline string
	Pass     string
	Index    int
}

func NewPassOrder(pipeline, pass string, index int, relation string, others []string) *PassOrderError {
	return &PassOrderError{
		IRError: IRError{
			Class: ProgrammerFatal,
			Code:  ErrorPassOrder,
			Message: fmt.Sprintf("invalid pass ordering in '%s': %s (index %d) must run %s one of [%s]",
				pipeline, pass, index, relation, strings.Join(others, ", ")),
			At: Coordinates{BlockIndex: -1, Instruction: -1},
		},
		Pipeline: pipeline,
		Pass:     pass,
		Index:    index,
	}
}

// StackTooDeepError reports a value that fell out of DUP/SWAP reach or a
// stack that grew past the machine limit
type StackTooDeepError struct {
	IRError
	Var   string
	Depth int
	Limit int
}

func NewStackTooDeep(at Coordinates, variable string, depth, limit int) *StackTooDeepError {
	return &StackTooDeepError{
		IRError: IRError{
			Class:   ResourceExceeded,
			Code:    ErrorStackTooDeep,
			Message: fmt.Sprintf("stack too deep: %s at depth %d (limit %d)", variable, depth, limit),
			At:      at,
		},
		Var:   variable,
		Depth: depth,
		Limit: limit,
	}
}

// ResourceExceededError reports an exhausted inlining budget
type ResourceExceededError struct {
	IRError
	Planned int
	Limit   int
}

func NewInlineBudget(function string, planned, limit int) *ResourceExceededError {
	return &ResourceExceededError{
		IRError: IRError{
			Class:   ResourceExceeded,
			Code:    ErrorInlineBudget,
			Message: fmt.Sprintf("inlining would grow %s to %d instructions (limit %d)", function, planned, limit),
			At:      At(function),
		},
		Planned: planned,
		Limit:   limit,
	}
}

// NewFixpointNotice records that a pipeline stopped at its iteration cap
func NewFixpointNotice(function string, iterations int) *IRError {
	return &IRError{
		Class:   FixpointNotReached,
		Code:    WarningFixpointNotReached,
		Message: fmt.Sprintf("pass pipeline stopped after %d iterations without reaching a fixpoint", iterations),
		At:      At(function),
	}
}

// AsIRError finds the first structured failure in err's chain
func AsIRError(err error) (*IRError, bool) {
	var c classified
	if stderrors.As(err, &c) {
		return c.base(), true
	}
	return nil, false
}

// ClassOf reports the class of err; unstructured errors count as fatal
func ClassOf(err error) Class {
	if e, ok := AsIRError(err); ok {
		return e.Class
	}
	return ProgrammerFatal
}

func IsResourceExceeded(err error) bool {
	return err != nil && ClassOf(err) == ResourceExceeded
}

func AsStackTooDeep(err error) (*StackTooDeepError, bool) {
	var e *StackTooDeepError
	ok := stderrors.As(err, &e)
	return e, ok
}

func AsInlineBudget(err error) (*ResourceExceededError, bool) {
	var e *ResourceExceededError
	ok := stderrors.As(err, &e)
	return e, ok
}

// sourcePosition returns the source location carried by input and parse errors
func sourcePosition(err error) (ast.Position, bool) {
	var mi *MalformedInputError
	if stderrors.As(err, &mi) {
		return mi.Pos, true
	}
	var pe *ParseError
	if stderrors.As(err, &pe) {
		return pe.Pos, true
	}
	return ast.Position{}, false
}
