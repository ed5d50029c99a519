package errors

// Error codes for the stackc backend.
//
// Error code ranges:
// E1000-E1099: Internal contract violations (programmer fatal)
// E2000-E2099: Resource limits (recoverable once)
// W3000-W3099: Best-effort notices
const (
	// E1001: The source tree handed to IR construction is malformed
	ErrorMalformedInput = "E1001"

	// E1002: A variable has more than one definition, or a use is not dominated
	ErrorSSAViolation = "E1002"

	// E1003: Stored predecessor/successor sets disagree with terminators
	ErrorCFGMismatch = "E1003"

	// E1004: A block is both a merge and a fork, or a merge has a forking predecessor
	ErrorNotNormalized = "E1004"

	// E1005: Generic structural verification failure
	ErrorMalformedIR = "E1005"

	// E1006: Pass pipeline ordering constraint violated
	ErrorPassOrder = "E1006"

	// E1007: Textual IR could not be parsed
	ErrorParse = "E1007"

	// E2001: Operand stack reach or depth limit exceeded
	ErrorStackTooDeep = "E2001"

	// E2002: Inlining growth budget exceeded
	ErrorInlineBudget = "E2002"

	// W3001: Pass pipeline stopped at its iteration cap
	WarningFixpointNotReached = "W3001"
)

// GetErrorDescription returns a human-readable description of the error code
func GetErrorDescription(code string) string {
	switch code {
	case ErrorMalformedInput:
		return "The annotated source tree violates the frontend contract"
	case ErrorSSAViolation:
		return "Single static assignment invariant does not hold"
	case ErrorCFGMismatch:
		return "Block predecessor/successor sets do not match the terminators"
	case ErrorNotNormalized:
		return "Control-flow graph is not normalized for stack scheduling"
	case ErrorMalformedIR:
		return "IR is structurally malformed"
	case ErrorPassOrder:
		return "Pass pipeline ordering constraint violated"
	case ErrorParse:
		return "Textual IR could not be parsed"
	case ErrorStackTooDeep:
		return "A value is out of reach of the stack manipulation instructions"
	case ErrorInlineBudget:
		return "Inlining would grow the program past its budget"
	case WarningFixpointNotReached:
		return "Optimization stopped at the iteration cap; output is best effort"
	default:
		return "Unknown error code"
	}
}

// IsWarning returns true if the code represents a notice rather than a failure
func IsWarning(code string) bool {
	return len(code) > 0 && code[0] == 'W'
}
