package lsp

import (
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"stackc/internal/analysis"
	"stackc/internal/errors"
	"stackc/internal/ir"
)

// Diagnose parses an IR document and verifies every function in it.
// Parse failures stop at the first error; verification reports one
// diagnostic per broken function.
func Diagnose(filename, source string) []protocol.Diagnostic {
	ctx, sm, err := ir.ParseWithMap(filename, source)
	if err != nil {
		return []protocol.Diagnostic{ConvertError(errors.NewDiagnostic(err, nil), "stackc-parser")}
	}

	diagnostics := []protocol.Diagnostic{}
	for _, fn := range ctx.Functions {
		if err := ir.Verify(fn); err != nil {
			diagnostics = append(diagnostics, ConvertError(errors.NewDiagnostic(err, sm), "stackc-verify"))
		}
	}

	if ctx.EntryFunction() != nil {
		for _, name := range analysis.BuildCallGraph(ctx).Unreachable() {
			pos, length := sm.Locate(errors.At(name))
			diagnostics = append(diagnostics, ConvertError(errors.Diagnostic{
				Severity: errors.Warning,
				Message:  fmt.Sprintf("function %s is never called from the entry", name),
				Position: pos,
				Length:   length,
			}, "stackc-callgraph"))
		}
	}
	return diagnostics
}

// ConvertError turns a resolved diagnostic into an LSP diagnostic
func ConvertError(ce errors.Diagnostic, source string) protocol.Diagnostic {
	line := ce.Position.Line - 1 // Convert to 0-based indexing
	if line < 0 {
		line = 0
	}
	column := ce.Position.Column - 1
	if column < 0 {
		column = 0
	}
	length := ce.Length
	if length <= 0 {
		length = 1
	}

	severity := protocol.DiagnosticSeverityError
	switch ce.Severity {
	case errors.Warning:
		severity = protocol.DiagnosticSeverityWarning
	case errors.Note:
		severity = protocol.DiagnosticSeverityInformation
	}

	diagnostic := protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: uint32(line), Character: uint32(column)},
			End:   protocol.Position{Line: uint32(line), Character: uint32(column + length)},
		},
		Severity: ptrSeverity(severity),
		Source:   ptrString(source),
		Message:  ce.Message,
	}
	if ce.Code != "" {
		diagnostic.Code = &protocol.IntegerOrString{Value: ce.Code}
	}
	return diagnostic
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func ptrString(s string) *string {
	return &s
}
