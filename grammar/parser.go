package grammar

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/fatih/color"
)

var irParser = participle.MustBuild[File](
	participle.Lexer(IRLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(3),
)

// ParseString parses textual IR held in memory
func ParseString(filename, source string) (*File, error) {
	return irParser.ParseString(filename, source)
}

// ErrorPosition extracts the source position from a participle error
func ErrorPosition(err error) (lexer.Position, string, bool) {
	var pe participle.Error
	if errors.As(err, &pe) {
		return pe.Position(), pe.Message(), true
	}
	return lexer.Position{}, "", false
}

// ReportParseError prints a friendly caret-style parse error message.
func ReportParseError(w io.Writer, src string, err error) {
	red := color.New(color.FgRed)
	pos, msg, ok := ErrorPosition(err)
	if !ok {
		red.Fprintf(w, "Unexpected error: %s\n", err)
		return
	}

	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		red.Fprintf(w, "Syntax error at unknown location: %s\n", err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", max(0, pos.Column-1)) + "^"

	red.Fprintf(w, "Syntax error in %s at line %d, column %d:\n", pos.Filename, pos.Line, pos.Column)
	fmt.Fprintln(w, line)
	color.New(color.FgHiRed).Fprintln(w, caret)
	fmt.Fprintf(w, "→ %s\n", msg)
}
