package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"stackc/internal/ast"
)

// Severity ranks a diagnostic. Codes in the W range are warnings.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
	Note    Severity = "note"
)

// Diagnostic is a backend failure resolved against the printed IR
type Diagnostic struct {
	Severity Severity
	Code     string
	Class    Class
	Message  string
	At       Coordinates
	// Position is 1-based. Input errors carry the source tree position
	// instead of a printed IR line; Line 0 means unknown.
	Position ast.Position
	Length   int
	Notes    []string
	Help     []string
}

// Locator maps IR coordinates to a line of the printed IR
type Locator interface {
	Locate(at Coordinates) (ast.Position, int)
}

// NewDiagnostic resolves err for rendering. loc may be nil when no printed
// IR is available.
func NewDiagnostic(err error, loc Locator) Diagnostic {
	d := Diagnostic{
		Severity: Error,
		Class:    ClassOf(err),
		Message:  err.Error(),
		At:       Coordinates{BlockIndex: -1, Instruction: -1},
		Length:   1,
	}
	irErr, ok := AsIRError(err)
	if !ok {
		return d
	}
	d.Code = irErr.Code
	d.Message = irErr.Message
	if irErr.Err != nil {
		d.Message += ": " + irErr.Err.Error()
	}
	d.At = irErr.At
	if IsWarning(d.Code) {
		d.Severity = Warning
	}

	if pos, ok := sourcePosition(err); ok {
		d.Position = pos
	} else if loc != nil {
		d.Position, d.Length = loc.Locate(irErr.At)
	}
	d.Notes = append(d.Notes, GetErrorDescription(d.Code))

	if std, ok := AsStackTooDeep(err); ok {
		d.Help = append(d.Help, fmt.Sprintf("spill %s to memory or shorten its live range", std.Var))
	}
	var order *PassOrderError
	if stderrors.As(err, &order) {
		d.Help = append(d.Help, "reorder the pipeline or disable the dependent pass")
	}
	if d.Code == WarningFixpointNotReached {
		d.Help = append(d.Help, "raise max_iterations to let the pipeline settle")
	}
	return d
}

var (
	gutterStyle = color.New(color.Faint)
	noteStyle   = color.New(color.FgBlue)
	helpStyle   = color.New(color.FgCyan)
)

func severityStyle(s Severity) *color.Color {
	switch s {
	case Warning:
		return color.New(color.FgYellow, color.Bold)
	case Note:
		return color.New(color.FgBlue, color.Bold)
	}
	return color.New(color.FgRed, color.Bold)
}

// Reporter renders diagnostics against the printed IR they refer to. A
// snippet shows the enclosing function header and block label above the
// offending line, with skipped lines folded into a ':' gutter mark.
type Reporter struct {
	filename string
	lines    []string
}

func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders one diagnostic:
//
//	error[E1002] programmer-fatal: variable %x has 2 definitions
//	  --> main.ir:4:5
//	  = in function main, block main (#0), instruction 1
//	  |
//	1 | function main entry {
//	2 | main:
//	  :
//	4 |     %x = add %x, 1
//	  |     ^^^
//	  = note: Single static assignment invariant does not hold
func (r *Reporter) Format(d Diagnostic) string {
	var sb strings.Builder
	style := severityStyle(d.Severity)

	head := string(d.Severity)
	if d.Code != "" {
		head += "[" + d.Code + "]"
	}
	fmt.Fprintf(&sb, "%s %s: %s\n", style.Sprint(head), d.Class, d.Message)

	frame := r.frame(d.Position)
	width := 1
	if len(frame) > 0 {
		width = len(strconv.Itoa(frame[len(frame)-1]))
	}
	pad := strings.Repeat(" ", width)
	bar := gutterStyle.Sprint("|")
	eq := gutterStyle.Sprint("=")

	file := r.filename
	if d.Position.Filename != "" && !r.sameFile(d.Position) {
		file = d.Position.Filename
	}
	if d.Position.Line > 0 {
		fmt.Fprintf(&sb, "%s %s %s:%d:%d\n", pad, gutterStyle.Sprint("-->"), file, d.Position.Line, d.Position.Column)
	} else {
		fmt.Fprintf(&sb, "%s %s %s\n", pad, gutterStyle.Sprint("-->"), file)
	}
	if where := d.At.String(); where != "" {
		fmt.Fprintf(&sb, "%s %s in %s\n", pad, eq, where)
	}

	if len(frame) > 0 {
		fmt.Fprintf(&sb, "%s %s\n", pad, bar)
		prev := 0
		for _, n := range frame {
			if prev != 0 && n > prev+1 {
				fmt.Fprintf(&sb, "%s %s\n", pad, gutterStyle.Sprint(":"))
			}
			num := fmt.Sprintf("%*d", width, n)
			if n != d.Position.Line {
				fmt.Fprintf(&sb, "%s %s %s\n", gutterStyle.Sprint(num), bar, r.lines[n-1])
				prev = n
				continue
			}
			fmt.Fprintf(&sb, "%s %s %s\n", style.Sprint(num), bar, r.lines[n-1])
			marker := strings.Repeat(" ", max(0, d.Position.Column-1)) + strings.Repeat("^", max(1, d.Length))
			fmt.Fprintf(&sb, "%s %s %s\n", pad, bar, style.Sprint(marker))
			prev = n
		}
	}

	for _, note := range d.Notes {
		fmt.Fprintf(&sb, "%s %s %s %s\n", pad, eq, noteStyle.Sprint("note:"), note)
	}
	for _, help := range d.Help {
		fmt.Fprintf(&sb, "%s %s %s %s\n", pad, eq, helpStyle.Sprint("help:"), help)
	}
	sb.WriteString("\n")
	return sb.String()
}

// frame returns the ascending 1-based lines shown for pos: the header of
// the enclosing function, the label of the enclosing block and pos itself
func (r *Reporter) frame(pos ast.Position) []int {
	if pos.Line < 1 || pos.Line > len(r.lines) || !r.sameFile(pos) {
		return nil
	}
	target := r.lines[pos.Line-1]
	if isFunctionHeader(target) {
		return []int{pos.Line}
	}

	wantLabel := !isLabelLine(target)
	label := 0
	var out []int
	for n := pos.Line - 1; n >= 1; n-- {
		text := r.lines[n-1]
		if isFunctionHeader(text) {
			out = append(out, n)
			break
		}
		if wantLabel && label == 0 && isLabelLine(text) {
			label = n
		}
	}
	if label != 0 {
		out = append(out, label)
	}
	return append(out, pos.Line)
}

func (r *Reporter) sameFile(pos ast.Position) bool {
	return pos.Filename == "" || filepath.Base(pos.Filename) == filepath.Base(r.filename)
}

func isFunctionHeader(line string) bool {
	return strings.HasPrefix(line, "function ")
}

// isLabelLine matches the unindented "name:" lines the printer emits
func isLabelLine(line string) bool {
	if line == "" || line[0] == ' ' || line[0] == '\t' {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(line, " \t"), ":")
}
