package ir

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"stackc/internal/ast"
	"stackc/internal/errors"
)

// Printer renders the textual IR form and records where every function,
// block and instruction landed.
type Printer struct {
	indent int
	line   int
	output strings.Builder
	srcMap *SourceMap
}

// SourceMap records the printed line of every function, block and instruction
type SourceMap struct {
	Filename  string
	functions map[string]int
	blocks    map[string]map[string]int
	insts     map[string]map[string][]int
}

func NewPrinter() *Printer {
	return &Printer{
		line: 1,
		srcMap: &SourceMap{
			functions: make(map[string]int),
			blocks:    make(map[string]map[string]int),
			insts:     make(map[string]map[string][]int),
		},
	}
}

// Print returns the textual form of a context
func Print(ctx *Context) string {
	text, _ := PrintWithMap(ctx)
	return text
}

// PrintWithMap returns the textual form and its source map
func PrintWithMap(ctx *Context) (string, *SourceMap) {
	p := NewPrinter()
	p.printContext(ctx)
	return p.output.String(), p.srcMap
}

// PrintFunction returns the textual form of a single function
func PrintFunction(fn *Function) string {
	p := NewPrinter()
	p.printFunction(fn)
	return p.output.String()
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString("    ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
	p.line++
}

func (p *Printer) printContext(ctx *Context) {
	for _, name := range ctx.DataNames() {
		v, _ := ctx.Data(name)
		p.writeLine("data %s = %s", name, FormatWord(&v))
	}
	for i, fn := range ctx.Functions {
		if i > 0 || len(ctx.DataNames()) > 0 {
			p.writeLine("")
		}
		p.printFunction(fn)
	}
}

func (p *Printer) printFunction(fn *Function) {
	header := "function " + fn.Name
	if fn.IsEntry {
		header += " entry"
	}
	if fn.Internal {
		header += " internal"
	}
	p.srcMap.functions[fn.Name] = p.line
	p.srcMap.blocks[fn.Name] = make(map[string]int)
	p.srcMap.insts[fn.Name] = make(map[string][]int)
	p.writeLine("%s {", header)
	for _, b := range fn.Layout() {
		p.srcMap.blocks[fn.Name][b.Label] = p.line
		p.writeLine("%s:", b.Label)
		p.indent++
		lines := make([]int, 0, len(b.Instructions))
		for _, inst := range b.Instructions {
			lines = append(lines, p.line)
			p.writeLine("%s", FormatInstruction(fn, inst))
		}
		p.srcMap.insts[fn.Name][b.Label] = lines
		p.indent--
	}
	p.writeLine("}")
}

// FormatInstruction renders one instruction without indentation
func FormatInstruction(fn *Function, inst *Instruction) string {
	var sb strings.Builder
	if inst.Output != NoVar {
		sb.WriteString("%" + fn.VarName(inst.Output) + " = ")
	}
	sb.WriteString(inst.Opcode.String())
	for i, op := range inst.Operands {
		if i == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(FormatOperand(fn, op))
	}
	return sb.String()
}

func FormatOperand(fn *Function, op Operand) string {
	switch op.Kind {
	case OperandVar:
		return "%" + fn.VarName(op.Var)
	case OperandLiteral:
		return FormatWord(&op.Lit)
	case OperandLabel:
		if b := fn.Block(op.Block); b != nil {
			return "@" + b.Label
		}
		return fmt.Sprintf("@<dead %d>", int(op.Block))
	case OperandSymbol:
		return "@" + op.Sym
	}
	return "?"
}

// FormatWord prints small words in decimal and large ones in hex
func FormatWord(w *uint256.Int) string {
	if w.IsUint64() {
		return w.Dec()
	}
	return w.Hex()
}

// Locate implements errors.Locator over the printed text
func (m *SourceMap) Locate(at errors.Coordinates) (ast.Position, int) {
	pos := ast.Position{Filename: m.Filename, Line: m.functions[at.Function], Column: 1}
	if at.Block == "" {
		return pos, len("function")
	}
	if line, ok := m.blocks[at.Function][at.Block]; ok {
		pos.Line = line
	}
	lines := m.insts[at.Function][at.Block]
	if at.Instruction >= 0 && at.Instruction < len(lines) {
		pos.Line = lines[at.Instruction]
		pos.Column = 5
		return pos, 4
	}
	return pos, len(at.Block)
}
