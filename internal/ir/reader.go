package ir

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/holiman/uint256"
	"stackc/grammar"
	"stackc/internal/ast"
	"stackc/internal/errors"
)

// Parse reads the textual IR form back into a Context
func Parse(filename, source string) (*Context, error) {
	ctx, _, err := ParseWithMap(filename, source)
	return ctx, err
}

// ParseWithMap also returns where each function, block and instruction
// sits in source, for diagnostics against the text as written
func ParseWithMap(filename, source string) (*Context, *SourceMap, error) {
	file, err := grammar.ParseString(filename, source)
	if err != nil {
		pos, msg, ok := grammar.ErrorPosition(err)
		if !ok {
			return nil, nil, errors.NewParseError(ast.Position{Filename: filename}, err)
		}
		return nil, nil, errors.NewParseError(toPosition(pos), fmt.Errorf("%s", msg))
	}
	ctx, err := readFile(file)
	if err != nil {
		return nil, nil, err
	}
	return ctx, sourceMapOf(filename, file), nil
}

func sourceMapOf(filename string, file *grammar.File) *SourceMap {
	sm := NewPrinter().srcMap
	sm.Filename = filename
	for _, item := range file.Items {
		decl := item.Function
		if decl == nil {
			continue
		}
		sm.functions[decl.Name] = decl.Pos.Line
		sm.blocks[decl.Name] = make(map[string]int)
		sm.insts[decl.Name] = make(map[string][]int)
		for _, b := range decl.Blocks {
			sm.blocks[decl.Name][b.LabelName()] = b.Pos.Line
			lines := make([]int, len(b.Instructions))
			for i, in := range b.Instructions {
				lines[i] = in.Pos.Line
			}
			sm.insts[decl.Name][b.LabelName()] = lines
		}
	}
	return sm
}

func toPosition(pos lexer.Position) ast.Position {
	return ast.Position{Filename: pos.Filename, Offset: pos.Offset, Line: pos.Line, Column: pos.Column}
}

func parseFail(pos lexer.Position, format string, args ...any) error {
	return errors.NewParseError(toPosition(pos), fmt.Errorf(format, args...))
}

func readFile(file *grammar.File) (*Context, error) {
	ctx := NewContext()
	for _, item := range file.Items {
		switch {
		case item.Data != nil:
			w, err := ParseWord(item.Data.Value)
			if err != nil {
				return nil, parseFail(item.Data.Pos, "%v", err)
			}
			if _, dup := ctx.Data(item.Data.Name); dup {
				return nil, parseFail(item.Data.Pos, "duplicate data item %q", item.Data.Name)
			}
			_ = ctx.SetData(item.Data.Name, w)
		case item.Function != nil:
			fn, err := readFunction(item.Function)
			if err != nil {
				return nil, err
			}
			if err := ctx.AddFunction(fn); err != nil {
				return nil, parseFail(item.Function.Pos, "%v", err)
			}
		}
	}
	return ctx, nil
}

func readFunction(decl *grammar.FunctionDecl) (*Function, error) {
	fn := NewFunction(decl.Name)
	fn.IsEntry = decl.HasFlag("entry")
	fn.Internal = decl.HasFlag("internal")

	for _, b := range decl.Blocks {
		label := b.LabelName()
		if fn.BlockByLabel(label) != nil {
			return nil, parseFail(b.Pos, "duplicate block label %q", label)
		}
		fn.NewBlock(label)
	}

	for _, b := range decl.Blocks {
		bb := fn.BlockByLabel(b.LabelName())
		for _, in := range b.Instructions {
			inst, err := readInstruction(fn, in)
			if err != nil {
				return nil, err
			}
			bb.Append(inst)
		}
	}
	fn.RebuildCFG()
	return fn, nil
}

func readInstruction(fn *Function, in *grammar.Instruction) (*Instruction, error) {
	op, ok := LookupOpcode(in.Opcode)
	if !ok {
		return nil, parseFail(in.Pos, "unknown opcode %q", in.Opcode)
	}
	out := NoVar
	if in.Output != "" {
		if !op.HasOutput() {
			return nil, parseFail(in.Pos, "%s does not produce a value", op)
		}
		out = fn.VarOrNew(strings.TrimPrefix(in.Output, "%"))
	}

	operands := make([]Operand, 0, len(in.Operands))
	for i, o := range in.Operands {
		switch {
		case o.Var != "":
			operands = append(operands, VarOp(fn.VarOrNew(strings.TrimPrefix(o.Var, "%"))))
		case o.Number != "":
			w, err := ParseWord(o.Number)
			if err != nil {
				return nil, parseFail(o.Pos, "%v", err)
			}
			operands = append(operands, WordOp(w))
		case o.Ref != "":
			name := strings.TrimPrefix(o.Ref, "@")
			if !refIsLabel(op, i) {
				operands = append(operands, SymOp(name))
				continue
			}
			target := fn.BlockByLabel(name)
			if target == nil {
				return nil, parseFail(o.Pos, "undefined label @%s", name)
			}
			operands = append(operands, LabelOp(target.ID))
		}
	}
	return fn.NewInst(op, out, operands...), nil
}

// refIsLabel decides whether an @ reference at operand index i names a block
func refIsLabel(op Opcode, i int) bool {
	switch op {
	case OpJmp, OpJnz, OpDjmp:
		return true
	case OpPhi:
		return i%2 == 0
	}
	return false
}

// ParseWord parses a decimal, negative decimal (two's complement) or 0x literal
func ParseWord(s string) (*uint256.Int, error) {
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	var w *uint256.Int
	var err error
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		w, err = uint256.FromHex(trimHexZeros(digits))
	} else {
		w, err = uint256.FromDecimal(digits)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid literal %q: %w", s, err)
	}
	if neg {
		w.Neg(w)
	}
	return w, nil
}

// FromHex rejects leading zero digits
func trimHexZeros(s string) string {
	digits := strings.TrimLeft(s[2:], "0")
	if digits == "" {
		digits = "0"
	}
	return "0x" + digits
}
