package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// File is one textual IR unit: constant data and functions in order
type File struct {
	Pos   lexer.Position
	Items []*Item `EOL* (@@ EOL*)*`
}

type Item struct {
	Data     *DataDecl     `  @@`
	Function *FunctionDecl `| @@`
}

// DataDecl declares a named word in the shared constant table
// Example: "data FEE = 3"
type DataDecl struct {
	Pos   lexer.Position
	Name  string `"data" @Ident "="`
	Value string `@Number`
}

// FunctionDecl is "function <name> [entry] [internal] { <blocks> }"
type FunctionDecl struct {
	Pos    lexer.Position
	EndPos lexer.Position
	Name   string   `"function" @Ident`
	Flags  []string `@("entry" | "internal")* "{" EOL+`
	Blocks []*Block `@@* "}"`
}

type Block struct {
	Pos          lexer.Position
	Label        string         `@LabelDef EOL+`
	Instructions []*Instruction `@@*`
}

// Instruction is "[%out =] opcode [operand {, operand}]" on one line
type Instruction struct {
	Pos      lexer.Position
	Output   string     `(@Var "=")?`
	Opcode   string     `@Ident`
	Operands []*Operand `(@@ ("," @@)*)? EOL+`
}

// Operand holds exactly one of a variable, a reference or a number
type Operand struct {
	Pos    lexer.Position
	Var    string `  @Var`
	Ref    string `| @Ref`
	Number string `| @Number`
}

// LabelName strips the trailing colon of a block label definition
func (b *Block) LabelName() string {
	return b.Label[:len(b.Label)-1]
}

func (f *FunctionDecl) HasFlag(flag string) bool {
	for _, fl := range f.Flags {
		if fl == flag {
			return true
		}
	}
	return false
}
