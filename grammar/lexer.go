package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// IRLexer tokenizes the textual IR form. Newlines are significant: every
// instruction ends at the end of its line.
var IRLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		// Comments run to the end of the line
		{"Comment", `;[^\n]*`, nil},
		{"EOL", `\n`, nil},
		{"Whitespace", `[ \t\r]+`, nil},

		// Block labels are the only identifiers followed directly by a colon
		{"LabelDef", `[a-zA-Z_][a-zA-Z0-9_.$]*:`, nil},

		// %variable and @label / @symbol references
		{"Var", `%[a-zA-Z0-9_.:$]+`, nil},
		{"Ref", `@[a-zA-Z0-9_.:$]+`, nil},

		// Integer literals; negative decimals are two's complement words
		{"Number", `-?(0x[0-9a-fA-F]+|[0-9]+)`, nil},

		// Opcodes, keywords and names
		{"Ident", `[a-zA-Z_][a-zA-Z0-9_.$]*`, nil},

		{"Punctuation", `[{}=,]`, nil},
	},
})
