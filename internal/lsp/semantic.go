package lsp

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"stackc/grammar"
	"stackc/internal/ir"
)

// SemanticToken represents a single LSP semantic token entry
// Line and StartChar are 0-based positions
// TokenType is an index into SemanticTokenTypes
// TokenModifiers is a bitmask over SemanticTokenModifiers
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int
	TokenModifiers int
}

var keywords = map[string]bool{"function": true, "data": true, "entry": true, "internal": true}

// collectSemanticTokens classifies the tokens of an IR document. It works
// on the raw token stream so that documents with parse errors still get
// highlighted.
func collectSemanticTokens(filename, source string) []SemanticToken {
	lex, err := grammar.IRLexer.Lex(filename, strings.NewReader(source))
	if err != nil {
		return nil
	}
	symbols := lexer.SymbolsByRune(grammar.IRLexer)

	var toks []lexer.Token
	for {
		tok, err := lex.Next()
		if err != nil || tok.EOF() {
			break
		}
		switch symbols[tok.Type] {
		case "Whitespace", "EOL":
			continue
		}
		toks = append(toks, tok)
	}

	var tokens []SemanticToken
	opcode := ""
	line := 0
	for i, tok := range toks {
		if tok.Pos.Line != line {
			line = tok.Pos.Line
			opcode = ""
		}
		next := ""
		if i+1 < len(toks) {
			next = toks[i+1].Value
		}
		prev := ""
		if i > 0 {
			prev = toks[i-1].Value
		}

		switch symbols[tok.Type] {
		case "Comment":
			tokens = append(tokens, makeToken(tok, len(tok.Value), "comment", 0))
		case "LabelDef":
			tokens = append(tokens, makeToken(tok, len(tok.Value)-1, "namespace", declaration))
		case "Var":
			mods := 0
			if next == "=" {
				mods = declaration
			}
			tokens = append(tokens, makeToken(tok, len(tok.Value), "variable", mods))
		case "Ref":
			kind := "function"
			if op, ok := ir.LookupOpcode(opcode); ok && (op == ir.OpJmp || op == ir.OpJnz || op == ir.OpDjmp || op == ir.OpPhi) {
				kind = "namespace"
			} else if opcode == ir.OpDataload.String() {
				kind = "variable"
			}
			tokens = append(tokens, makeToken(tok, len(tok.Value), kind, 0))
		case "Number":
			tokens = append(tokens, makeToken(tok, len(tok.Value), "number", 0))
		case "Ident":
			switch {
			case prev == "function":
				tokens = append(tokens, makeToken(tok, len(tok.Value), "function", declaration))
			case prev == "data":
				tokens = append(tokens, makeToken(tok, len(tok.Value), "variable", declaration|readonly))
			case keywords[tok.Value]:
				tokens = append(tokens, makeToken(tok, len(tok.Value), "keyword", 0))
			default:
				if _, ok := ir.LookupOpcode(tok.Value); ok {
					opcode = tok.Value
					tokens = append(tokens, makeToken(tok, len(tok.Value), "operator", 0))
				}
			}
		}
	}
	return tokens
}

var (
	declaration = 1 << indexOf("declaration", SemanticTokenModifiers)
	readonly    = 1 << indexOf("readonly", SemanticTokenModifiers)
)

func makeToken(tok lexer.Token, length int, tokenType string, modifiers int) SemanticToken {
	return SemanticToken{
		Line:           uint32(tok.Pos.Line - 1),   // LSP uses 0-based line numbers
		StartChar:      uint32(tok.Pos.Column - 1), // LSP uses 0-based column numbers
		Length:         uint32(length),
		TokenType:      indexOf(tokenType, SemanticTokenTypes),
		TokenModifiers: modifiers,
	}
}

// encodeSemanticTokens packs tokens into the LSP delta wire format
func encodeSemanticTokens(tokens []SemanticToken) []uint32 {
	var data []uint32
	var prevLine, prevStart uint32
	for _, token := range tokens {
		deltaLine := token.Line - prevLine
		deltaStart := token.StartChar
		if deltaLine == 0 {
			deltaStart = token.StartChar - prevStart
		}
		data = append(data, deltaLine, deltaStart, token.Length, uint32(token.TokenType), uint32(token.TokenModifiers))
		prevLine = token.Line
		prevStart = token.StartChar
	}
	return data
}

// indexOf returns the index of a string in a slice, or 0 if not found
func indexOf(target string, list []string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return 0
}
