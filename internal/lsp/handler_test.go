package lsp_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"stackc/internal/errors"
	"stackc/internal/lsp"
)

const valid = `function main entry {
main:
    %x = caller
    ret %x
}
`

const unterminated = `function main entry {
main:
    %x = caller
    jmp @next
next:
    %y = add %x, 1
}
`

func TestDiagnoseParseError(t *testing.T) {
	diags := lsp.Diagnose("bad.ir", "function main entry {\nmain:\n    %x = add 1,\n}\n")
	require.Len(t, diags, 1)
	assert.Equal(t, "stackc-parser", *diags[0].Source)
	assert.Equal(t, protocol.DiagnosticSeverityError, *diags[0].Severity)
	require.NotNil(t, diags[0].Code)
	assert.Equal(t, errors.ErrorParse, diags[0].Code.Value)
}

func TestDiagnoseVerifyError(t *testing.T) {
	diags := lsp.Diagnose("bad.ir", unterminated)
	require.Len(t, diags, 1)
	assert.Equal(t, "stackc-verify", *diags[0].Source)
	assert.Equal(t, uint32(5), diags[0].Range.Start.Line, "points at the instruction in next")
	assert.Contains(t, diags[0].Message, "terminator")
}

func TestDiagnoseUnreachableFunction(t *testing.T) {
	diags := lsp.Diagnose("ok.ir", valid+"\nfunction unused internal {\nunused:\n    stop\n}\n")
	require.Len(t, diags, 1)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, *diags[0].Severity)
	assert.Equal(t, uint32(6), diags[0].Range.Start.Line)
	assert.Contains(t, diags[0].Message, "unused")

	assert.Empty(t, lsp.Diagnose("ok.ir", valid))
}

func TestHandlerPublishesDiagnostics(t *testing.T) {
	handler := lsp.NewHandler()
	var published []*protocol.PublishDiagnosticsParams
	ctx := &glsp.Context{Notify: func(method string, params any) {
		require.Equal(t, protocol.ServerTextDocumentPublishDiagnostics, method)
		published = append(published, params.(*protocol.PublishDiagnosticsParams))
	}}
	uri := "file:///tmp/main.ir"

	require.NoError(t, handler.TextDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "stackir", Text: unterminated},
	}))
	require.Len(t, published, 1)
	assert.Len(t, published[0].Diagnostics, 1)

	require.NoError(t, handler.TextDocumentDidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri}},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: valid}},
	}))
	require.Len(t, published, 2)
	assert.Empty(t, published[1].Diagnostics)

	tokens, err := handler.TextDocumentSemanticTokensFull(ctx, &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.Data)

	require.NoError(t, handler.TextDocumentDidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	}))
	require.Len(t, published, 3)
	assert.Empty(t, published[2].Diagnostics)
}

func TestTextDocumentSemanticTokensFull(t *testing.T) {
	handler := lsp.NewHandler()
	ctx := &glsp.Context{Notify: func(string, any) {}}
	uri := "file:///tmp/fee.ir"
	source := `data FEE = 3
function main entry {
main:
    %x = dataload @FEE ; fee
    jmp @done
done:
    ret %x
}
`
	require.NoError(t, handler.TextDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, Text: source},
	}))

	tokens, err := handler.TextDocumentSemanticTokensFull(ctx, &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
	require.NoError(t, err)

	decoded, err := decodeSemanticTokens(tokens.Data)
	require.NoError(t, err)
	require.Len(t, decoded, 16)

	assertToken(t, &decoded[0], 1, 1, 4, "keyword", nil)
	assertToken(t, &decoded[1], 1, 6, 3, "variable", []string{"declaration", "readonly"})
	assertToken(t, &decoded[2], 1, 12, 1, "number", nil)
	assertToken(t, &decoded[3], 2, 1, 8, "keyword", nil)
	assertToken(t, &decoded[4], 2, 10, 4, "function", []string{"declaration"})
	assertToken(t, &decoded[5], 2, 15, 5, "keyword", nil)
	assertToken(t, &decoded[6], 3, 1, 4, "namespace", []string{"declaration"})
	assertToken(t, &decoded[7], 4, 5, 2, "variable", []string{"declaration"})
	assertToken(t, &decoded[8], 4, 10, 8, "operator", nil)
	assertToken(t, &decoded[9], 4, 19, 4, "variable", nil)
	assertToken(t, &decoded[10], 4, 24, 5, "comment", nil)
	assertToken(t, &decoded[11], 5, 5, 3, "operator", nil)
	assertToken(t, &decoded[12], 5, 9, 5, "namespace", nil)
	assertToken(t, &decoded[13], 6, 1, 4, "namespace", []string{"declaration"})
	assertToken(t, &decoded[14], 7, 5, 3, "operator", nil)
	assertToken(t, &decoded[15], 7, 9, 2, "variable", nil)
}

type DecodedToken struct {
	Index     int
	Line      uint32
	Char      uint32
	Length    uint32
	Type      string
	Modifiers []string
}

func decodeSemanticTokens(raw []uint32) ([]DecodedToken, error) {
	if len(raw)%5 != 0 {
		return nil, fmt.Errorf("raw token data length %d is not a multiple of 5", len(raw))
	}

	var (
		decoded []DecodedToken
		line    uint32
		char    uint32
	)

	for i := 0; i < len(raw); i += 5 {
		deltaLine := raw[i]
		deltaStart := raw[i+1]
		length := raw[i+2]
		tokenTypeIdx := raw[i+3]
		tokenModMask := raw[i+4]

		if deltaLine == 0 {
			char += deltaStart
		} else {
			line += deltaLine
			char = deltaStart
		}

		var modifiers []string
		for j, name := range lsp.SemanticTokenModifiers {
			if tokenModMask&(1<<j) != 0 {
				modifiers = append(modifiers, name)
			}
		}

		decoded = append(decoded, DecodedToken{
			Index:     i / 5,
			Line:      line + 1, // LSP uses 0-based indexing
			Char:      char + 1, // LSP uses 0-based indexing
			Length:    length,
			Type:      lsp.SemanticTokenTypes[tokenTypeIdx],
			Modifiers: modifiers,
		})
	}

	return decoded, nil
}

func assertToken(t *testing.T, token *DecodedToken, expectedLine, expectedChar, expectedLength uint32, expectedType string, expectedModifiers []string) {
	require.Equal(t, expectedLine, token.Line, "line mismatch (expected line %d)", expectedLine)
	require.Equal(t, expectedChar, token.Char, "char mismatch (expected char %d)", expectedChar)
	require.Equal(t, expectedLength, token.Length, "length mismatch")
	require.Equal(t, expectedType, token.Type, "type mismatch")
	require.ElementsMatch(t, expectedModifiers, token.Modifiers, "modifiers mismatch")
}
