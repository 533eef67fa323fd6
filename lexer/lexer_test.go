package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []Token {
	t.Helper()
	s := New(src)
	var toks []Token
	for {
		tok := s.Next()
		toks = append(toks, tok)
		if tok.Type == EOF || tok.Type == Error {
			break
		}
	}
	return toks
}

func TestScanner_Punctuation(t *testing.T) {
	toks := scanAll(t, "(){}[],.;: - + / *")
	types := make([]TokenType, 0, len(toks))
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		LeftParen, RightParen, LeftBrace, RightBrace, LeftBracket, RightBracket,
		Comma, Dot, Semicolon, Colon, Minus, Plus, Slash, Star, EOF,
	}, types)
}

func TestScanner_CompoundAssignment(t *testing.T) {
	toks := scanAll(t, "+= -= *= /= == != <= >=")
	var types []TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		PlusEqual, MinusEqual, StarEqual, SlashEqual,
		EqualEqual, BangEqual, LessEqual, GreaterEqual, EOF,
	}, types)
}

func TestScanner_Keywords(t *testing.T) {
	toks := scanAll(t, "var fun class if else while for return import export as from")
	var types []TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		Var, Fun, Class, If, Else, While, For, Return, Import, Export, As, From, EOF,
	}, types)
}

func TestScanner_Identifier(t *testing.T) {
	toks := scanAll(t, "fooBar_1")
	require.Len(t, toks, 2)
	assert.Equal(t, Identifier, toks[0].Type)
	assert.Equal(t, "fooBar_1", toks[0].Lexeme)
}

func TestScanner_Number(t *testing.T) {
	toks := scanAll(t, "123 4.5")
	require.Len(t, toks, 3)
	assert.Equal(t, "123", toks[0].Lexeme)
	assert.Equal(t, "4.5", toks[1].Lexeme)
}

func TestScanner_StringEscapes(t *testing.T) {
	toks := scanAll(t, `"a\nb\tc\"d"`)
	require.Len(t, toks, 2)
	assert.Equal(t, String, toks[0].Type)
	assert.Equal(t, "a\nb\tc\"d", toks[0].Lexeme)
}

func TestScanner_UnterminatedString(t *testing.T) {
	toks := scanAll(t, `"unterminated`)
	require.Len(t, toks, 1)
	assert.Equal(t, Error, toks[0].Type)
}

func TestScanner_LineComment(t *testing.T) {
	toks := scanAll(t, "var x // this is a comment\n= 1;")
	assert.Equal(t, Var, toks[0].Type)
	assert.Equal(t, Identifier, toks[1].Type)
	assert.Equal(t, Equal, toks[2].Type)
}

func TestScanner_NestedBlockComment(t *testing.T) {
	toks := scanAll(t, "/* outer /* inner */ still-out */ var")
	require.Len(t, toks, 2)
	assert.Equal(t, Var, toks[0].Type)
}

func TestScanner_UnterminatedBlockComment(t *testing.T) {
	toks := scanAll(t, "/* never closes")
	require.Len(t, toks, 1)
	assert.Equal(t, Error, toks[0].Type)
}

func TestScanner_LineTracking(t *testing.T) {
	s := New("1\n2\n3")
	tok := s.Next()
	assert.Equal(t, 1, tok.Line)
	tok = s.Next()
	assert.Equal(t, 2, tok.Line)
	tok = s.Next()
	assert.Equal(t, 3, tok.Line)
}

func TestScanner_Peek(t *testing.T) {
	s := New("var x = 1;")
	first := s.Next()
	assert.Equal(t, Var, first.Type)

	ahead := s.Peek(1) // "=" is two tokens ahead of the cursor after `var`
	assert.Equal(t, Equal, ahead.Type)

	// Peek must not have consumed input: the very next token is still `x`.
	next := s.Next()
	assert.Equal(t, Identifier, next.Type)
}

func TestScanner_StashRestore(t *testing.T) {
	s := New("outer")
	s.StashPush()
	s.Reset("inner", 5)
	tok := s.Next()
	assert.Equal(t, "inner", tok.Lexeme)

	ok := s.StashPop()
	require.True(t, ok)
	tok = s.Next()
	assert.Equal(t, "outer", tok.Lexeme)
}
