package compiler

import "github.com/loxlang/loxvm/lexer"

// Precedence orders the binding strength of infix operators, low to high,
// exactly as original clox's Precedence enum.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // ! -
	PrecCall                  // . () []
	PrecPrimary
)

// parseFn is a Pratt parsing action: a prefix action (consumes nothing extra
// before it runs) or an infix action (runs with the left operand already on
// the stack), parameterized by whether the target position can be assigned
// to (spec §4.2's "." has higher precedence than "=" distinction).
type parseFn func(c *Compiler, canAssign bool)

// parseRule is one row of the Pratt table: the prefix/infix actions for a
// token type and the precedence an infix use of it binds at.
type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.LeftParen:    {(*Compiler).grouping, (*Compiler).call, PrecCall},
		lexer.RightParen:   {},
		lexer.LeftBrace:    {(*Compiler).dict, nil, PrecNone},
		lexer.RightBrace:   {},
		lexer.LeftBracket:  {(*Compiler).arrayDecl, (*Compiler).subscript, PrecCall},
		lexer.RightBracket: {},
		lexer.Comma:        {},
		lexer.Dot:          {nil, (*Compiler).dot, PrecCall},
		lexer.Minus:        {(*Compiler).unary, (*Compiler).binary, PrecTerm},
		lexer.Plus:         {nil, (*Compiler).binary, PrecTerm},
		lexer.Semicolon:    {},
		lexer.Colon:        {},
		lexer.Slash:        {nil, (*Compiler).binary, PrecFactor},
		lexer.Star:         {nil, (*Compiler).binary, PrecFactor},
		lexer.Bang:         {(*Compiler).unary, nil, PrecNone},
		lexer.BangEqual:    {nil, (*Compiler).binary, PrecEquality},
		lexer.Equal:        {},
		lexer.EqualEqual:   {nil, (*Compiler).binary, PrecEquality},
		lexer.PlusEqual:    {},
		lexer.MinusEqual:   {},
		lexer.StarEqual:    {},
		lexer.SlashEqual:   {},
		lexer.Greater:      {nil, (*Compiler).binary, PrecComparison},
		lexer.GreaterEqual: {nil, (*Compiler).binary, PrecComparison},
		lexer.Less:         {nil, (*Compiler).binary, PrecComparison},
		lexer.LessEqual:    {nil, (*Compiler).binary, PrecComparison},
		lexer.Identifier:   {(*Compiler).variable, nil, PrecNone},
		lexer.String:       {(*Compiler).string_, nil, PrecNone},
		lexer.Number:       {(*Compiler).number, nil, PrecNone},
		lexer.And:          {nil, (*Compiler).and_, PrecAnd},
		lexer.As:           {},
		lexer.Class:        {},
		lexer.Else:         {},
		lexer.False:        {(*Compiler).literal, nil, PrecNone},
		lexer.For:          {},
		lexer.From:         {},
		lexer.Fun:          {},
		lexer.If:           {},
		lexer.Import:       {},
		lexer.Nil:          {(*Compiler).literal, nil, PrecNone},
		lexer.Or:           {nil, (*Compiler).or_, PrecOr},
		lexer.Print:        {},
		lexer.Return:       {},
		lexer.Break:        {(*Compiler).break_, nil, PrecNone},
		lexer.Continue:     {(*Compiler).continue_, nil, PrecNone},
		lexer.Super:        {(*Compiler).super_, nil, PrecNone},
		lexer.This:         {(*Compiler).this_, nil, PrecNone},
		lexer.True:         {(*Compiler).literal, nil, PrecNone},
		lexer.Var:          {},
		lexer.While:        {},
		lexer.Error:        {},
		lexer.EOF:          {},
	}
}

func getRule(t lexer.TokenType) parseRule {
	return rules[t]
}
