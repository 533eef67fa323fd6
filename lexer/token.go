package lexer

// TokenType classifies a lexed token (spec §4.1).
type TokenType int

const (
	// single-char
	LeftParen TokenType = iota
	RightParen
	LeftBrace
	RightBrace
	LeftBracket
	RightBracket
	Comma
	Dot
	Minus
	Plus
	Semicolon
	Colon
	Slash
	Star

	// one or more chars
	Bang
	BangEqual
	Equal
	EqualEqual
	PlusEqual
	MinusEqual
	StarEqual
	SlashEqual
	Greater
	GreaterEqual
	Less
	LessEqual

	// literals
	Identifier
	String
	Number

	// keywords
	And
	As
	Break
	Continue
	Class
	Else
	Export
	False
	For
	From
	Fun
	If
	Import
	Nil
	Or
	Print
	Return
	Super
	This
	True
	Var
	While

	Error
	EOF
)

var keywords = map[string]TokenType{
	"and": And, "as": As, "break": Break, "continue": Continue, "class": Class,
	"else": Else, "export": Export, "false": False, "for": For, "from": From,
	"fun": Fun, "if": If, "import": Import, "nil": Nil, "or": Or,
	"print": Print, "return": Return, "super": Super, "this": This,
	"true": True, "var": Var, "while": While,
}

// Token is a single lexed unit: its type, the source lexeme, and the line it
// started on. Error tokens carry their diagnostic message in Lexeme.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int
}

func (t Token) String() string { return t.Lexeme }
