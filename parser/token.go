package parser

import "strings"

// TokenType identifies the kind of token produced by the lexer.
type TokenType int

const (
	TokenEOF     TokenType = iota
	TokenIllegal           // unrecognized character

	// Literals.
	TokenIdent
	TokenIntLit
	TokenFloatLit
	TokenStrLit

	// Operators. The literal keeps the spelling: "=" or "==", "!=" or "<>".
	TokenEq
	TokenNotEq
	TokenLt
	TokenGt
	TokenLtEq
	TokenGtEq
	TokenMinus

	// Punctuation.
	TokenLParen
	TokenRParen
	TokenComma
	TokenSemicolon
	TokenStar

	// Keywords.
	TokenSelect
	TokenFrom
	TokenWhere
	TokenInsert
	TokenInto
	TokenValues
	TokenUpdate
	TokenSet
	TokenDelete
	TokenCreate
	TokenDrop
	TokenTable
	TokenIndex
	TokenOn
	TokenShow
	TokenTables
	TokenAnd
	TokenIs
	TokenNot
	TokenNull
	TokenTrue
	TokenFalse
	TokenPrimary
	TokenKey
	TokenIf
	TokenExists
	TokenCount
)

var tokenNames = map[TokenType]string{
	TokenEOF:       "EOF",
	TokenIllegal:   "ILLEGAL",
	TokenIdent:     "IDENT",
	TokenIntLit:    "INT",
	TokenFloatLit:  "FLOAT",
	TokenStrLit:    "STRING",
	TokenEq:        "=",
	TokenNotEq:     "!=",
	TokenLt:        "<",
	TokenGt:        ">",
	TokenLtEq:      "<=",
	TokenGtEq:      ">=",
	TokenMinus:     "-",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenComma:     ",",
	TokenSemicolon: ";",
	TokenStar:      "*",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	for kw, tt := range keywords {
		if tt == t {
			return kw
		}
	}
	return "UNKNOWN"
}

// Token is a single lexical unit produced by the lexer.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // byte offset in the input
}

var keywords = map[string]TokenType{
	"SELECT":  TokenSelect,
	"FROM":    TokenFrom,
	"WHERE":   TokenWhere,
	"INSERT":  TokenInsert,
	"INTO":    TokenInto,
	"VALUES":  TokenValues,
	"UPDATE":  TokenUpdate,
	"SET":     TokenSet,
	"DELETE":  TokenDelete,
	"CREATE":  TokenCreate,
	"DROP":    TokenDrop,
	"TABLE":   TokenTable,
	"INDEX":   TokenIndex,
	"ON":      TokenOn,
	"SHOW":    TokenShow,
	"TABLES":  TokenTables,
	"AND":     TokenAnd,
	"IS":      TokenIs,
	"NOT":     TokenNot,
	"NULL":    TokenNull,
	"TRUE":    TokenTrue,
	"FALSE":   TokenFalse,
	"PRIMARY": TokenPrimary,
	"KEY":     TokenKey,
	"IF":      TokenIf,
	"EXISTS":  TokenExists,
	"COUNT":   TokenCount,
}

// LookupKeyword returns the keyword token type for ident, or TokenIdent
// if it is not a keyword. Type names are plain identifiers.
func LookupKeyword(ident string) TokenType {
	if tok, ok := keywords[strings.ToUpper(ident)]; ok {
		return tok
	}
	return TokenIdent
}
