package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes a SQL input string.
type Lexer struct {
	input string
	pos   int  // current byte position
	width int  // byte width of current rune
	ch    rune // current character, 0 at EOF
}

// NewLexer creates a lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	if len(input) > 0 {
		l.ch, l.width = utf8.DecodeRuneInString(input)
	}
	return l
}

func (l *Lexer) advance() {
	l.pos += l.width
	if l.pos >= len(l.input) {
		l.ch, l.width = 0, 0
		return
	}
	l.ch, l.width = utf8.DecodeRuneInString(l.input[l.pos:])
}

func (l *Lexer) peek() rune {
	next := l.pos + l.width
	if next >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[next:])
	return r
}

// single maps one-character tokens.
var single = map[rune]TokenType{
	'(': TokenLParen,
	')': TokenRParen,
	',': TokenComma,
	';': TokenSemicolon,
	'*': TokenStar,
	'-': TokenMinus,
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()
	start := l.pos

	if tt, ok := single[l.ch]; ok {
		ch := l.ch
		l.advance()
		return Token{Type: tt, Literal: string(ch), Pos: start}
	}

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Pos: start}
	case l.ch == '=':
		return l.operator(start, TokenEq, map[rune]TokenType{'=': TokenEq})
	case l.ch == '!':
		return l.operator(start, TokenIllegal, map[rune]TokenType{'=': TokenNotEq})
	case l.ch == '<':
		return l.operator(start, TokenLt, map[rune]TokenType{'=': TokenLtEq, '>': TokenNotEq})
	case l.ch == '>':
		return l.operator(start, TokenGt, map[rune]TokenType{'=': TokenGtEq})
	case l.ch == '\'':
		return l.readString(start)
	case l.ch == '"':
		return l.readQuotedIdent(start)
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peek())):
		return l.readNumber(start)
	case unicode.IsLetter(l.ch) || l.ch == '_':
		return l.readIdentOrKeyword(start)
	default:
		ch := l.ch
		l.advance()
		return Token{Type: TokenIllegal, Literal: string(ch), Pos: start}
	}
}

// operator lexes a one- or two-character operator: alone is the type of
// the first character by itself, pairs maps a second character to the
// type of the pair.
func (l *Lexer) operator(start int, alone TokenType, pairs map[rune]TokenType) Token {
	first := l.ch
	if tt, ok := pairs[l.peek()]; ok {
		second := l.peek()
		l.advance()
		l.advance()
		return Token{Type: tt, Literal: string(first) + string(second), Pos: start}
	}
	l.advance()
	return Token{Type: alone, Literal: string(first), Pos: start}
}

func (l *Lexer) skipWhitespace() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.advance()
		}
		if l.ch != '-' || l.peek() != '-' {
			return
		}
		for l.ch != 0 && l.ch != '\n' {
			l.advance()
		}
	}
}

// readString reads a single-quoted string; '' inside it is a quote.
func (l *Lexer) readString(start int) Token {
	l.advance() // skip opening quote
	var buf strings.Builder
	for {
		switch {
		case l.ch == 0:
			return Token{Type: TokenIllegal, Literal: buf.String(), Pos: start}
		case l.ch == '\'' && l.peek() == '\'':
			buf.WriteByte('\'')
			l.advance()
			l.advance()
		case l.ch == '\'':
			l.advance()
			return Token{Type: TokenStrLit, Literal: buf.String(), Pos: start}
		default:
			buf.WriteRune(l.ch)
			l.advance()
		}
	}
}

func (l *Lexer) readNumber(start int) Token {
	begin := l.pos
	isFloat := false
	for isDigit(l.ch) {
		l.advance()
	}
	if l.ch == '.' && isDigit(l.peek()) {
		isFloat = true
		l.advance()
		for isDigit(l.ch) {
			l.advance()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		isFloat = true
		l.advance()
		if l.ch == '+' || l.ch == '-' {
			l.advance()
		}
		for isDigit(l.ch) {
			l.advance()
		}
	}
	lit := l.input[begin:l.pos]
	if isFloat {
		return Token{Type: TokenFloatLit, Literal: lit, Pos: start}
	}
	return Token{Type: TokenIntLit, Literal: lit, Pos: start}
}

func (l *Lexer) readIdentOrKeyword(start int) Token {
	begin := l.pos
	for unicode.IsLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.advance()
	}
	literal := l.input[begin:l.pos]
	return Token{Type: LookupKeyword(literal), Literal: literal, Pos: start}
}

// readQuotedIdent reads a double-quoted identifier; "" inside it is a
// quote. Quoted identifiers are never keywords.
func (l *Lexer) readQuotedIdent(start int) Token {
	l.advance() // skip opening double-quote
	var buf strings.Builder
	for {
		switch {
		case l.ch == 0:
			return Token{Type: TokenIllegal, Literal: buf.String(), Pos: start}
		case l.ch == '"' && l.peek() == '"':
			buf.WriteByte('"')
			l.advance()
			l.advance()
		case l.ch == '"':
			l.advance()
			return Token{Type: TokenIdent, Literal: buf.String(), Pos: start}
		default:
			buf.WriteRune(l.ch)
			l.advance()
		}
	}
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }
