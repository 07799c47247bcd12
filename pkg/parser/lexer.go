package parser

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// Lexer tokenizes rendered SQL.
//
// Lexical errors do not stop the lexer: they are reported as ILLEGAL tokens
// whose Literal holds the error message, and the parser turns the first one
// into a SyntaxError.
type Lexer struct {
	input string
	pos   int // current position in input
	index *token.LineIndex
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		index: token.NewLineIndex(input),
	}
}

// ch returns the current byte, or 0 at EOF.
func (l *Lexer) ch() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

// peekChar returns the byte after the current one without advancing.
func (l *Lexer) peekChar() byte {
	if l.pos+1 >= len(l.input) {
		return 0
	}
	return l.input[l.pos+1]
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() token.Token {
	if msg, start, ok := l.skipWhitespaceAndComments(); !ok {
		return l.makeToken(token.ILLEGAL, msg, start)
	}

	start := l.pos
	if l.pos >= len(l.input) {
		return l.makeToken(token.EOF, "", start)
	}

	ch := l.ch()
	switch {
	case isIdentStart(ch):
		return l.readIdentifier()
	case isDigit(ch), ch == '.' && isDigit(l.peekChar()):
		return l.readNumber()
	case ch == '\'':
		return l.readString()
	case ch == '"':
		return l.readQuotedIdent()
	}

	l.pos++
	switch ch {
	case '+':
		return l.makeToken(token.PLUS, "+", start)
	case '-':
		return l.makeToken(token.MINUS, "-", start)
	case '*':
		return l.makeToken(token.STAR, "*", start)
	case '/':
		return l.makeToken(token.SLASH, "/", start)
	case '%':
		return l.makeToken(token.PERCENT, "%", start)
	case ',':
		return l.makeToken(token.COMMA, ",", start)
	case '.':
		return l.makeToken(token.DOT, ".", start)
	case '(':
		return l.makeToken(token.LPAREN, "(", start)
	case ')':
		return l.makeToken(token.RPAREN, ")", start)
	case '[':
		return l.makeToken(token.LBRACKET, "[", start)
	case ']':
		return l.makeToken(token.RBRACKET, "]", start)
	case ';':
		return l.makeToken(token.SEMI, ";", start)
	case '|':
		if l.ch() == '|' {
			l.pos++
			return l.makeToken(token.DPIPE, "||", start)
		}
	case ':':
		if l.ch() == ':' {
			l.pos++
			return l.makeToken(token.DCOLON, "::", start)
		}
		return l.makeToken(token.COLON, ":", start)
	case '=':
		switch l.ch() {
		case '>':
			l.pos++
			return l.makeToken(token.ARROW, "=>", start)
		case '=':
			l.pos++
			return l.makeToken(token.EQ, "==", start)
		}
		return l.makeToken(token.EQ, "=", start)
	case '!':
		if l.ch() == '=' {
			l.pos++
			return l.makeToken(token.NE, "!=", start)
		}
	case '<':
		switch l.ch() {
		case '=':
			l.pos++
			return l.makeToken(token.LE, "<=", start)
		case '>':
			l.pos++
			return l.makeToken(token.NE, "<>", start)
		}
		return l.makeToken(token.LT, "<", start)
	case '>':
		if l.ch() == '=' {
			l.pos++
			return l.makeToken(token.GE, ">=", start)
		}
		return l.makeToken(token.GT, ">", start)
	}

	return l.makeToken(token.ILLEGAL, fmt.Sprintf(ErrUnexpectedChar, ch), start)
}

// makeToken builds a token covering input[start:l.pos].
func (l *Lexer) makeToken(t token.TokenType, literal string, start int) token.Token {
	return token.Token{
		Type:    t,
		Literal: literal,
		Pos:     l.index.Position(start),
		End:     l.pos,
	}
}

// skipWhitespaceAndComments skips spaces, -- and // line comments, and
// /* */ block comments. It fails only on an unterminated block comment.
func (l *Lexer) skipWhitespaceAndComments() (string, int, bool) {
	for l.pos < len(l.input) {
		ch := l.ch()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f':
			l.pos++
		case ch == '-' && l.peekChar() == '-', ch == '/' && l.peekChar() == '/':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		case ch == '/' && l.peekChar() == '*':
			start := l.pos
			end := strings.Index(l.input[l.pos+2:], "*/")
			if end < 0 {
				l.pos = len(l.input)
				return ErrUnterminatedComment, start, false
			}
			l.pos += 2 + end + 2
		default:
			return "", 0, true
		}
	}
	return "", 0, true
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() token.Token {
	start := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	literal := l.input[start:l.pos]
	return l.makeToken(token.LookupIdent(literal), literal, start)
}

// readNumber reads an integer, decimal or exponent literal.
func (l *Lexer) readNumber() token.Token {
	start := l.pos
	for isDigit(l.ch()) {
		l.pos++
	}
	if l.ch() == '.' {
		l.pos++
		for isDigit(l.ch()) {
			l.pos++
		}
	}
	if c := l.ch(); c == 'e' || c == 'E' {
		save := l.pos
		l.pos++
		if c := l.ch(); c == '+' || c == '-' {
			l.pos++
		}
		if !isDigit(l.ch()) {
			l.pos = save
		}
		for isDigit(l.ch()) {
			l.pos++
		}
	}
	return l.makeToken(token.NUMBER, l.input[start:l.pos], start)
}

// readString reads a single-quoted string. Both '' and backslash escapes
// are accepted. The literal is the unescaped content.
func (l *Lexer) readString() token.Token {
	start := l.pos
	l.pos++ // opening quote

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == '\\' && l.pos+1 < len(l.input):
			sb.WriteByte(l.input[l.pos+1])
			l.pos += 2
		case ch == '\'' && l.peekChar() == '\'':
			sb.WriteByte('\'')
			l.pos += 2
		case ch == '\'':
			l.pos++
			return l.makeToken(token.STRING, sb.String(), start)
		default:
			sb.WriteByte(ch)
			l.pos++
		}
	}
	return l.makeToken(token.ILLEGAL, ErrUnterminatedString, start)
}

// readQuotedIdent reads a double-quoted identifier. The literal is the
// unquoted name with "" collapsed to ".
func (l *Lexer) readQuotedIdent() token.Token {
	start := l.pos
	l.pos++

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '"' {
			if l.peekChar() == '"' {
				sb.WriteByte('"')
				l.pos += 2
				continue
			}
			l.pos++
			return l.makeToken(token.QUOTED_IDENT, sb.String(), start)
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return l.makeToken(token.ILLEGAL, ErrUnterminatedIdent, start)
}

// Tokenize returns all tokens of input up to and including EOF.
func Tokenize(input string) []token.Token {
	l := NewLexer(input)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF {
			return tokens
		}
	}
}

func isIdentStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch == '$' || ch >= 0x80
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
