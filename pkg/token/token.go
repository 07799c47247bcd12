// Package token defines source positions, spans and the token types of the
// SQL subset understood by the parser.
package token

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

//nolint:revive // QUOTED_IDENT and MINUS_KW follow the ALL_CAPS token convention
const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT        // identifier
	QUOTED_IDENT // "identifier"
	NUMBER       // 123, 45.67, 1e10
	STRING       // 'hello'

	// Operators
	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	PERCENT  // %
	DPIPE    // ||
	EQ       // =
	NE       // != or <>
	LT       // <
	GT       // >
	LE       // <=
	GE       // >=
	DOT      // .
	COMMA    // ,
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]
	COLON    // :
	DCOLON   // ::
	ARROW    // =>
	SEMI     // ;

	keywordStart

	// Keywords (alphabetical)
	ALL
	ALTER
	AND
	AS
	ASC
	BETWEEN
	BY
	CASE
	CAST
	CREATE
	CROSS
	DELETE
	DESC
	DISTINCT
	DROP
	ELSE
	END
	EXCEPT
	EXISTS
	FALSE
	FIRST
	FROM
	FULL
	GROUP
	HAVING
	ILIKE
	IN
	INNER
	INSERT
	INTERSECT
	IS
	JOIN
	LAST
	LATERAL
	LEFT
	LIKE
	LIMIT
	MERGE
	MINUS_KW
	NATURAL
	NOT
	NULL
	NULLS
	OFFSET
	ON
	OR
	ORDER
	OUTER
	OVER
	QUALIFY
	RECURSIVE
	RIGHT
	SELECT
	TABLE
	THEN
	TRUE
	TRUNCATE
	UNION
	UPDATE
	USING
	WHEN
	WHERE
	WINDOW
	WITH

	keywordEnd
)

var tokenNames = map[TokenType]string{
	EOF:          "EOF",
	ILLEGAL:      "ILLEGAL",
	IDENT:        "IDENT",
	QUOTED_IDENT: "QUOTED_IDENT",
	NUMBER:       "NUMBER",
	STRING:       "STRING",

	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	PERCENT:  "%",
	DPIPE:    "||",
	EQ:       "=",
	NE:       "<>",
	LT:       "<",
	GT:       ">",
	LE:       "<=",
	GE:       ">=",
	DOT:      ".",
	COMMA:    ",",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACKET: "[",
	RBRACKET: "]",
	COLON:    ":",
	DCOLON:   "::",
	ARROW:    "=>",
	SEMI:     ";",
}

// keywords maps upper-case keyword text to its token type.
var keywords = map[string]TokenType{
	"ALL":       ALL,
	"ALTER":     ALTER,
	"AND":       AND,
	"AS":        AS,
	"ASC":       ASC,
	"BETWEEN":   BETWEEN,
	"BY":        BY,
	"CASE":      CASE,
	"CAST":      CAST,
	"CREATE":    CREATE,
	"CROSS":     CROSS,
	"DELETE":    DELETE,
	"DESC":      DESC,
	"DISTINCT":  DISTINCT,
	"DROP":      DROP,
	"ELSE":      ELSE,
	"END":       END,
	"EXCEPT":    EXCEPT,
	"EXISTS":    EXISTS,
	"FALSE":     FALSE,
	"FIRST":     FIRST,
	"FROM":      FROM,
	"FULL":      FULL,
	"GROUP":     GROUP,
	"HAVING":    HAVING,
	"ILIKE":     ILIKE,
	"IN":        IN,
	"INNER":     INNER,
	"INSERT":    INSERT,
	"INTERSECT": INTERSECT,
	"IS":        IS,
	"JOIN":      JOIN,
	"LAST":      LAST,
	"LATERAL":   LATERAL,
	"LEFT":      LEFT,
	"LIKE":      LIKE,
	"LIMIT":     LIMIT,
	"MERGE":     MERGE,
	"MINUS":     MINUS_KW,
	"NATURAL":   NATURAL,
	"NOT":       NOT,
	"NULL":      NULL,
	"NULLS":     NULLS,
	"OFFSET":    OFFSET,
	"ON":        ON,
	"OR":        OR,
	"ORDER":     ORDER,
	"OUTER":     OUTER,
	"OVER":      OVER,
	"QUALIFY":   QUALIFY,
	"RECURSIVE": RECURSIVE,
	"RIGHT":     RIGHT,
	"SELECT":    SELECT,
	"TABLE":     TABLE,
	"THEN":      THEN,
	"TRUE":      TRUE,
	"TRUNCATE":  TRUNCATE,
	"UNION":     UNION,
	"UPDATE":    UPDATE,
	"USING":     USING,
	"WHEN":      WHEN,
	"WHERE":     WHERE,
	"WINDOW":    WINDOW,
	"WITH":      WITH,
}

func init() {
	for text, t := range keywords {
		tokenNames[t] = text
	}
}

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// IsKeyword reports whether t is a keyword token.
func (t TokenType) IsKeyword() bool {
	return t > keywordStart && t < keywordEnd
}

// LookupIdent returns the keyword token for ident, or IDENT.
func LookupIdent(ident string) TokenType {
	if t, ok := keywords[strings.ToUpper(ident)]; ok {
		return t
	}
	return IDENT
}

// Token is a lexical token of the rendered SQL.
type Token struct {
	Type    TokenType
	Literal string // raw text; quoted identifiers and strings are unquoted
	Pos     Position
	End     int // byte offset just past the token
}

// Span returns the byte range covered by the token.
func (t Token) Span() Span {
	return Span{Start: t.Pos.Offset, End: t.End}
}
