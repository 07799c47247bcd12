package template

import (
	"strings"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// Scanner partitions template source into segments.
type Scanner struct {
	input string
	pos   int // current byte offset in input
	start int // offset at start of current segment
}

// NewScanner creates a new scanner for the given input.
func NewScanner(input string) *Scanner {
	return &Scanner{input: input}
}

// Scan partitions the whole input. Output spans are left zero; the renderer
// assigns them. A *GrammarError is returned if a delimiter is unterminated.
func (s *Scanner) Scan() ([]Segment, error) {
	var segments []Segment

	for s.pos < len(s.input) {
		seg, err := s.nextSegment()
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}

	return segments, nil
}

// nextSegment scans one segment starting at the current position.
func (s *Scanner) nextSegment() (Segment, error) {
	s.start = s.pos

	switch {
	case s.matchString("{#"):
		return s.scanComment()
	case s.matchString("{{"):
		return s.scanExpression()
	case s.matchString("{%"):
		return s.scanStatement()
	default:
		return s.scanText(), nil
	}
}

// scanText scans literal SQL until a template delimiter or EOF.
func (s *Scanner) scanText() Segment {
	for s.pos < len(s.input) {
		if s.atDelimiter() {
			break
		}
		s.pos++
	}
	return Segment{Kind: Literal, Original: s.span()}
}

// scanComment scans a {# ... #} comment.
func (s *Scanner) scanComment() (Segment, error) {
	s.pos += 2
	end := strings.Index(s.input[s.pos:], "#}")
	if end < 0 {
		return Segment{}, NewGrammarError(s.input, s.openSpan(), "unclosed comment: missing '#}'")
	}
	s.pos += end + 2
	return Segment{Kind: Comment, Original: s.span()}, nil
}

// scanExpression scans a {{ expr }} expression. Only ref('name') is
// understood; anything else becomes an Unknown segment.
func (s *Scanner) scanExpression() (Segment, error) {
	s.pos += 2
	bodyStart := s.pos
	if !s.skipTo("}}") {
		return Segment{}, NewGrammarError(s.input, s.openSpan(), "unclosed expression: missing '}}'")
	}
	body := s.input[bodyStart:s.pos]
	s.pos += 2

	if name, ok := parseRef(body); ok {
		return Segment{Kind: TemplateExpr, Original: s.span(), Ref: name}, nil
	}
	return Segment{Kind: Unknown, Original: s.span()}, nil
}

// scanStatement scans a {% stmt %} block tag. Statements are never supported.
func (s *Scanner) scanStatement() (Segment, error) {
	s.pos += 2
	if !s.skipTo("%}") {
		return Segment{}, NewGrammarError(s.input, s.openSpan(), "unclosed statement: missing '%}'")
	}
	s.pos += 2
	return Segment{Kind: Unknown, Original: s.span()}, nil
}

// skipTo advances to the next occurrence of delim outside string literals.
func (s *Scanner) skipTo(delim string) bool {
	var quote byte
	for s.pos < len(s.input) {
		c := s.input[s.pos]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case s.matchString(delim):
			return true
		}
		s.pos++
	}
	return false
}

// atDelimiter reports whether a template delimiter starts at the current position.
func (s *Scanner) atDelimiter() bool {
	return s.matchString("{{") || s.matchString("{%") || s.matchString("{#")
}

// matchString checks if the input at current position matches str.
func (s *Scanner) matchString(str string) bool {
	return strings.HasPrefix(s.input[s.pos:], str)
}

func (s *Scanner) span() token.Span {
	return token.Span{Start: s.start, End: s.pos}
}

// openSpan covers the opening delimiter of an unterminated construct.
func (s *Scanner) openSpan() token.Span {
	return token.Span{Start: s.start, End: s.start + 2}
}

// parseRef recognizes `ref('name')` or `ref("name")` with optional whitespace.
func parseRef(body string) (string, bool) {
	rest := strings.TrimSpace(body)
	if !strings.HasPrefix(rest, "ref") {
		return "", false
	}
	rest = strings.TrimSpace(rest[len("ref"):])
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", false
	}
	arg := strings.TrimSpace(rest[1 : len(rest)-1])
	if len(arg) < 3 {
		return "", false
	}
	quote := arg[0]
	if (quote != '\'' && quote != '"') || arg[len(arg)-1] != quote {
		return "", false
	}
	name := arg[1 : len(arg)-1]
	if strings.IndexByte(name, quote) >= 0 {
		return "", false
	}
	return name, true
}
