package token

import "sort"

// Position represents a location in source text.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number (bytes)
	Offset int // 0-based byte offset
}

// IsValid returns true if the position is valid (line > 0).
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Span is a half-open byte range [Start, End) in a single text.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// IsEmpty reports whether the span covers no bytes.
func (s Span) IsEmpty() bool {
	return s.End <= s.Start
}

// Contains returns true if the span contains the given offset.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

// Cover returns the smallest span containing both s and o.
func (s Span) Cover(o Span) Span {
	out := s
	if o.Start < out.Start {
		out.Start = o.Start
	}
	if o.End > out.End {
		out.End = o.End
	}
	return out
}

// LineIndex converts byte offsets to line/column positions and back.
type LineIndex struct {
	size  int
	lines []int // byte offsets of line starts
}

// NewLineIndex builds a line index for text.
func NewLineIndex(text string) *LineIndex {
	lines := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &LineIndex{size: len(text), lines: lines}
}

// LineCount returns the number of lines in the indexed text.
func (x *LineIndex) LineCount() int {
	return len(x.lines)
}

// Position returns the position of offset. Offsets outside the text are clamped.
func (x *LineIndex) Position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > x.size {
		offset = x.size
	}
	line := sort.Search(len(x.lines), func(i int) bool { return x.lines[i] > offset }) - 1
	return Position{
		Line:   line + 1,
		Column: offset - x.lines[line] + 1,
		Offset: offset,
	}
}

// Offset returns the byte offset of a 0-based line and column.
// The second result is false when the line does not exist.
func (x *LineIndex) Offset(line, col int) (int, bool) {
	if line < 0 || line >= len(x.lines) || col < 0 {
		return 0, false
	}
	end := x.size
	if line+1 < len(x.lines) {
		end = x.lines[line+1]
	}
	off := x.lines[line] + col
	if off > end {
		off = end
	}
	return off, true
}
