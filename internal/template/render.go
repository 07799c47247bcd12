package template

import "strings"

// Rendered is the output of one template expansion.
type Rendered struct {
	Source string       // original template source
	Output string       // plain SQL
	Map    *PositionMap // output -> original offsets
}

// ScanAndRender scans source and renders it to plain SQL.
//
// If the source contains any construct other than ref() expressions and
// comments, the whole file is rejected with *UnsupportedConstructError and no
// output is returned.
func ScanAndRender(source string) (*Rendered, error) {
	segments, err := NewScanner(source).Scan()
	if err != nil {
		return nil, err
	}
	return Render(source, segments)
}

// Render concatenates the expansions of scanned segments and assigns their
// output spans.
func Render(source string, segments []Segment) (*Rendered, error) {
	for _, seg := range segments {
		if seg.Kind == Unknown {
			return nil, NewUnsupportedConstructError(source, seg.Original)
		}
	}

	var out strings.Builder
	out.Grow(len(source))

	mapped := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		text := seg.expansion(source)
		seg.Output.Start = out.Len()
		out.WriteString(text)
		seg.Output.End = out.Len()
		mapped = append(mapped, seg)
	}

	return &Rendered{
		Source: source,
		Output: out.String(),
		Map:    NewPositionMap(mapped),
	}, nil
}

// Refs returns the names passed to ref(), in source order without duplicates.
func (r *Rendered) Refs() []string {
	var refs []string
	seen := make(map[string]bool)
	for _, seg := range r.Map.segments {
		if seg.Kind != TemplateExpr || seen[seg.Ref] {
			continue
		}
		seen[seg.Ref] = true
		refs = append(refs, seg.Ref)
	}
	return refs
}
