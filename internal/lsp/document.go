package lsp

import (
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
)

// Document is one open text document. Documents are immutable; an update
// replaces the stored value.
type Document struct {
	URI     string
	Content string
	Version int

	index    *token.LineIndex
	encoding PositionEncoding
}

func newDocument(uri, content string, version int, enc PositionEncoding) *Document {
	return &Document{
		URI:      uri,
		Content:  content,
		Version:  version,
		index:    token.NewLineIndex(content),
		encoding: enc,
	}
}

// DocumentStore keeps the text and version of open documents.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
	encoding  PositionEncoding
}

// NewDocumentStore creates a new document store using UTF-16 positions.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]*Document),
		encoding:  PositionEncodingUTF16,
	}
}

// SetEncoding sets the position encoding of documents opened afterwards.
func (s *DocumentStore) SetEncoding(enc PositionEncoding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encoding = enc
}

// Snapshot returns a document for content that is not stored, using the
// store's position encoding.
func (s *DocumentStore) Snapshot(uri, content string, version int) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newDocument(uri, content, version, s.encoding)
}

// Open adds or replaces a document.
func (s *DocumentStore) Open(uri string, content string, version int) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := newDocument(uri, content, version, s.encoding)
	s.documents[uri] = doc
	return doc
}

// Update replaces the content of an open document. It returns nil when the
// document is not open or version is older than the stored one.
func (s *DocumentStore) Update(uri string, content string, version int) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.documents[uri]
	if !ok || version < old.Version {
		return nil
	}
	doc := newDocument(uri, content, version, s.encoding)
	s.documents[uri] = doc
	return doc
}

// Close removes a document from the store.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, uri)
}

// Get retrieves a document by URI.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.documents[uri]
}

// List returns all open documents, sorted by URI.
func (s *DocumentStore) List() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}

// PositionToOffset converts a Position to a byte offset. Positions past the
// end of a line or of the document are clamped, and a UTF-16 position inside
// a surrogate pair snaps to the start of its character.
func (d *Document) PositionToOffset(pos Position) int {
	if d == nil {
		return 0
	}
	start, ok := d.index.Offset(int(pos.Line), 0)
	if !ok {
		return len(d.Content)
	}
	if d.encoding == PositionEncodingUTF8 {
		off, _ := d.index.Offset(int(pos.Line), int(pos.Character))
		return off
	}

	end, _ := d.index.Offset(int(pos.Line), len(d.Content))
	off, units := start, 0
	for off < end {
		r, size := utf8.DecodeRuneInString(d.Content[off:])
		n := utf16Len(r)
		if units+n > int(pos.Character) {
			break
		}
		units += n
		off += size
	}
	return off
}

// OffsetToPosition converts a byte offset to a zero-based Position.
func (d *Document) OffsetToPosition(offset int) Position {
	if d == nil {
		return Position{}
	}
	p := d.index.Position(offset)
	col := p.Column - 1
	if d.encoding != PositionEncodingUTF8 {
		col = 0
		for _, r := range d.Content[p.Offset-(p.Column-1) : p.Offset] {
			col += utf16Len(r)
		}
	}
	return Position{
		Line:      uint32(p.Line - 1), //nolint:gosec // G115: Line is at least 1
		Character: uint32(col),        //nolint:gosec // G115: col is not negative
	}
}

// utf16Len is the number of UTF-16 code units r encodes to. Invalid bytes
// decode to utf8.RuneError and count as one unit.
func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

// SpanToRange converts a byte span to a Range.
func (d *Document) SpanToRange(span token.Span) Range {
	return Range{Start: d.OffsetToPosition(span.Start), End: d.OffsetToPosition(span.End)}
}

// GetTextBefore returns the text before the given position.
func (d *Document) GetTextBefore(pos Position) string {
	offset := d.PositionToOffset(pos)
	if offset <= 0 {
		return ""
	}
	return d.Content[:offset]
}

// GetWordAtPosition returns the identifier under pos and its range.
func (d *Document) GetWordAtPosition(pos Position) (string, Range) {
	span, ok := d.wordSpan(d.PositionToOffset(pos))
	if !ok {
		return "", Range{Start: pos, End: pos}
	}
	return d.Content[span.Start:span.End], d.SpanToRange(span)
}

func (d *Document) wordSpan(offset int) (token.Span, bool) {
	if offset > len(d.Content) {
		return token.Span{}, false
	}
	start := offset
	for start > 0 && isIdentChar(d.Content[start-1]) {
		start--
	}
	end := offset
	for end < len(d.Content) && isIdentChar(d.Content[end]) {
		end++
	}
	if start == end {
		return token.Span{}, false
	}
	return token.Span{Start: start, End: end}, true
}

func isIdentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

// URIToPath converts a file:// URI to a file system path. Other strings are
// returned unchanged.
func URIToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	p := u.Path
	// file:///C:/x parses to /C:/x
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
		p = p[1:]
	}
	return filepath.FromSlash(p)
}

// PathToURI converts a file system path to a file:// URI.
func PathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
