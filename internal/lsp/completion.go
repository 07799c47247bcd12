package lsp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/dbt-analyzer/pkg/lineage"
)

// sqlKeywords for basic SQL completion
var sqlKeywords = []CompletionItem{
	{Label: "SELECT", Kind: CompletionItemKindKeyword},
	{Label: "FROM", Kind: CompletionItemKindKeyword},
	{Label: "WHERE", Kind: CompletionItemKindKeyword},
	{Label: "GROUP BY", Kind: CompletionItemKindKeyword},
	{Label: "ORDER BY", Kind: CompletionItemKindKeyword},
	{Label: "HAVING", Kind: CompletionItemKindKeyword},
	{Label: "LIMIT", Kind: CompletionItemKindKeyword},
	{Label: "AS", Kind: CompletionItemKindKeyword},
	{Label: "AND", Kind: CompletionItemKindKeyword},
	{Label: "OR", Kind: CompletionItemKindKeyword},
	{Label: "NOT", Kind: CompletionItemKindKeyword},
	{Label: "IN", Kind: CompletionItemKindKeyword},
	{Label: "IS NULL", Kind: CompletionItemKindKeyword},
	{Label: "IS NOT NULL", Kind: CompletionItemKindKeyword},
	{Label: "DISTINCT", Kind: CompletionItemKindKeyword},
	{Label: "CASE", Kind: CompletionItemKindKeyword},
	{Label: "WHEN", Kind: CompletionItemKindKeyword},
	{Label: "THEN", Kind: CompletionItemKindKeyword},
	{Label: "ELSE", Kind: CompletionItemKindKeyword},
	{Label: "END", Kind: CompletionItemKindKeyword},
	{Label: "WITH", Kind: CompletionItemKindKeyword},
	{Label: "UNION", Kind: CompletionItemKindKeyword},
	{Label: "UNION ALL", Kind: CompletionItemKindKeyword},
}

var (
	// refCall matches a complete ref('name') call.
	refCall = regexp.MustCompile(`\bref\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	// openRef matches an unfinished ref(' argument at the end of the text.
	openRef = regexp.MustCompile(`\bref\s*\(\s*['"]([\w.]*)$`)
	// clauseKeyword matches the keywords that decide column or table context.
	clauseKeyword = regexp.MustCompile(`(?i)\b(select|from|where|group\s+by|order\s+by|having|on)\b`)
)

// getCompletions returns completion items for the given position.
func (s *Server) getCompletions(params CompletionParams) []CompletionItem {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}

	before := doc.GetTextBefore(params.Position)
	idx := s.currentIndex()

	if prefix, ok := refPrefix(before); ok {
		return s.modelCompletions(idx, prefix)
	}

	prefix := wordPrefix(before)
	var items []CompletionItem
	switch lastClause(before) {
	case "from":
		items = append(items, s.tableCompletions(idx, prefix)...)
	case "":
	default:
		items = append(items, s.columnCompletions(idx, doc.URI, prefix)...)
	}

	for _, kw := range sqlKeywords {
		if hasPrefixFold(kw.Label, prefix) {
			items = append(items, kw)
		}
	}
	return items
}

// modelCompletions offers project model names inside ref('.
func (s *Server) modelCompletions(idx *projectIndex, prefix string) []CompletionItem {
	var items []CompletionItem
	for _, name := range idx.names {
		if !hasPrefixFold(name, prefix) {
			continue
		}
		items = append(items, CompletionItem{
			Label:  name,
			Kind:   CompletionItemKindModule,
			Detail: relPath(s.projectRoot, idx.paths[name]),
		})
	}
	return items
}

// tableCompletions offers catalog tables after FROM.
func (s *Server) tableCompletions(idx *projectIndex, prefix string) []CompletionItem {
	var items []CompletionItem
	for _, name := range idx.tables {
		if !hasPrefixFold(name, prefix) {
			continue
		}
		item := CompletionItem{Label: name, Kind: CompletionItemKindReference, Detail: "catalog table"}
		if m, ok := idx.model(name); ok {
			item.Documentation = strings.Join(m.ColumnNames(), ", ")
		}
		items = append(items, item)
	}
	return items
}

// columnCompletions offers the columns of the models a document refs.
func (s *Server) columnCompletions(idx *projectIndex, uri, prefix string) []CompletionItem {
	a := s.provider.Get(uri)
	if a == nil {
		return nil
	}

	seen := make(map[string]bool)
	var items []CompletionItem
	for _, ref := range a.Result.Refs() {
		m, ok := idx.model(ref)
		if !ok {
			continue
		}
		for _, c := range m.Columns {
			if seen[c.Name] || !hasPrefixFold(c.Name, prefix) {
				continue
			}
			seen[c.Name] = true
			items = append(items, CompletionItem{
				Label:  c.Name,
				Kind:   CompletionItemKindField,
				Detail: ref + "." + c.Name,
			})
		}
	}
	return items
}

// refPrefix reports whether before ends inside the argument of ref(' within
// a template expression, and returns the partial name.
func refPrefix(before string) (string, bool) {
	open := strings.LastIndex(before, "{{")
	if open == -1 || strings.LastIndex(before, "}}") > open {
		return "", false
	}
	m := openRef.FindStringSubmatch(before[open:])
	if m == nil {
		return "", false
	}
	return m[1], true
}

// wordPrefix returns the identifier being typed at the end of before.
func wordPrefix(before string) string {
	start := len(before)
	for start > 0 && isIdentChar(before[start-1]) {
		start--
	}
	return before[start:]
}

// lastClause returns the last clause keyword in before, lowercased, with
// ORDER BY, GROUP BY, HAVING and ON reported as "where".
func lastClause(before string) string {
	all := clauseKeyword.FindAllStringSubmatch(before, -1)
	if len(all) == 0 {
		return ""
	}
	switch kw := strings.ToLower(all[len(all)-1][1]); kw {
	case "select", "from", "where":
		return kw
	default:
		return "where"
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// refAt returns the model named by the ref() call covering offset.
func refAt(content string, offset int) (string, bool) {
	for _, m := range refCall.FindAllStringSubmatchIndex(content, -1) {
		if offset >= m[0] && offset < m[1] {
			return content[m[2]:m[3]], true
		}
	}
	return "", false
}

// getHover shows the lineage of an output column, or the columns of the
// model named by a ref().
func (s *Server) getHover(params HoverParams) *Hover {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}

	word, rng := doc.GetWordAtPosition(params.Position)
	if word == "" {
		return nil
	}

	if name, ok := refAt(doc.Content, doc.PositionToOffset(params.Position)); ok {
		return s.modelHover(name, rng)
	}

	a := s.provider.Get(doc.URI)
	if a == nil || a.Result.Model == nil {
		return nil
	}
	col, ok := a.Result.Model.Column(word)
	if !ok {
		return nil
	}

	trace := lineage.Walk(a.Result.Model.Scope(), col)
	return &Hover{
		Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: formatColumnHover(a.Result.Name, col, trace)},
		Range:    &rng,
	}
}

func (s *Server) modelHover(name string, rng Range) *Hover {
	idx := s.currentIndex()
	m, ok := idx.model(name)
	if !ok {
		return &Hover{
			Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: fmt.Sprintf("**%s**\n\nNot resolved in this project.", name)},
			Range:    &rng,
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**", name)
	if path, ok := idx.paths[name]; ok {
		fmt.Fprintf(&sb, " (`%s`)", relPath(s.projectRoot, path))
	}
	sb.WriteString("\n\n")
	for _, c := range m.Columns {
		fmt.Fprintf(&sb, "- `%s` %s\n", c.Name, c.Source.Kind)
	}
	return &Hover{
		Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: sb.String()},
		Range:    &rng,
	}
}

func formatColumnHover(model string, col *lineage.Column, trace *lineage.Trace) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s.%s** (%s)\n\n", model, col.Name, col.Source.Kind)
	sb.WriteString("```text\n")
	sb.WriteString(trace.String())
	sb.WriteString("\n```\n")

	if refs := trace.Source.References(); trace.End != lineage.EndBaseTable && len(refs) > 0 {
		names := make([]string, len(refs))
		for i, r := range refs {
			names[i] = "`" + r.String() + "`"
		}
		fmt.Fprintf(&sb, "\nUpstream: %s\n", strings.Join(names, ", "))
	}
	return sb.String()
}

// getDefinition jumps from a ref() to the model file it names.
func (s *Server) getDefinition(params DefinitionParams) *Location {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}

	name, ok := refAt(doc.Content, doc.PositionToOffset(params.Position))
	if !ok {
		return nil
	}
	path, ok := s.currentIndex().paths[name]
	if !ok {
		return nil
	}
	return &Location{URI: PathToURI(path)}
}
