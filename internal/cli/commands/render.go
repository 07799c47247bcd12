package commands

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/dbt-analyzer/internal/cli/output"
	"github.com/leapstack-labs/dbt-analyzer/internal/template"
	"github.com/leapstack-labs/dbt-analyzer/pkg/token"
	"github.com/spf13/cobra"
)

// RenderOptions holds options for the render command.
type RenderOptions struct {
	Map bool
}

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	opts := &RenderOptions{}
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a model's SQL with ref() calls expanded",
		Long: `Render the plain SQL for a model file: every {{ ref('name') }} is replaced
by the model name and comments are dropped.

Files using any other template construct are rejected.

Output adapts to environment:
  - Terminal: Plain SQL (suitable for syntax highlighting)
  - Piped/Scripted: Markdown with code block`,
		Example: `  # Render a model's SQL
  dbt-analyzer render models/marts/orders.sql

  # Show which source bytes produced which output bytes
  dbt-analyzer render models/marts/orders.sql --map

  # Render as JSON
  dbt-analyzer render models/marts/orders.sql --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Map, "map", false, "Print the position map")

	return cmd
}

func runRender(cmd *cobra.Command, path string, opts *RenderOptions) error {
	r := NewCommandContext(cmd).Renderer

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model: %w", err)
	}
	rendered, err := template.ScanAndRender(string(src))
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := output.RenderOutput{File: path, SQL: rendered.Output, Refs: rendered.Refs()}
		if opts.Map {
			out.Segments = segmentOutputs(rendered)
		}
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("Rendered SQL: %s", path)))
		r.Println("")
		r.Println(output.FormatCodeBlock("sql", rendered.Output))
	default:
		r.Println(rendered.Output)
	}

	if opts.Map {
		r.Println("")
		renderMap(r, rendered)
	}
	return nil
}

func segmentOutputs(rendered *template.Rendered) []output.SegmentOutput {
	segs := rendered.Map.Segments()
	out := make([]output.SegmentOutput, 0, len(segs))
	for _, s := range segs {
		out = append(out, output.SegmentOutput{
			Kind:        s.Kind.String(),
			SourceStart: s.Original.Start,
			SourceEnd:   s.Original.End,
			OutputStart: s.Output.Start,
			OutputEnd:   s.Output.End,
			Ref:         s.Ref,
		})
	}
	return out
}

// renderMap prints one row per segment with source and output positions.
func renderMap(r *output.Renderer, rendered *template.Rendered) {
	src := token.NewLineIndex(rendered.Source)
	out := token.NewLineIndex(rendered.Output)

	rows := make([][]string, 0, len(rendered.Map.Segments()))
	for _, s := range rendered.Map.Segments() {
		rows = append(rows, []string{
			s.Kind.String(),
			spanString(src, s.Original),
			spanString(out, s.Output),
			s.Ref,
		})
	}
	r.Table([]string{"Kind", "Source", "Output", "Ref"}, rows)
}

func spanString(idx *token.LineIndex, span token.Span) string {
	start, end := idx.Position(span.Start), idx.Position(span.End)
	return fmt.Sprintf("%d:%d-%d:%d", start.Line, start.Column, end.Line, end.Column)
}
