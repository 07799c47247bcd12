package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/dbt-analyzer/internal/cli/output"
	"github.com/leapstack-labs/dbt-analyzer/pkg/lineage"
	"github.com/spf13/cobra"
)

// LineageOptions holds options for the lineage command.
type LineageOptions struct {
	Column string
}

// NewLineageCommand creates the lineage command.
func NewLineageCommand() *cobra.Command {
	opts := &LineageOptions{}

	cmd := &cobra.Command{
		Use:   "lineage <file>",
		Short: "Show column lineage for a model",
		Long: `Resolve a model against the rest of the project and show, for every output
column, where it comes from.

Each column's direct source is followed upstream through CTEs and referenced
models until it reaches a base table, a computed or UNION column, or a
column whose origin is unknown.`,
		Example: `  # Show lineage for every column
  dbt-analyzer lineage models/marts/customer_orders.sql

  # Trace one column
  dbt-analyzer lineage models/marts/customer_orders.sql --column customer_name

  # Output as JSON
  dbt-analyzer lineage models/marts/customer_orders.sql --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLineage(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Column, "column", "c", "", "Only show this column")

	return cmd
}

func runLineage(cmd *cobra.Command, path string, opts *LineageOptions) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f, err := cc.analyzeFile(ctx, path)
	if err != nil {
		return err
	}
	res := f.Result

	out := output.LineageOutput{
		Model:       f.File.Name,
		File:        cc.relPath(f.File.Path),
		Columns:     []output.ColumnLineage{},
		Diagnostics: diagnosticOutputs(res.Diagnostics),
	}

	if res.Model == nil {
		if r.EffectiveMode() == output.ModeJSON {
			if err := r.JSON(out); err != nil {
				return err
			}
		} else {
			for _, d := range res.Diagnostics {
				r.Error(fmt.Sprintf("%s:%s", out.File, d))
			}
		}
		return fmt.Errorf("failed to resolve lineage of %s", f.File.Name)
	}

	columns := res.Model.Columns
	if opts.Column != "" {
		col, ok := res.Model.Column(opts.Column)
		if !ok {
			return fmt.Errorf("model %s has no column %q (columns: %s)",
				f.File.Name, opts.Column, strings.Join(res.Model.ColumnNames(), ", "))
		}
		columns = []*lineage.Column{col}
	}

	for _, col := range columns {
		trace := lineage.Walk(res.Model.Scope(), col)
		hops := make([]string, len(trace.Hops))
		for i, h := range trace.Hops {
			hops[i] = h.String()
		}
		out.Columns = append(out.Columns, output.ColumnLineage{
			Name:   col.Name,
			Source: col.Source.String(),
			Kind:   col.Source.Kind.String(),
			Hops:   hops,
			End:    trace.End.String(),
		})
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		lineageMarkdown(r, out)
	default:
		lineageText(r, out)
	}
	return nil
}

func lineageText(r *output.Renderer, out output.LineageOutput) {
	r.Header(1, fmt.Sprintf("Lineage: %s", out.Model))

	rows := make([][]string, 0, len(out.Columns))
	for _, c := range out.Columns {
		rows = append(rows, []string{c.Name, c.Kind, traceString(c), c.End})
	}
	r.Table([]string{"Column", "Source", "Trace", "End"}, rows)

	for _, d := range out.Diagnostics {
		r.Warning(fmt.Sprintf("%s:%d:%d: %s %s", out.File, d.Line, d.Column, d.Code, d.Message))
	}
}

func lineageMarkdown(r *output.Renderer, out output.LineageOutput) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Lineage: %s", out.Model)))
	r.Println("")
	r.Println(output.FormatKeyValue("File", out.File))
	r.Println("")

	for _, c := range out.Columns {
		r.Println(output.FormatHeader(2, c.Name))
		r.Println(output.FormatKeyValue("Source", c.Source))
		r.Println(output.FormatKeyValue("Trace", "`"+traceString(c)+"`"))
		r.Println(output.FormatKeyValue("End", c.End))
		r.Println("")
	}
}

func traceString(c output.ColumnLineage) string {
	return strings.Join(append([]string{c.Name}, c.Hops...), " -> ")
}
