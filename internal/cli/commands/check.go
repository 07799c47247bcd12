package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/leapstack-labs/dbt-analyzer/internal/analyzer"
	"github.com/leapstack-labs/dbt-analyzer/internal/cli/output"
	"github.com/leapstack-labs/dbt-analyzer/internal/project"
	"github.com/leapstack-labs/dbt-analyzer/internal/state"
	"github.com/spf13/cobra"
)

// ErrCheckFailed is returned when a check finds errors, or warnings under
// --strict.
var ErrCheckFailed = errors.New("check failed")

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Watch  bool
	Strict bool
	Format string // text, table, json
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Analyze models for template, syntax and lineage errors",
		Long: `Render, parse and resolve the lineage of every model in the project.

Models are resolved in dependency order, so a column selected from a ref()
is checked against the columns the referenced model actually produces.
Seeds, sources YAML and the configured warehouse provide the base tables.

With paths, only the given files and directories are reported. The rest of
the project is still analyzed so that their references resolve.

Output adapts to environment:
  - Terminal: Styled diagnostics
  - Piped/Scripted: Markdown
  - JSON: Machine-readable format`,
		Example: `  # Check the whole project
  dbt-analyzer check

  # Check one directory
  dbt-analyzer check models/marts

  # Also run sqlfluff on the rendered SQL
  dbt-analyzer check --lint --dialect bigquery

  # Re-run on every change
  dbt-analyzer check --watch

  # Export column lineage to SQLite
  dbt-analyzer check --state .dbt-analyzer/lineage.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run the check when model files change")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Fail on warnings as well as errors")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, table, json")
	cmd.Flags().Bool("lint", false, "Run sqlfluff on the rendered SQL")
	cmd.Flags().String("dialect", "", "sqlfluff dialect")
	cmd.Flags().String("state", "", "Path to a SQLite database to export lineage to")
	cmd.Flags().Bool("branch-labels", false, "Label UNION branches in lineage")
	cmd.Flags().Bool("expression-lineage", false, "Trace computed columns to their inputs")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "table", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runCheck(cmd *cobra.Command, paths []string, opts *CheckOptions) error {
	cc := NewCommandContext(cmd)
	switch opts.Format {
	case "", "text", "table":
	case "json":
		cc.WithFormat(cmd, "json")
	default:
		return fmt.Errorf("invalid format %q (valid: text, table, json)", opts.Format)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !opts.Watch {
		return checkOnce(ctx, cc, paths, opts)
	}

	if err := cc.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := checkOnce(ctx, cc, paths, opts); err != nil && !errors.Is(err, ErrCheckFailed) {
		return err
	}
	cc.Renderer.Muted(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", cc.relPath(cc.Cfg.ModelsDir)))

	w := &project.Watcher{
		Dir:    cc.Cfg.ModelsDir,
		Exts:   cc.Cfg.Extensions,
		Logger: cc.Logger,
	}
	return w.Watch(ctx, func(ctx context.Context) error {
		err := checkOnce(ctx, cc, paths, opts)
		if errors.Is(err, ErrCheckFailed) {
			return nil
		}
		return err
	})
}

// checkOnce runs one analysis, reports it and exports it when a state path
// is configured.
func checkOnce(ctx context.Context, cc *CommandContext, paths []string, opts *CheckOptions) error {
	report, err := cc.loadProject(ctx, paths)
	if err != nil {
		return err
	}

	var runID string
	if cc.Cfg.StatePath != "" {
		if runID, err = exportRun(ctx, cc, report); err != nil {
			return err
		}
	}

	r := cc.Renderer
	switch {
	case r.EffectiveMode() == output.ModeJSON:
		if err := r.JSON(checkJSON(cc, report, runID)); err != nil {
			return err
		}
	case opts.Format == "table":
		checkTable(cc, report)
	default:
		checkText(cc, report)
	}
	if runID != "" && r.EffectiveMode() != output.ModeJSON {
		r.Muted(fmt.Sprintf("Lineage exported to %s (run %s)", cc.relPath(cc.Cfg.StatePath), runID))
	}

	errs, warns := report.Errors(), report.Warnings()
	if errs > 0 || (opts.Strict && warns > 0) {
		return fmt.Errorf("%w: %d errors, %d warnings", ErrCheckFailed, errs, warns)
	}
	return nil
}

func exportRun(ctx context.Context, cc *CommandContext, report *project.Report) (string, error) {
	store, err := state.Open(ctx, cc.Cfg.StatePath, cc.Logger)
	if err != nil {
		return "", fmt.Errorf("failed to open state: %w", err)
	}
	defer func() { _ = store.Close() }()

	return store.SaveRun(ctx, cc.Cfg.ProjectRoot, report.Files)
}

func fileStatus(res *analyzer.Result) string {
	switch {
	case res.HasErrors():
		return "error"
	case res.HasWarnings():
		return "warning"
	default:
		return "ok"
	}
}

func diagnosticOutputs(diags []analyzer.Diagnostic) []output.DiagnosticOutput {
	out := make([]output.DiagnosticOutput, 0, len(diags))
	for _, d := range diags {
		out = append(out, output.DiagnosticOutput{
			Line:      d.Start.Line,
			Column:    d.Start.Column,
			EndLine:   d.End.Line,
			EndColumn: d.End.Column,
			Severity:  d.Severity.String(),
			Code:      d.Code,
			Source:    d.Source,
			Message:   d.Message,
		})
	}
	return out
}

func checkJSON(cc *CommandContext, report *project.Report, runID string) output.CheckOutput {
	out := output.CheckOutput{
		Files: make([]output.FileOutput, 0, len(report.Files)),
		Summary: output.CheckSummary{
			Files:    len(report.Files),
			Errors:   report.Errors(),
			Warnings: report.Warnings(),
			Millis:   report.Duration.Milliseconds(),
		},
		RunID: runID,
	}
	for _, f := range report.Files {
		fo := output.FileOutput{
			Path:        cc.relPath(f.File.Path),
			Model:       f.File.Name,
			Status:      fileStatus(f.Result),
			Refs:        f.Result.Refs(),
			Diagnostics: diagnosticOutputs(f.Result.Diagnostics),
		}
		if f.Result.Model != nil {
			fo.Columns = f.Result.Model.ColumnNames()
		}
		out.Files = append(out.Files, fo)
	}
	for _, c := range report.Cycles {
		out.Cycles = append(out.Cycles, c.Members)
	}
	return out
}

func checkText(cc *CommandContext, report *project.Report) {
	r := cc.Renderer
	markdown := r.EffectiveMode() == output.ModeMarkdown
	styles := r.Styles()

	r.Header(1, "Check")

	for _, f := range report.Files {
		if len(f.Result.Diagnostics) == 0 {
			continue
		}
		path := cc.relPath(f.File.Path)
		if markdown {
			r.Println(output.FormatHeader(2, path))
		} else {
			r.Println(styles.ModelPath.Render(path))
		}
		for _, d := range f.Result.Diagnostics {
			loc := fmt.Sprintf("%d:%d", d.Start.Line, d.Start.Column)
			switch {
			case markdown:
				r.Printf("- `%s` **%s** %s: %s\n", loc, output.Title(d.Severity.String()), d.Code, d.Message)
			default:
				r.Printf("  %s %s %s %s\n",
					styles.Muted.Render(loc),
					severityStyle(r, d.Severity).Render(d.Severity.String()),
					styles.Code.Render(d.Code),
					d.Message)
			}
		}
		r.Println("")
	}

	for _, c := range report.Cycles {
		r.Warning(c.Error())
	}

	summary := fmt.Sprintf("%d files, %d errors, %d warnings in %s",
		len(report.Files), report.Errors(), report.Warnings(), report.Duration.Round(time.Millisecond))
	switch {
	case report.Errors() > 0:
		r.Error(summary)
	case report.Warnings() > 0:
		r.Warning(summary)
	default:
		r.Success(summary)
	}
}

func checkTable(cc *CommandContext, report *project.Report) {
	r := cc.Renderer
	rows := make([][]string, 0, len(report.Files))
	for _, f := range report.Files {
		rows = append(rows, []string{
			cc.relPath(f.File.Path),
			fileStatus(f.Result),
			fmt.Sprint(count(f.Result, analyzer.SeverityError)),
			fmt.Sprint(count(f.Result, analyzer.SeverityWarning)),
		})
	}
	r.Table([]string{"Model", "Status", "Errors", "Warnings"}, rows)
	r.Println("")
	r.Printf("%d files, %d errors, %d warnings\n", len(report.Files), report.Errors(), report.Warnings())
}

func count(res *analyzer.Result, sev analyzer.Severity) int {
	n := 0
	for _, d := range res.Diagnostics {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

func severityStyle(r *output.Renderer, sev analyzer.Severity) lipgloss.Style {
	s := r.Styles()
	switch sev {
	case analyzer.SeverityError:
		return s.Error
	case analyzer.SeverityWarning:
		return s.Warning
	default:
		return s.Info
	}
}
