package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/dbt-analyzer/internal/cli/config"
	"github.com/leapstack-labs/dbt-analyzer/internal/cli/output"
	"github.com/leapstack-labs/dbt-analyzer/internal/cli/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewCheckCommand(), "check [paths...]", []string{"watch", "strict", "format", "lint", "dialect", "state", "branch-labels", "expression-lineage"}},
		{NewRenderCommand(), "render <file>", []string{"map"}},
		{NewLineageCommand(), "lineage <file>", []string{"column"}},
		{NewLSPCommand(), "lsp", nil},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Long, "Long should not be empty")
			assert.NotEmpty(t, tt.cmd.Example, "Example should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

// run executes cmd as a subcommand of a parent that loads the project's
// config from the parsed flags, as the root command does.
func run(t *testing.T, root, format string, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()

	parent := &cobra.Command{
		Use: "dbt-analyzer",
		PersistentPreRunE: func(c *cobra.Command, _ []string) error {
			config.ResetConfig()
			cfg, err := config.LoadConfig(filepath.Join(root, "dbt-analyzer.yaml"), c.Flags())
			if err != nil {
				return err
			}
			c.SetContext(config.WithConfig(c.Context(), cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	parent.PersistentFlags().StringP("output", "o", "", "")
	parent.PersistentFlags().Bool("no-color", false, "")
	parent.AddCommand(cmd)

	var out, errOut bytes.Buffer
	parent.SetOut(&out)
	parent.SetErr(&errOut)
	parent.SetArgs(append([]string{cmd.Name(), "--output", format, "--no-color"}, args...))

	err := parent.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), s)
	return v
}

func TestCheck(t *testing.T) {
	t.Run("clean project markdown", func(t *testing.T) {
		root := testutil.SetupTestProject(t)
		out, _, err := run(t, root, "markdown", NewCheckCommand())
		require.NoError(t, err)
		testutil.AssertNoANSI(t, out)
		assert.Contains(t, out, "# Check")
		assert.Contains(t, out, "3 files, 0 errors, 0 warnings")
	})

	t.Run("json", func(t *testing.T) {
		root := testutil.SetupTestProject(t)
		out, _, err := run(t, root, "json", NewCheckCommand())
		require.NoError(t, err)

		got := decode[output.CheckOutput](t, out)
		assert.Equal(t, 3, got.Summary.Files)
		assert.Zero(t, got.Summary.Errors)
		assert.Empty(t, got.RunID)

		var paths []string
		for _, f := range got.Files {
			paths = append(paths, f.Path)
			assert.Equal(t, "ok", f.Status, f.Path)
		}
		assert.Equal(t, []string{
			"models/marts/customer_orders.sql",
			"models/staging/stg_customers.sql",
			"models/staging/stg_orders.sql",
		}, paths)
		assert.Equal(t, []string{"stg_customers", "stg_orders"}, got.Files[0].Refs)
		assert.Equal(t, []string{"customer_id", "customer_name", "amount"}, got.Files[0].Columns)
	})

	t.Run("format flag overrides output", func(t *testing.T) {
		root := testutil.SetupTestProject(t)
		out, _, err := run(t, root, "markdown", NewCheckCommand(), "--format", "json")
		require.NoError(t, err)
		assert.Equal(t, 3, decode[output.CheckOutput](t, out).Summary.Files)
	})

	t.Run("table", func(t *testing.T) {
		root := testutil.SetupTestProject(t)
		out, _, err := run(t, root, "markdown", NewCheckCommand(), "--format", "table")
		require.NoError(t, err)
		assert.Contains(t, out, "| Model")
		assert.Contains(t, out, "models/staging/stg_orders.sql")
	})

	t.Run("invalid format", func(t *testing.T) {
		root := testutil.SetupTestProject(t)
		_, _, err := run(t, root, "markdown", NewCheckCommand(), "--format", "xml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid format")
	})

	t.Run("syntax error fails", func(t *testing.T) {
		root := testutil.SetupTestProject(t)
		testutil.WriteFile(t, root, "models/bad.sql", "select from")

		out, errOut, err := run(t, root, "markdown", NewCheckCommand())
		require.ErrorIs(t, err, ErrCheckFailed)
		assert.Contains(t, out, "## models/bad.sql")
		assert.Contains(t, out, "E002")
		assert.Contains(t, errOut, "0 warnings")
	})

	t.Run("warnings fail only when strict", func(t *testing.T) {
		root := testutil.SetupTestProject(t)
		testutil.WriteFile(t, root, "models/orphan.sql", "select id from {{ ref('missing') }}")

		out, _, err := run(t, root, "json", NewCheckCommand())
		require.NoError(t, err)
		got := decode[output.CheckOutput](t, out)
		assert.Equal(t, 1, got.Summary.Warnings)

		_, _, err = run(t, root, "json", NewCheckCommand(), "--strict")
		require.ErrorIs(t, err, ErrCheckFailed)
	})

	t.Run("paths limit the report", func(t *testing.T) {
		root := testutil.SetupTestProject(t)
		out, _, err := run(t, root, "json", NewCheckCommand(), filepath.Join(root, "models", "marts"))
		require.NoError(t, err)

		got := decode[output.CheckOutput](t, out)
		require.Len(t, got.Files, 1)
		assert.Equal(t, "customer_orders", got.Files[0].Model)
		assert.Empty(t, got.Files[0].Diagnostics, "refs to unselected models still resolve")
	})

	t.Run("state export", func(t *testing.T) {
		root := testutil.SetupTestProject(t)
		statePath := filepath.Join(t.TempDir(), "state", "lineage.db")

		out, _, err := run(t, root, "json", NewCheckCommand(), "--state", statePath)
		require.NoError(t, err)
		assert.NotEmpty(t, decode[output.CheckOutput](t, out).RunID)
	})
}

func TestRender(t *testing.T) {
	root := testutil.SetupTestProject(t)
	model := filepath.Join(root, "models", "marts", "customer_orders.sql")

	t.Run("markdown", func(t *testing.T) {
		out, _, err := run(t, root, "markdown", NewRenderCommand(), model)
		require.NoError(t, err)
		testutil.AssertValidMarkdown(t, out)
		assert.Contains(t, out, "```sql")
		assert.Contains(t, out, "from  stg_customers  as c,  stg_orders  as o")
		assert.NotContains(t, out, "{{")
	})

	t.Run("text", func(t *testing.T) {
		out, _, err := run(t, root, "text", NewRenderCommand(), model)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "select c.customer_id"), out)
	})

	t.Run("map", func(t *testing.T) {
		out, _, err := run(t, root, "markdown", NewRenderCommand(), model, "--map")
		require.NoError(t, err)
		assert.Contains(t, out, "| Kind")
		assert.Contains(t, out, "template")
		assert.Contains(t, out, "stg_orders")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := run(t, root, "json", NewRenderCommand(), model, "--map")
		require.NoError(t, err)

		got := decode[output.RenderOutput](t, out)
		assert.Equal(t, []string{"stg_customers", "stg_orders"}, got.Refs)
		assert.NotContains(t, got.SQL, "ref(")
		require.NotEmpty(t, got.Segments)
		assert.Equal(t, "literal", got.Segments[0].Kind)
		assert.Equal(t, 0, got.Segments[0].SourceStart)
	})

	t.Run("unsupported construct", func(t *testing.T) {
		path := testutil.WriteFile(t, root, "models/jinja.sql", "select {% if x %}1{% endif %}")
		_, _, err := run(t, root, "markdown", NewRenderCommand(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to render")
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := run(t, root, "markdown", NewRenderCommand(), filepath.Join(root, "nope.sql"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read model")
	})
}

func TestLineage(t *testing.T) {
	root := testutil.SetupTestProject(t)
	model := filepath.Join(root, "models", "marts", "customer_orders.sql")

	t.Run("json", func(t *testing.T) {
		out, _, err := run(t, root, "json", NewLineageCommand(), model)
		require.NoError(t, err)

		got := decode[output.LineageOutput](t, out)
		assert.Equal(t, "customer_orders", got.Model)
		assert.Equal(t, "models/marts/customer_orders.sql", got.File)
		require.Len(t, got.Columns, 3)

		name := got.Columns[1]
		assert.Equal(t, "customer_name", name.Name)
		assert.Equal(t, "single", name.Kind)
		assert.Equal(t, []string{"stg_customers.customer_name", "raw_customers.name"}, name.Hops)
	})

	t.Run("one column", func(t *testing.T) {
		out, _, err := run(t, root, "markdown", NewLineageCommand(), model, "--column", "amount")
		require.NoError(t, err)
		assert.Contains(t, out, "# Lineage: customer_orders")
		assert.Contains(t, out, "## amount")
		assert.Contains(t, out, "amount -> stg_orders.amount -> raw_orders.amount")
		assert.NotContains(t, out, "## customer_id")
	})

	t.Run("unknown column", func(t *testing.T) {
		_, _, err := run(t, root, "markdown", NewLineageCommand(), model, "--column", "nope")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "customer_id, customer_name, amount")
	})

	t.Run("unresolvable model", func(t *testing.T) {
		path := testutil.WriteFile(t, root, "models/broken.sql", "select from")
		_, errOut, err := run(t, root, "markdown", NewLineageCommand(), path)
		require.Error(t, err)
		assert.Contains(t, errOut, "E002")
	})

	t.Run("not a model file", func(t *testing.T) {
		_, _, err := run(t, root, "markdown", NewLineageCommand(), filepath.Join(root, "models", "sources.yml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a model file")
	})
}
