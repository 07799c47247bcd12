package sqlfluff

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReport(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Violation
	}{
		{
			name: "array of file reports",
			raw:  `[{"filepath": "stdin", "violations": [{"line_no": 1, "line_pos": 8, "code": "LT01", "description": "Expected single whitespace.", "name": "layout.spacing"}]}]`,
			want: []Violation{{Line: 1, Column: 8, Code: "LT01", Description: "Expected single whitespace.", Name: "layout.spacing"}},
		},
		{
			name: "single report object",
			raw:  `{"filepath": "stdin", "violations": [{"line_no": 2, "line_pos": 1, "code": "CP01", "description": "Keywords must be consistently upper case.", "name": "capitalisation.keywords"}]}`,
			want: []Violation{{Line: 2, Column: 1, Code: "CP01", Description: "Keywords must be consistently upper case.", Name: "capitalisation.keywords"}},
		},
		{
			name: "newer start fields",
			raw:  `[{"filepath": "stdin", "violations": [{"start_line_no": 3, "start_line_pos": 5, "end_line_no": 3, "end_line_pos": 9, "code": "AL03", "description": "Column expression without alias.", "name": "aliasing.expression"}]}]`,
			want: []Violation{{Line: 3, Column: 5, Code: "AL03", Description: "Column expression without alias.", Name: "aliasing.expression"}},
		},
		{
			name: "wrapper bytes are stripped",
			raw:  "==== finding fixable violations ====\n[{\"filepath\": \"stdin\", \"violations\": [{\"line_no\": 1, \"line_pos\": 1, \"code\": \"LT12\", \"description\": \"Files must end with a single trailing newline.\", \"name\": \"layout.end_of_file\"}]}]\n\n\x1b[0m",
			want: []Violation{{Line: 1, Column: 1, Code: "LT12", Description: "Files must end with a single trailing newline.", Name: "layout.end_of_file"}},
		},
		{
			name: "several files",
			raw:  `[{"filepath": "a", "violations": [{"line_no": 1, "line_pos": 1, "code": "A"}]}, {"filepath": "b", "violations": [{"line_no": 2, "line_pos": 2, "code": "B"}]}]`,
			want: []Violation{{Line: 1, Column: 1, Code: "A"}, {Line: 2, Column: 2, Code: "B"}},
		},
		{
			name: "clean file",
			raw:  `[{"filepath": "stdin", "violations": []}]`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReport([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReport_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"plain text", "sqlfluff: command not found"},
		{"truncated json", `[{"filepath": "stdin", "violations": [`},
		{"closer before opener", `] garbage [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReport([]byte(tt.raw))
			assert.Error(t, err)
			assert.Empty(t, got)
		})
	}

	_, err := ParseReport([]byte("no json here"))
	assert.True(t, errors.Is(err, ErrNoReport))
}

func TestLinter_Args(t *testing.T) {
	l := &Linter{}
	assert.Equal(t, "sqlfluff", l.command())
	assert.Equal(t, []string{"lint", "-", "--dialect", "snowflake", "--format", "json"}, l.args())

	l = &Linter{Command: "/opt/bin/sqlfluff", Dialect: "duckdb"}
	assert.Equal(t, "/opt/bin/sqlfluff", l.command())
	assert.Equal(t, []string{"lint", "-", "--dialect", "duckdb", "--format", "json"}, l.args())
}

// fakeTool writes an executable shell script standing in for sqlfluff.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "sqlfluff")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestLinter_Lint(t *testing.T) {
	t.Run("non-zero exit with report", func(t *testing.T) {
		cmd := fakeTool(t, `cat >/dev/null
echo '[{"filepath": "stdin", "violations": [{"line_no": 1, "line_pos": 3, "code": "LT01", "description": "x", "name": "y"}]}]'
exit 1`)
		l := &Linter{Command: cmd}

		got, err := l.Lint(context.Background(), "select 1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "LT01", got[0].Code)
	})

	t.Run("reads sql from stdin", func(t *testing.T) {
		// Echo the stdin length back as the column of a synthetic violation.
		cmd := fakeTool(t, `n=$(wc -c | tr -d ' ')
echo "[{\"violations\": [{\"line_no\": 1, \"line_pos\": $n, \"code\": \"X\"}]}]"`)
		l := &Linter{Command: cmd}

		got, err := l.Lint(context.Background(), "select 1")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 8, got[0].Column)
	})

	t.Run("tool failure without report", func(t *testing.T) {
		cmd := fakeTool(t, `echo "boom" >&2
exit 2`)
		l := &Linter{Command: cmd}

		got, err := l.Lint(context.Background(), "select 1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.Empty(t, got)
	})

	t.Run("missing binary", func(t *testing.T) {
		l := &Linter{Command: filepath.Join(t.TempDir(), "does-not-exist")}
		_, err := l.Lint(context.Background(), "select 1")
		assert.Error(t, err)
	})

	t.Run("timeout kills the process", func(t *testing.T) {
		cmd := fakeTool(t, `exec sleep 5`)
		l := &Linter{Command: cmd, Timeout: 50 * time.Millisecond}

		start := time.Now()
		_, err := l.Lint(context.Background(), "select 1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Less(t, time.Since(start), 4*time.Second)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cmd := fakeTool(t, `exec sleep 5`)
		l := &Linter{Command: cmd}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := l.Lint(ctx, "select 1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
