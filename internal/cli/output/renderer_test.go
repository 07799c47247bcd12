package output

import (
	"bytes"
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func newTestRenderer(mode OutputMode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want OutputMode
	}{
		{"", ModeAuto},
		{"auto", ModeAuto},
		{"TEXT", ModeText},
		{"markdown", ModeMarkdown},
		{"md", ModeMarkdown},
		{"json", ModeJSON},
		{"yaml", ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Mode(tt.in))
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  OutputMode
		isTTY bool
		want  OutputMode
	}{
		{"auto on tty", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"explicit text piped", ModeText, false, ModeText},
		{"json on tty", ModeJSON, true, ModeJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRenderer(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestNewRenderer_BufferIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestHeader(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.Header(2, "Models")
	assert.Equal(t, "## Models\n\n", out.String())

	r, out, _ = newTestRenderer(ModeText, false)
	r.Header(1, "Models")
	assert.Contains(t, out.String(), "Models")
	assert.NotContains(t, out.String(), "#")
}

func TestStyles_NoANSIWhenPiped(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeText, false)
	r.Success("done")
	r.Error("failed")
	r.Println(r.Styles().Bold.Render("bold"))
	assert.False(t, ansi.MatchString(out.String()+errOut.String()))
	assert.Equal(t, "failed\n", errOut.String())
}

func TestSetNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	r, out, _ := newTestRenderer(ModeText, true)
	r.SetNoColor(true)
	r.Success("done")
	assert.Equal(t, "done\n", out.String())
}

func TestJSON(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"errors": 2}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 2, got["errors"])
	assert.Contains(t, out.String(), "\n  \"errors\"")
}

func TestTable(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.Table([]string{"Model", "Status"}, [][]string{{"orders", "ok"}})
	assert.Contains(t, out.String(), "| Model | Status |")
	assert.Contains(t, out.String(), "| orders | ok |")

	r, out, _ = newTestRenderer(ModeText, false)
	r.Table([]string{"Model", "Status"}, [][]string{{"orders", "ok"}})
	assert.Contains(t, out.String(), "┌")
	assert.Contains(t, out.String(), "orders")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Title", FormatHeader(3, "Title"))
	assert.Equal(t, "- **Model:** orders", FormatKeyValue("Model", "orders"))
	assert.Equal(t, "```sql\nselect 1\n```", FormatCodeBlock("sql", "select 1\n"))
	assert.Equal(t, "Warning", Title("warning"))
}
