package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by commands.
type Styles struct {
	Header    lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Info      lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
	ModelPath lipgloss.Style
	Code      lipgloss.Style
}

// NewStyles builds styles bound to a lipgloss renderer, so the renderer's
// color profile decides whether ANSI codes are emitted.
func NewStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:    lr.NewStyle().Bold(true).Underline(true),
		Success:   lr.NewStyle().Foreground(lipgloss.Color("2")),
		Error:     lr.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Warning:   lr.NewStyle().Foreground(lipgloss.Color("3")),
		Info:      lr.NewStyle().Foreground(lipgloss.Color("4")),
		Muted:     lr.NewStyle().Foreground(lipgloss.Color("8")),
		Bold:      lr.NewStyle().Bold(true),
		ModelPath: lr.NewStyle().Foreground(lipgloss.Color("6")).Underline(true),
		Code:      lr.NewStyle().Foreground(lipgloss.Color("5")),
	}
}
