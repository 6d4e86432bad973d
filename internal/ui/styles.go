package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across all TUI components
var (
	Green  = lipgloss.Color("10") // success, assistant
	Red    = lipgloss.Color("9")  // error
	Grey   = lipgloss.Color("8")  // muted text
	Blue   = lipgloss.Color("4")  // headers, user
	White  = lipgloss.Color("15") // header text
	Yellow = lipgloss.Color("11") // warnings, spinner
)

// Status indicators
const (
	SelectedIcon = "●"
	IdleIcon     = "○"
	SuccessIcon  = "✓"
	FailIcon     = "✗"
)

// Styles returns styled text helpers bound to a renderer
type Styles struct {
	renderer *lipgloss.Renderer

	// Text styles
	Title   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style

	// Transcript styles
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	Spinner        lipgloss.Style

	// Model listing
	ModelID   lipgloss.Style
	ModelName lipgloss.Style
}

// NewStyles creates a new Styles instance for the given output
func NewStyles(output io.Writer) *Styles {
	r := lipgloss.NewRenderer(output)

	return &Styles{
		renderer: r,

		Title: r.NewStyle().
			Bold(true).
			Foreground(White),

		Success: r.NewStyle().
			Foreground(Green),

		Error: r.NewStyle().
			Foreground(Red),

		Warning: r.NewStyle().
			Foreground(Yellow),

		Muted: r.NewStyle().
			Foreground(Grey),

		Bold: r.NewStyle().
			Bold(true),

		UserLabel: r.NewStyle().
			Bold(true).
			Foreground(Blue),

		AssistantLabel: r.NewStyle().
			Bold(true).
			Foreground(Green),

		Spinner: r.NewStyle().
			Foreground(Yellow),

		ModelID: r.NewStyle().
			Bold(true),

		ModelName: r.NewStyle().
			Foreground(Grey),
	}
}

// DefaultStyles returns styles for stderr (default TUI output)
func DefaultStyles() *Styles {
	return NewStyles(os.Stderr)
}

// FormatResult returns a styled success/fail result
func (s *Styles) FormatResult(success bool, msg string) string {
	if success {
		return s.Success.Render(SuccessIcon+" ") + msg
	}
	return s.Error.Render(FailIcon+" ") + msg
}
