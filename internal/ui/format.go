package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/samsaffron/orchat/internal/llm"
)

const ellipsis = "…"

// Truncate shortens s to at most width terminal cells, ending with an ellipsis
// when anything was cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, ellipsis)
}

// PadRight pads s with spaces to width terminal cells.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// FormatModelRow renders one line of the models listing: a marker, the id
// padded to idWidth and the display name, all fitting in width cells.
func (s *Styles) FormatModelRow(m llm.ModelDescriptor, selected bool, idWidth, width int) string {
	marker := IdleIcon
	if selected {
		marker = SelectedIcon
	}

	id := Truncate(m.ID, idWidth)
	row := marker + " " + s.ModelID.Render(PadRight(id, idWidth))
	if m.Name == "" || m.Name == m.ID {
		return row
	}

	used := runewidth.StringWidth(marker) + 1 + idWidth + 2
	if rest := width - used; rest > 0 {
		row += "  " + s.ModelName.Render(Truncate(m.Name, rest))
	}
	return row
}

// ModelIDWidth returns the widest id in models, capped at max cells.
func ModelIDWidth(models []llm.ModelDescriptor, max int) int {
	w := 0
	for _, m := range models {
		if cw := runewidth.StringWidth(m.ID); cw > w {
			w = cw
		}
	}
	if max > 0 && w > max {
		w = max
	}
	return w
}

// Indent prefixes every line of s with prefix.
func Indent(s, prefix string) string {
	if s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
