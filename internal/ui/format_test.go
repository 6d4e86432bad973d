package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/samsaffron/orchat/internal/llm"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"fits", "gemma", 10, "gemma"},
		{"exact", "gemma", 5, "gemma"},
		{"cut", "meta-llama/llama-3", 8, "meta-ll…"},
		{"wide runes", "日本語のモデル", 7, "日本語…"},
		{"zero", "anything", 0, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Truncate(tc.in, tc.width)
			if got != tc.want {
				t.Fatalf("Truncate(%q, %d)=%q, want %q", tc.in, tc.width, got, tc.want)
			}
			if w := runewidth.StringWidth(got); w > tc.width {
				t.Fatalf("width=%d exceeds %d", w, tc.width)
			}
		})
	}
}

func TestFormatModelRow(t *testing.T) {
	// A plain writer yields a renderer without color.
	styles := NewStyles(&bytes.Buffer{})

	m := llm.ModelDescriptor{ID: "meta/llama:free", Name: "Meta: Llama (free)"}
	row := styles.FormatModelRow(m, true, 20, 80)
	if !strings.HasPrefix(row, SelectedIcon+" meta/llama:free") {
		t.Fatalf("row=%q, want selected marker and id", row)
	}
	if !strings.Contains(row, "Meta: Llama (free)") {
		t.Fatalf("row=%q, want display name", row)
	}
	if w := runewidth.StringWidth(row); w > 80 {
		t.Fatalf("row width=%d exceeds 80", w)
	}

	narrow := styles.FormatModelRow(m, false, 20, 30)
	if w := runewidth.StringWidth(narrow); w > 30 {
		t.Fatalf("narrow row width=%d exceeds 30: %q", w, narrow)
	}
	if !strings.HasPrefix(narrow, IdleIcon) {
		t.Fatalf("narrow row=%q, want idle marker", narrow)
	}

	sameName := styles.FormatModelRow(llm.ModelDescriptor{ID: "x:free", Name: "x:free"}, false, 6, 80)
	if strings.Count(sameName, "x:free") != 1 {
		t.Fatalf("row=%q repeats the id as name", sameName)
	}
}

func TestModelIDWidth(t *testing.T) {
	models := []llm.ModelDescriptor{{ID: "a"}, {ID: "abcdef"}, {ID: "abc"}}
	if got := ModelIDWidth(models, 0); got != 6 {
		t.Fatalf("width=%d, want 6", got)
	}
	if got := ModelIDWidth(models, 4); got != 4 {
		t.Fatalf("capped width=%d, want 4", got)
	}
}

func TestIndent(t *testing.T) {
	if got := Indent("a\nb", "  "); got != "  a\n  b" {
		t.Fatalf("Indent=%q", got)
	}
	if got := Indent("", "  "); got != "" {
		t.Fatalf("Indent(empty)=%q", got)
	}
}
