package cmd

import (
	"strings"
	"testing"
)

func TestModelsSelectNeedsTerminal(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	modelsSelect = true
	t.Cleanup(func() { modelsSelect = false })

	c, _ := newKeyTestCommand("")
	err := runModels(c, nil)
	if err == nil || !strings.Contains(err.Error(), "interactive terminal") {
		t.Fatalf("err=%v, want an interactive terminal error", err)
	}
}
