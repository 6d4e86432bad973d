package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/samsaffron/orchat/internal/credentials"
	"github.com/samsaffron/orchat/internal/llm"
)

// ErrAborted is returned when the user backs out of a prompt.
var ErrAborted = errors.New("prompt aborted")

// PromptCredential asks for an OpenRouter API key with a masked input.
func PromptCredential(current string) (string, error) {
	var key string

	description := "Stored locally. Get one at https://openrouter.ai/keys"
	if current != "" {
		description = "Current key: " + credentials.Mask(current)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("OpenRouter API key").
				Description(description).
				EchoMode(huh.EchoModePassword).
				Placeholder("sk-or-...").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("key cannot be empty")
					}
					return nil
				}).
				Value(&key),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrAborted
		}
		return "", err
	}
	return strings.TrimSpace(key), nil
}

// SelectModel presents the free model catalog and returns the chosen id.
func SelectModel(models []llm.ModelDescriptor, current string) (string, error) {
	if len(models) == 0 {
		return "", llm.ErrNoModel
	}

	styles := DefaultStyles()
	idWidth := ModelIDWidth(models, 48)
	options := make([]huh.Option[string], 0, len(models))
	for _, m := range models {
		label := styles.FormatModelRow(m, m.ID == current, idWidth, 100)
		options = append(options, huh.NewOption(label, m.ID).Selected(m.ID == current))
	}

	selected := current
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select a free model").
				Options(options...).
				Height(min(len(options)+2, 16)).
				Value(&selected),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrAborted
		}
		return "", err
	}
	return selected, nil
}
