package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samsaffron/orchat/internal/config"
	"github.com/samsaffron/orchat/internal/credentials"
	"github.com/samsaffron/orchat/internal/exitcode"
	"github.com/samsaffron/orchat/internal/llm"
	"github.com/samsaffron/orchat/internal/session"
	"github.com/spf13/cobra"
)

const missingKeyHint = "no OpenRouter API key: run `orchat key set` or export OPENROUTER_API_KEY"

// app holds the wiring shared by the commands.
type app struct {
	cfg     *config.Config
	slot    credentials.Slot
	client  *llm.Client
	session *session.Session
	logger  *slog.Logger
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openSlot returns the credential slot selected by --ephemeral and config.
func openSlot(cfg *config.Config) (credentials.Slot, error) {
	if ephemeral {
		return credentials.NewMemorySlot(""), nil
	}
	path := cfg.CredentialStore
	if path == "" {
		var err error
		path, err = credentials.GetDBPath()
		if err != nil {
			return nil, err
		}
	}
	slot, err := credentials.NewSQLiteSlot(path)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return slot, nil
}

func newClient(cfg *config.Config, logger *slog.Logger) *llm.Client {
	return llm.NewOpenRouterClient(
		llm.WithBaseURL(cfg.BaseURL),
		llm.WithAppInfo(cfg.AppURL, cfg.AppTitle),
		llm.WithLogger(logger),
	)
}

// newApp loads config, opens the credential slot and builds the session.
// modelOverride wins over the configured model.
func newApp(ctx context.Context, modelOverride string) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	slot, err := openSlot(cfg)
	if err != nil {
		return nil, err
	}

	preferred := cfg.Model
	if strings.TrimSpace(modelOverride) != "" {
		preferred = modelOverride
	}

	client := newClient(cfg, logger)
	sess, err := session.New(ctx, session.Options{
		Slot:           slot,
		Client:         client,
		Credential:     cfg.ResolvedAPIKey,
		PreferredModel: preferred,
		ModelLimit:     cfg.MaxModels,
		CatalogTimeout: cfg.CatalogTimeout,
		Logger:         logger,
	})
	if err != nil {
		slot.Close()
		return nil, err
	}

	return &app{cfg: cfg, slot: slot, client: client, session: sess, logger: logger}, nil
}

func (a *app) Close() error {
	a.session.Close()
	return a.slot.Close()
}

// requireModel refreshes the catalog and applies an explicit --model choice.
func (a *app) requireModel(ctx context.Context, modelOverride string) error {
	models := a.session.RefreshModels(ctx)
	if len(models) == 0 {
		return fmt.Errorf("no free models available (check your key and network)")
	}
	if modelOverride == "" {
		return nil
	}
	if err := a.session.SelectModel(modelOverride); err != nil {
		matches := llm.FilterModels(models, modelOverride)
		if len(matches) == 0 {
			return err
		}
		return a.session.SelectModel(matches[0].ID)
	}
	return nil
}

func missingKeyError() error {
	return exitcode.MissingKey(missingKeyHint)
}

// commandContext returns cmd's context, or Background when run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(commandContext(cmd), d)
}
