package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samsaffron/orchat/internal/credentials"
	"github.com/samsaffron/orchat/internal/tui/chat"
	"github.com/samsaffron/orchat/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatModel string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat with a free OpenRouter model.

Keys:
  Enter      send           Alt+Enter  newline
  Esc        cancel reply   Ctrl+K     clear conversation
  Ctrl+C     quit

Commands: /key /models /model <id> /clear /help /quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model id to select when it is in the free catalog")
	_ = chatCmd.RegisterFlagCompletionFunc("model", ModelFlagCompletion)
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("chat needs a terminal; use `orchat ask` for pipes")
	}

	// Log lines would draw over the screen, so they go to a file instead.
	closeLog, err := redirectLogging()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := commandContext(cmd)
	a, err := newApp(ctx, chatModel)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.session.HasCredential() {
		a.session.RefreshModels(ctx)
	}

	m := chat.New(ctx, a.session, ui.DefaultStyles())
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}

func redirectLogging() (func(), error) {
	previous := slog.Default()
	if ephemeral {
		setupLogging(io.Discard, false)
		return func() { slog.SetDefault(previous) }, nil
	}

	dbPath, err := credentials.GetDBPath()
	if err != nil {
		return nil, err
	}
	logPath := filepath.Join(filepath.Dir(dbPath), "chat.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	setupLogging(f, debugLogging)
	return func() {
		slog.SetDefault(previous)
		f.Close()
	}, nil
}
