package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/samsaffron/orchat/internal/exitcode"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Log requests and state changes to stderr")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "Keep the API key in memory only; nothing is written to disk")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default is $XDG_CONFIG_HOME/orchat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	rootCmd.PersistentFlags().StringVar(&memProfile, "memprofile", "", "Write memory profile to file")
	_ = rootCmd.PersistentFlags().MarkHidden("cpuprofile")
	_ = rootCmd.PersistentFlags().MarkHidden("memprofile")
}

var rootCmd = &cobra.Command{
	Use:   "orchat",
	Short: "Chat with free OpenRouter models from the terminal",
	Long: `orchat streams replies from OpenRouter's free models.

Examples:
  orchat key set                        # store your OpenRouter API key
  orchat chat                           # interactive chat
  orchat ask "explain TCP slow start"   # one-shot answer on stdout
  git diff | orchat ask "review this"   # question from stdin
  orchat models llama                   # fuzzy-search free models`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd.ErrOrStderr(), debugLogging)
		return startProfiling()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return stopProfiling()
	},
}

var debugLogging bool
var ephemeral bool
var configFile string
var cpuProfile string
var memProfile string
var cpuProfileFile *os.File

// setupLogging installs the process-wide slog handler. Warnings only, unless
// debug is set.
func setupLogging(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func startProfiling() error {
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return err
		}
		cpuProfileFile = f
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return err
		}
	}
	return nil
}

func stopProfiling() error {
	if cpuProfileFile != nil {
		pprof.StopCPUProfile()
		cpuProfileFile.Close()
	}
	if memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return err
		}
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(reportError(os.Stderr, err))
	}
}

// reportError prints err and returns the process exit code for it.
// Cancellation is silent.
func reportError(w io.Writer, err error) int {
	var exitErr exitcode.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Code != exitcode.Cancelled && exitErr.Message != "" {
			fmt.Fprintf(w, "Error: %s\n", exitErr.Message)
		}
		return exitErr.Code
	}
	fmt.Fprintf(w, "Error: %s\n", err)
	return exitcode.Error
}
