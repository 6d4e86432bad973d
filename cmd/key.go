package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samsaffron/orchat/internal/credentials"
	"github.com/samsaffron/orchat/internal/exitcode"
	"github.com/samsaffron/orchat/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored OpenRouter API key",
	Long: `Manage the OpenRouter API key kept in the local credential store.

Examples:
  orchat key set                         # prompt with a masked input
  echo "$KEY" | orchat key set           # read from stdin
  orchat key show                        # masked
  orchat key clear`,
}

var keySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store an API key",
	Args:  cobra.NoArgs,
	RunE:  runKeySet,
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	RunE:  runKeyClear,
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active API key, masked",
	Args:  cobra.NoArgs,
	RunE:  runKeyShow,
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyClearCmd, keyShowCmd)
	rootCmd.AddCommand(keyCmd)
}

func runKeySet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slot, err := openSlot(cfg)
	if err != nil {
		return err
	}
	defer slot.Close()

	ctx := commandContext(cmd)
	current, err := slot.Load(ctx)
	if err != nil {
		return err
	}

	var key string
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		key, err = ui.PromptCredential(current)
		if errors.Is(err, ui.ErrAborted) {
			return exitcode.Cancel()
		}
	} else {
		key, err = readKey(cmd.InOrStdin())
	}
	if err != nil {
		return err
	}
	if key == "" {
		return exitcode.MissingKey("no key given")
	}

	if err := slot.Save(ctx, key); err != nil {
		return err
	}
	styles := ui.NewStyles(cmd.ErrOrStderr())
	fmt.Fprintln(cmd.ErrOrStderr(), styles.FormatResult(true, "Saved "+credentials.Mask(key)))
	return nil
}

// readKey takes the first non-empty line of r.
func readKey(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, 64*1024))
	if err != nil {
		return "", fmt.Errorf("read key: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
	}
	return "", nil
}

func runKeyClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slot, err := openSlot(cfg)
	if err != nil {
		return err
	}
	defer slot.Close()

	if err := slot.Delete(commandContext(cmd)); err != nil {
		return err
	}
	styles := ui.NewStyles(cmd.ErrOrStderr())
	fmt.Fprintln(cmd.ErrOrStderr(), styles.FormatResult(true, "Key removed"))
	return nil
}

func runKeyShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slot, err := openSlot(cfg)
	if err != nil {
		return err
	}
	defer slot.Close()

	stored, err := slot.Load(commandContext(cmd))
	if err != nil {
		return err
	}
	switch {
	case stored != "":
		fmt.Fprintf(cmd.OutOrStdout(), "%s (credential store)\n", credentials.Mask(stored))
	case cfg.ResolvedAPIKey != "":
		fmt.Fprintf(cmd.OutOrStdout(), "%s (config or OPENROUTER_API_KEY)\n", credentials.Mask(cfg.ResolvedAPIKey))
	default:
		return missingKeyError()
	}
	return nil
}
