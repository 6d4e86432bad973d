package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/samsaffron/orchat/internal/config"
	"github.com/samsaffron/orchat/internal/exitcode"
	"github.com/samsaffron/orchat/internal/llm"
	"github.com/samsaffron/orchat/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var modelsJSON bool
var modelsLimit int
var modelsSelect bool

var modelsCmd = &cobra.Command{
	Use:   "models [query]",
	Short: "List free models",
	Long: `List the free models (ids ending in ":free") from the OpenRouter catalog.

An optional query fuzzy-matches model ids and names.

Examples:
  orchat models               # first 20 free models
  orchat models llama         # fuzzy filter
  orchat models --limit 50    # more of the catalog
  orchat models --json        # output as JSON
  orchat models --select      # pick the default model interactively`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
	modelsCmd.Flags().IntVarP(&modelsLimit, "limit", "n", 0, "Maximum number of models (default: max_models from config)")
	modelsCmd.Flags().BoolVar(&modelsSelect, "select", false, "Choose a model and save it as the default in the config file")
	modelsCmd.MarkFlagsMutuallyExclusive("json", "select")
}

func runModels(cmd *cobra.Command, args []string) error {
	if modelsSelect && (!term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd()))) {
		return fmt.Errorf("--select needs an interactive terminal; set model in the config file instead")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	credential := cfg.ResolvedAPIKey
	if slot, err := openSlot(cfg); err == nil {
		if stored, err := slot.Load(commandContext(cmd)); err == nil && stored != "" {
			credential = stored
		}
		slot.Close()
	}

	limit := cfg.MaxModels
	if modelsLimit > 0 {
		limit = modelsLimit
	}

	ctx, cancel := contextWithTimeout(cmd, cfg.CatalogTimeout)
	defer cancel()

	client := newClient(cfg, nil)
	models := client.FreeModels(ctx, credential, limit)
	if len(args) == 1 {
		models = llm.FilterModels(models, args[0])
	}

	if modelsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	if len(models) == 0 {
		return fmt.Errorf("no free models found")
	}

	if modelsSelect {
		return selectDefaultModel(cmd, models, cfg.Model)
	}

	styles := ui.NewStyles(cmd.OutOrStdout())
	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	idWidth := ui.ModelIDWidth(models, width/2)
	for _, m := range models {
		fmt.Fprintln(cmd.OutOrStdout(), styles.FormatModelRow(m, m.ID == cfg.Model, idWidth, width))
	}
	return nil
}

func selectDefaultModel(cmd *cobra.Command, models []llm.ModelDescriptor, current string) error {
	id, err := ui.SelectModel(models, current)
	if errors.Is(err, ui.ErrAborted) {
		return exitcode.Cancel()
	}
	if err != nil {
		return err
	}
	if err := config.SetValue(configFile, "model", id); err != nil {
		return fmt.Errorf("save default model: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Default model set to %s\n", id)
	return nil
}
