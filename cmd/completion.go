package cmd

import (
	"github.com/samsaffron/orchat/internal/llm"
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:       "completion [bash|zsh|fish|powershell]",
	Short:     "Generate shell completion script",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		default:
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// ModelFlagCompletion completes --model from the free model catalog.
func ModelFlagCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	ctx, cancel := contextWithTimeout(cmd, cfg.CatalogTimeout)
	defer cancel()

	models := newClient(cfg, nil).FreeModels(ctx, cfg.ResolvedAPIKey, cfg.MaxModels)
	models = llm.FilterModels(models, toComplete)

	completions := make([]string, 0, len(models))
	for _, m := range models {
		completions = append(completions, m.ID+"\t"+m.Name)
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}
