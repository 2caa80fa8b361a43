// Package cli implements the nci command line tool.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"nci-backend/internal/bootstrap"
	"nci-backend/internal/shared/config"
)

var (
	providerFlag string
	modelFlag    string
	storeFlag    string
	noColor      bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "nci",
	Short:         "Score content against the 20 NCI manipulation criteria",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "Analysis provider: gemini, openai or none (default: $LLM_PROVIDER)")
	RootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "Provider model (default: $LLM_MODEL)")
	RootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Snapshot store (default: $SNAPSHOT_STORE)")
	RootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// loadConfig applies command line overrides on top of the environment.
func loadConfig() config.Config {
	cfg := config.Load()
	if providerFlag != "" {
		cfg.LLMProvider = config.NormalizeProvider(providerFlag)
	}
	if modelFlag != "" {
		cfg.LLMModel = modelFlag
	}
	if storeFlag != "" {
		cfg.SnapshotStore = config.NormalizeStoreType(storeFlag)
	}
	return cfg
}

func openApp(ctx context.Context) (*bootstrap.App, error) {
	return bootstrap.BuildCore(ctx, loadConfig())
}
