package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doernaz/brandlift/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "brandlift",
	Short: "Lead discovery and enrichment pipeline",
	Long:  "Pivots over location and keyword pairs, filters Google Places candidates, resolves a contact email through an enrichment waterfall and persists deduplicated leads.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
