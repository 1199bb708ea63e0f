package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/surgeo/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "surgeo",
	Short: "Bayesian race/ethnicity estimation from names and geography",
	Long: `Estimates race/ethnicity probabilities for batches of people from surname,
first name and census geography (ZCTA or tract) using BISG and BIFSG.`,
	SilenceUsage: true,
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
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
