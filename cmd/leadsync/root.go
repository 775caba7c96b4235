package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"leadsync/pkg/config"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"
)

var (
	cfg  *config.Config
	log  *logger.Logger
	mtrc *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:          "leadsync",
	Short:        "Analytics and CRM attribution reconciliation",
	Long:         "Joins analytics sessions to CRM opportunities by lead mobile number and keeps an attribution table in the warehouse.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		log = logger.New(cfg.Logging.Level)
		mtrc = metrics.New(nil)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
