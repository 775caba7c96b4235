package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"leadsync/internal/app"
	"leadsync/internal/usecase"
)

var (
	runStart     string
	runEnd       string
	runCRMFile   string
	runCRMSource string
	runAuxFile   string
	runPublish   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile one date range and optionally publish it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		start, err := time.Parse("2006-01-02", runStart)
		if err != nil {
			return fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
		}
		end, err := time.Parse("2006-01-02", runEnd)
		if err != nil {
			return fmt.Errorf("--end must be YYYY-MM-DD: %w", err)
		}

		env, err := app.New(ctx, cfg, log, mtrc)
		if err != nil {
			return err
		}
		defer env.Close()

		req := usecase.SyncRequest{Start: start, End: end}
		switch runCRMSource {
		case "salesforce":
			if env.SalesforceCRM == nil {
				return fmt.Errorf("salesforce credentials are not configured")
			}
			req.CRM = env.SalesforceCRM
		case "csv":
			if runCRMFile == "" {
				return fmt.Errorf("--crm is required for --crm-source=csv")
			}
			req.CRM = env.CSVSource(runCRMFile)
		default:
			return fmt.Errorf("unknown --crm-source %q", runCRMSource)
		}
		if runAuxFile != "" {
			req.Aux = env.CSVSource(runAuxFile)
		}

		state, err := env.Sync.Run(ctx, req)
		if err != nil {
			return err
		}

		result := map[string]any{
			"run_id":   state.RunID,
			"expanded": state.Expanded,
			"stats":    state.Stats,
		}

		if runPublish {
			published := map[string]any{}
			stats, err := env.Publish.Publish(ctx, state.RunID, usecase.TableMapped)
			if err != nil {
				return err
			}
			published[usecase.TableMapped] = stats
			if state.Aux != nil {
				auxStats, err := env.Publish.Publish(ctx, state.RunID, usecase.TableAux)
				if err != nil {
					return err
				}
				published[usecase.TableAux] = auxStats
			}
			result["published"] = published
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runStart, "start", "", "start date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runEnd, "end", "", "end date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runCRMFile, "crm", "", "CRM opportunity export (CSV)")
	runCmd.Flags().StringVar(&runCRMSource, "crm-source", "csv", "CRM source: csv or salesforce")
	runCmd.Flags().StringVar(&runAuxFile, "aux", "", "auxiliary lead file (CSV)")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "merge the result into the warehouse tables")
	_ = runCmd.MarkFlagRequired("start")
	_ = runCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(runCmd)
}
