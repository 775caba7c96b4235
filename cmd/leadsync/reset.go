package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"leadsync/internal/app"
	"leadsync/internal/usecase"
)

var (
	resetTable   string
	resetConfirm bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate a warehouse table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirm {
			return fmt.Errorf("refusing to reset %s table without --yes", resetTable)
		}

		ctx := cmd.Context()
		env, err := app.New(ctx, cfg, log, mtrc)
		if err != nil {
			return err
		}
		defer env.Close()

		table, err := env.Publish.Reset(ctx, resetTable)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", table)
		return nil
	},
}

func init() {
	resetCmd.Flags().StringVar(&resetTable, "table", usecase.TableMapped, "table to reset: mapped or aux")
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "confirm the reset")
	rootCmd.AddCommand(resetCmd)
}
