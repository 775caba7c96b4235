package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"leadsync/internal/app"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := app.New(ctx, cfg, log, mtrc)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == "" {
			port = cfg.Server.Port
		}
		return env.Serve(ctx, port)
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
