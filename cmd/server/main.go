package main

import (
	"os"

	"github.com/anonto42/alumni-connect/backend/pkg/config"
	"github.com/anonto42/alumni-connect/backend/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	log = logging.NewLogger("server")
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "alumni-sync",
		Short: "Real-time state synchronization backend for the alumni network",
		Long: `alumni-sync keeps one server-side store per signed-in alumni, loads the
directory, jobs, events, feed and notifications into it, applies change-feed
events and user mutations, and streams the resulting snapshots to clients.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return err
			}
			logging.Configure(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, session stream and metrics endpoint",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL schema and install the change-feed trigger",
		RunE:  runMigrate,
	}
)

func init() {
	serveCmd.Flags().Bool("migrate", true, "run migrations before serving")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
