// Command albumrank runs the album ranking API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "albumrank",
		Short:         "Rank and collect albums",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		serveCommand(&configPath),
		migrateCommand(&configPath),
		backfillCommand(&configPath),
		tokenCommand(&configPath),
	)
	return root
}

func serveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			server, err := app.server()
			if err != nil {
				return err
			}
			return server.Run(cmd.Context())
		},
	}
}

func migrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.db == nil {
				return fmt.Errorf("migrate requires the postgres store")
			}
			if err := app.db.Migrate(cmd.Context()); err != nil {
				return err
			}
			app.logger.Info("schema applied")
			return nil
		},
	}
}

func backfillCommand(configPath *string) *cobra.Command {
	var (
		limit       int
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "backfill-artwork",
		Short: "Fetch and store covers for catalog albums that have none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.albums.BackfillArtwork(cmd.Context(), limit, concurrency)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "attempted %d, updated %d, failed %d\n",
				report.Attempted, report.Updated, report.Failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum albums to process (0 for all)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel fetches")
	return cmd
}
