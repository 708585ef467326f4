// Command templedb is a minimal bootstrap entrypoint over the
// templedb package: enough to initialize a database, run migrations,
// and report version/build info. It is intentionally not a full CLI
// product surface (see the module's Non-goals); most callers are
// expected to embed github.com/templedb/templedb directly.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/templedb/templedb"
	"github.com/templedb/templedb/internal/config"
	"github.com/templedb/templedb/internal/logging"
	"github.com/templedb/templedb/internal/storage/sqlite"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:   "templedb",
		Short: "Bootstrap and inspect a TempleDB project database",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "path to the templedb database (overrides config/env)")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(&dbPath),
		newMigrateCmd(&dbPath),
	)
	return root
}

func resolveDBPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := config.Load("")
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.DBPath, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the templedb build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func newInitCmd(dbPath *string) *cobra.Command {
	var projectSlug, projectName string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new templedb database and register a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveDBPath(*dbPath)
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, err := templedb.NewSQLiteStorage(ctx, path)
			if err != nil {
				return err
			}
			defer store.Close()

			log := logging.New(logging.Options{Level: logging.LevelInfo})
			log.Infof("initializing project %s at %s", projectSlug, path)

			return store.RunInTransaction(ctx, func(tx templedb.Transaction) error {
				_, err := tx.CreateProject(ctx, &templedb.Project{
					Slug:          projectSlug,
					Name:          projectName,
					DefaultBranch: "main",
				})
				return err
			})
		},
	}
	cmd.Flags().StringVar(&projectSlug, "slug", "", "project slug (required)")
	cmd.Flags().StringVar(&projectName, "name", "", "project display name")
	cmd.MarkFlagRequired("slug")
	return cmd
}

func newMigrateCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply any pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveDBPath(*dbPath)
			if err != nil {
				return err
			}
			store, err := sqlite.New(context.Background(), path)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, m := range sqlite.ListMigrations() {
				fmt.Fprintf(cmd.OutOrStdout(), "applied: %s\n", m.Name)
			}
			return nil
		},
	}
}
