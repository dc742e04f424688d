// unilib-admin is the back-office CLI: schema migration, staff account
// creation and catalog seeding.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"unilib/internal/catalog"
	"unilib/internal/config"
	"unilib/internal/membership"
	"unilib/internal/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "unilib-admin",
		Short:         "unilib administrative tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	root.AddCommand(newMigrateCmd(&configPath))
	root.AddCommand(newCreateLibrarianCmd(&configPath))
	root.AddCommand(newSeedCmd(&configPath))
	return root
}

func openDB(ctx context.Context, configPath string) (*sqlx.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	raw, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	return sqlx.NewDb(raw, "postgres"), nil
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db, err := openDB(ctx, *configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(ctx, db.DB); err != nil {
				return err
			}
			fmt.Println("schema applied")
			return nil
		},
	}
}

func newCreateLibrarianCmd(configPath *string) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-librarian",
		Short: "create a librarian account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db, err := openDB(ctx, *configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := membership.NewService(db, zerolog.Nop())
			user, err := svc.CreateLibrarian(ctx, name, email, password)
			if err != nil {
				return err
			}
			fmt.Printf("librarian created: %s <%s>\n", user.ID, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "librarian name")
	cmd.Flags().StringVar(&email, "email", "", "librarian email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "insert a small sample catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			db, err := openDB(ctx, *configPath)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := catalog.NewService(db, nil, zerolog.Nop())
			isbn := func(s string) *string { return &s }
			samples := []catalog.BookInput{
				{Title: "The Go Programming Language", Author: "Donovan & Kernighan", ISBN: isbn("9780134190440"), Language: "en"},
				{Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", ISBN: isbn("9781449373320"), Language: "en"},
				{Title: "Pride and Prejudice", Author: "Jane Austen", ISBN: isbn("9780141439518"), Language: "en"},
			}
			for _, input := range samples {
				if _, err := svc.CreateBook(ctx, input); err != nil {
					return err
				}
			}
			fmt.Printf("seeded %d books\n", len(samples))
			return nil
		},
	}
}
