package main

import (
	"fmt"
	"strings"

	"estirar/internal/domain/senior"
	"estirar/internal/infra/catalog"
	"estirar/internal/infra/database"
	"estirar/internal/infra/logger"

	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.openDB()
			if err != nil {
				return err
			}
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the video catalog into the database",
		Long:  "Upsert the video catalog keyed by language and position. Without --file the bundled catalog is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				c   *catalog.Catalog
				err error
			)
			if strings.TrimSpace(file) != "" {
				c, err = catalog.LoadFile(file)
			} else {
				c, err = catalog.Default()
			}
			if err != nil {
				return err
			}

			db, err := ctx.openDB()
			if err != nil {
				return err
			}
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}

			counts, err := catalog.Seed(cmd.Context(), database.NewPostgresVideoRepository(db), c, logger.Component("seed"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d videos (English: %d, Spanish: %d)\n",
				len(c.Videos), counts[senior.LanguageEnglish], counts[senior.LanguageSpanish])
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Catalog TOML file")
	return cmd
}
