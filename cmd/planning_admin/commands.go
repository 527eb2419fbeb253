package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/Matgc04/dssd-2025/project_planning/seed"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type adminOptions struct {
	dbUri   string
	envFile string
}

func (opts *adminOptions) openDb() (*gorm.DB, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil {
			return nil, fmt.Errorf("error loading .env file '%v': %w", opts.envFile, err)
		}
	}

	uri := opts.dbUri
	if uri == "" {
		uri = os.Getenv("DATABASE_URI")
	}
	if uri == "" {
		uri = "project_planning.db"
	}

	return schema.OpenDb(uri)
}

func rootCmd() *cobra.Command {
	opts := &adminOptions{}

	cmd := &cobra.Command{
		Use:   "planning_admin",
		Short: "Maintenance commands for the project planning database",
		Long: `Maintenance commands for the project planning database.

The database is taken from --db_uri, then DATABASE_URI, then the local
project_planning.db sqlite file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.dbUri, "db_uri", "", "Database URI, either a postgres:// url or a sqlite file path")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env", "", "File to load env variables from")

	cmd.AddCommand(resetDbCmd(opts))
	cmd.AddCommand(seedDbCmd(opts))
	cmd.AddCommand(dumpAllCmd(opts))

	return cmd
}

func resetDbCmd(opts *adminOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset-db",
		Short: "Drop every table and recreate the schema",
		Long: `Drop every table and recreate the schema.

All users, projects, collaborations and observations are lost.

Examples:
  planning_admin reset-db --force
  planning_admin reset-db --force --seed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("reset-db deletes all data, rerun with --force to confirm")
			}

			db, err := opts.openDb()
			if err != nil {
				return err
			}

			if err := schema.Reset(db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s database reset\n", color.New(color.FgYellow).Sprint("RESET"))

			seedAfter, _ := cmd.Flags().GetBool("seed")
			if !seedAfter {
				return nil
			}

			file, err := seed.Default()
			if err != nil {
				return err
			}
			return applySeed(cmd.OutOrStdout(), db, file)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm that all data should be deleted")
	cmd.Flags().Bool("seed", false, "Load the default seed data after the reset")

	return cmd
}

func seedDbCmd(opts *adminOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "seed-db",
		Short: "Load users and projects from a yaml seed file",
		Long: `Load users and projects from a yaml seed file.

Without --file the built in sample data is loaded: an admin, one user per
role and a sample project. Existing users are left untouched.

Examples:
  planning_admin seed-db
  planning_admin seed-db --file seed.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var file seed.File
			var err error
			if path != "" {
				file, err = seed.Load(path)
			} else {
				file, err = seed.Default()
			}
			if err != nil {
				return err
			}

			db, err := opts.openDb()
			if err != nil {
				return err
			}
			if err := schema.Migrate(db); err != nil {
				return err
			}

			return applySeed(cmd.OutOrStdout(), db, file)
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "Seed file to load")

	return cmd
}

func applySeed(out io.Writer, db *gorm.DB, file seed.File) error {
	counts, err := seed.Apply(db, file)
	if err != nil {
		fmt.Fprintf(out, "%s seed failed, nothing was written\n", color.New(color.FgRed).Sprint("ERROR"))
		return err
	}

	added := color.New(color.FgHiGreen).Sprint("ADDED")
	fmt.Fprintf(out, "%s %d users\n", added, counts.Users)
	fmt.Fprintf(out, "%s %d projects (%d stages, %d requests)\n", added, counts.Projects, counts.Stages, counts.Requests)
	fmt.Fprintf(out, "%s %d collaborations\n", added, counts.Collaborations)
	fmt.Fprintf(out, "%s %d observations\n", added, counts.Observations)
	return nil
}

func dumpAllCmd(opts *adminOptions) *cobra.Command {
	var outPath string
	var asJson bool

	cmd := &cobra.Command{
		Use:   "dump-all",
		Short: "Print every table in the seed file format",
		Long: `Print every table in the seed file format.

Passwords are not exported.

Examples:
  planning_admin dump-all
  planning_admin dump-all --json
  planning_admin dump-all --out backup.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDb()
			if err != nil {
				return err
			}

			file, err := seed.Dump(db)
			if err != nil {
				return err
			}

			var data []byte
			if asJson {
				data, err = json.MarshalIndent(file, "", "  ")
			} else {
				data, err = file.Marshal()
			}
			if err != nil {
				return fmt.Errorf("error encoding dump: %w", err)
			}

			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			if err := os.WriteFile(outPath, data, 0644); err != nil {
				return fmt.Errorf("error writing dump: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %d users, %d projects to %s\n",
				color.New(color.FgHiBlue).Sprint("DUMPED"), len(file.Users), len(file.Projects), outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Write the dump to a file instead of stdout")
	cmd.Flags().BoolVar(&asJson, "json", false, "Print json sections instead of yaml")

	return cmd
}
