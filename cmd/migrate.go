package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/go-petr/pet-ledger/db/migration"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
)

func newMigrateCmd(a *app) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return a.migrate(0)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back the given number of migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				steps := 1

				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("steps must be a positive number, got %q", args[0])
					}

					steps = n
				}

				return a.migrate(-steps)
			},
		},
	)

	return migrateCmd
}

func (a *app) migrate(steps int) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := dbpkg.Migrate(db, migration.FS, steps); err != nil {
		return err
	}

	if steps == 0 {
		pterm.Success.Println("Database schema is up to date")
	} else {
		pterm.Success.Printfln("Rolled back %d migration(s)", -steps)
	}

	return nil
}
