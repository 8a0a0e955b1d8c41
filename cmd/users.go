package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/userrepo"
	"github.com/go-petr/pet-ledger/internal/userservice"
)

func newUsersCmd(a *app) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}

	usersCmd.AddCommand(&cobra.Command{
		Use:   "promote <username>",
		Short: "Grant the admin role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := userservice.New(userrepo.NewRepoPGS(db)).SetRole(a.context(cmd.Context()), args[0], domain.RoleAdmin)
			if err != nil {
				return err
			}

			pterm.Success.Printfln("%s is now %s", user.Username, user.Role)

			return nil
		},
	})

	return usersCmd
}
