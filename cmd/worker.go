package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the verification worker pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(a.context(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			dispatcher, stopDispatcher, err := a.startDispatcher()
			if err != nil {
				return err
			}
			defer stopDispatcher()

			verifier, err := a.newVerifier(db, dispatcher)
			if err != nil {
				return err
			}

			a.newPool(db, verifier).Run(ctx)

			return nil
		},
	}
}
