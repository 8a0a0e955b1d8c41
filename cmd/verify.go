package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <transaction-id>",
		Short: "Verify one transaction now, bypassing the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid transaction id %q", args[0])
			}

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

			res, err := verifier.Verify(a.context(cmd.Context()), id)
			if err != nil {
				return err
			}

			if !res.Changed {
				pterm.Info.Printfln("Transaction %d was already %s", id, res.Transaction.Status)
				return nil
			}

			rows := pterm.TableData{
				{"Transaction", "Kind", "Amount", "Status", "Reason", "Notification"},
				{
					strconv.FormatInt(res.Transaction.ID, 10),
					res.Transaction.Kind,
					res.Transaction.Amount,
					res.Transaction.Status,
					res.Transaction.FailureReason,
					string(res.Verdict.Notify),
				},
			}

			if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
				return err
			}

			for _, r := range res.Reversal {
				pterm.Info.Printfln("Reversal %d written on account %d", r.ID, r.AccountID)
			}

			if res.ReversalSkipped != "" {
				pterm.Warning.Println("Reversal skipped: " + res.ReversalSkipped)
			}

			return nil
		},
	}
}
