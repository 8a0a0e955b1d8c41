package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/go-petr/pet-ledger/internal/jobrepo"
	"github.com/go-petr/pet-ledger/internal/jobservice"
)

func newJobsCmd(a *app) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and requeue dead lettered verification jobs",
	}

	var page, limit int32

	deadCmd := &cobra.Command{
		Use:   "dead",
		Short: "List jobs that ran out of attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			jobs, err := jobservice.New(jobrepo.NewRepoPGS(db)).ListDead(a.context(cmd.Context()), page, limit)
			if err != nil {
				return err
			}

			if len(jobs) == 0 {
				pterm.Success.Println("No dead jobs")
				return nil
			}

			rows := pterm.TableData{{"Job", "Transaction", "Attempts", "Last error", "Updated"}}

			for _, j := range jobs {
				rows = append(rows, []string{
					strconv.FormatInt(j.ID, 10),
					strconv.FormatInt(j.TransactionID, 10),
					strconv.Itoa(j.Attempts),
					j.LastError,
					j.UpdatedAt.Format(time.RFC3339),
				})
			}

			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		},
	}

	deadCmd.Flags().Int32VarP(&page, "page", "p", 1, "page number")
	deadCmd.Flags().Int32VarP(&limit, "limit", "l", 20, "jobs per page")

	requeueCmd := &cobra.Command{
		Use:   "requeue <job-id>",
		Short: "Put a dead job back on the queue with a fresh attempt budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			job, err := jobservice.New(jobrepo.NewRepoPGS(db)).Requeue(a.context(cmd.Context()), id)
			if err != nil {
				return err
			}

			pterm.Success.Printfln("Job %d for transaction %d is queued again", job.ID, job.TransactionID)

			return nil
		},
	}

	jobsCmd.AddCommand(deadCmd, requeueCmd)

	return jobsCmd
}
