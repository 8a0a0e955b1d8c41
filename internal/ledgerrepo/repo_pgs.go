// Package ledgerrepo manages the atomic ledger mutations.
package ledgerrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/jobrepo"
	"github.com/go-petr/pet-ledger/internal/transactionrepo"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// RepoPGS facilitates ledger repository layer logic.
type RepoPGS struct {
	conn         *sql.DB
	transactions *transactionrepo.RepoPGS
}

// NewRepoPGS returns ledger RepoPGS with connection to start transactions.
func NewRepoPGS(conn *sql.DB) *RepoPGS {
	return &RepoPGS{
		conn:         conn,
		transactions: transactionrepo.NewRepoPGS(conn),
	}
}

// Get returns the transaction with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	return r.transactions.Get(ctx, id)
}

// List returns a page of transactions, newest first.
func (r *RepoPGS) List(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error) {
	return r.transactions.List(ctx, arg)
}

type txRepos struct {
	accounts     *accountrepo.RepoPGS
	transactions *transactionrepo.RepoPGS
	jobs         *jobrepo.RepoPGS
}

// inTx runs fn inside a single database transaction and commits when fn succeeds.
func (r *RepoPGS) inTx(ctx context.Context, fn func(repos txRepos) error) error {
	l := zerolog.Ctx(ctx)

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.Error().Err(err).Send()
		}
	}()

	repos := txRepos{
		accounts:     accountrepo.NewRepoPGS(tx),
		transactions: transactionrepo.NewRepoPGS(tx),
		jobs:         jobrepo.NewRepoPGS(tx),
	}

	if err := fn(repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	return nil
}

func parseAmount(ctx context.Context, amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil || !d.IsPositive() {
		zerolog.Ctx(ctx).Warn().Err(err).Str("amount", amount).Send()
		return decimal.Zero, domain.ErrInvalidAmount
	}

	return d, nil
}

// Deposit credits the owner's account and records a pending deposit.
//
// The balance update, the transaction row and its verification job commit together.
func (r *RepoPGS) Deposit(ctx context.Context, arg domain.MutationParams) (domain.LedgerResult, error) {
	var result domain.LedgerResult

	amount, err := parseAmount(ctx, arg.Amount)
	if err != nil {
		return result, err
	}

	err = r.inTx(ctx, func(repos txRepos) error {
		accounts, err := repos.accounts.LockByOwners(ctx, arg.Owner)
		if err != nil {
			return err
		}

		if len(accounts) == 0 {
			return domain.ErrAccountNotFound
		}

		result.Account, err = repos.accounts.AddBalance(ctx, accounts[0], amount)
		if err != nil {
			return err
		}

		result.Transaction, err = repos.transactions.Create(ctx, domain.CreateTransactionParams{
			AccountID: result.Account.ID,
			Kind:      domain.KindDeposit,
			Direction: domain.DirectionCredit,
			Amount:    arg.Amount,
		})
		if err != nil {
			return err
		}

		_, err = repos.jobs.Enqueue(ctx, result.Transaction.ID)

		return err
	})

	if err != nil {
		return domain.LedgerResult{}, err
	}

	return result, nil
}

// Withdraw debits the owner's account and records a pending withdrawal.
func (r *RepoPGS) Withdraw(ctx context.Context, arg domain.MutationParams) (domain.LedgerResult, error) {
	var result domain.LedgerResult

	amount, err := parseAmount(ctx, arg.Amount)
	if err != nil {
		return result, err
	}

	err = r.inTx(ctx, func(repos txRepos) error {
		accounts, err := repos.accounts.LockByOwners(ctx, arg.Owner)
		if err != nil {
			return err
		}

		if len(accounts) == 0 {
			return domain.ErrAccountNotFound
		}

		if err := checkFunds(accounts[0], amount); err != nil {
			return err
		}

		result.Account, err = repos.accounts.AddBalance(ctx, accounts[0], amount.Neg())
		if err != nil {
			return err
		}

		result.Transaction, err = repos.transactions.Create(ctx, domain.CreateTransactionParams{
			AccountID: result.Account.ID,
			Kind:      domain.KindWithdrawal,
			Direction: domain.DirectionDebit,
			Amount:    arg.Amount,
		})
		if err != nil {
			return err
		}

		_, err = repos.jobs.Enqueue(ctx, result.Transaction.ID)

		return err
	})

	if err != nil {
		return domain.LedgerResult{}, err
	}

	return result, nil
}

// Transfer moves money between two accounts.
//
// It debits the owner, credits the counterparty and records both halves with a
// shared transfer group. Only the debit half is queued for verification, the
// credit half is resolved together with it.
func (r *RepoPGS) Transfer(ctx context.Context, arg domain.MutationParams) (domain.LedgerResult, error) {
	var result domain.LedgerResult

	amount, err := parseAmount(ctx, arg.Amount)
	if err != nil {
		return result, err
	}

	if arg.Owner == arg.Counterparty {
		return result, domain.ErrSelfTransferNotAllowed
	}

	err = r.inTx(ctx, func(repos txRepos) error {
		// Locks are taken in ascending id order to avoid deadlocks.
		accounts, err := repos.accounts.LockByOwners(ctx, arg.Owner, arg.Counterparty)
		if err != nil {
			return err
		}

		var (
			from, to       domain.Account
			hasFrom, hasTo bool
		)

		for _, a := range accounts {
			switch a.Owner {
			case arg.Owner:
				from, hasFrom = a, true
			case arg.Counterparty:
				to, hasTo = a, true
			}
		}

		if !hasFrom {
			return domain.ErrAccountNotFound
		}

		if !hasTo {
			return domain.ErrCounterpartyNotFound
		}

		if err := checkFunds(from, amount); err != nil {
			return err
		}

		// Balance updates follow the same id order as the locks.
		if from.ID < to.ID {
			from, to, err = addBalances(ctx, repos.accounts, from, amount.Neg(), to, amount)
		} else {
			to, from, err = addBalances(ctx, repos.accounts, to, amount, from, amount.Neg())
		}

		if err != nil {
			return err
		}

		group := uuid.New()

		result.Transaction, err = repos.transactions.Create(ctx, domain.CreateTransactionParams{
			AccountID:      from.ID,
			CounterpartyID: &to.ID,
			TransferGroup:  &group,
			Kind:           domain.KindTransfer,
			Direction:      domain.DirectionDebit,
			Amount:         arg.Amount,
		})
		if err != nil {
			return err
		}

		credit, err := repos.transactions.Create(ctx, domain.CreateTransactionParams{
			AccountID:      to.ID,
			CounterpartyID: &from.ID,
			TransferGroup:  &group,
			Kind:           domain.KindTransfer,
			Direction:      domain.DirectionCredit,
			Amount:         arg.Amount,
		})
		if err != nil {
			return err
		}

		result.Counterpart = &credit
		result.Account = from
		result.CounterpartyAccount = &to

		_, err = repos.jobs.Enqueue(ctx, result.Transaction.ID)

		return err
	})

	if err != nil {
		return domain.LedgerResult{}, err
	}

	return result, nil
}

func checkFunds(a domain.Account, amount decimal.Decimal) error {
	balance, err := decimal.NewFromString(a.Balance)
	if err != nil {
		return errorspkg.ErrInternal
	}

	if balance.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}

	return nil
}

func addBalances(
	ctx context.Context,
	r *accountrepo.RepoPGS,
	account1 domain.Account, delta1 decimal.Decimal,
	account2 domain.Account, delta2 decimal.Decimal,
) (domain.Account, domain.Account, error) {
	updated1, err := r.AddBalance(ctx, account1, delta1)
	if err != nil {
		return domain.Account{}, domain.Account{}, err
	}

	updated2, err := r.AddBalance(ctx, account2, delta2)
	if err != nil {
		return domain.Account{}, domain.Account{}, err
	}

	return updated1, updated2, nil
}
