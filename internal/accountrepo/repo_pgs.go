// Package accountrepo manages repository layer of accounts.
package accountrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
)

// RepoPGS facilitates account repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns account RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const columns = `id, owner, balance, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (domain.Account, error) {
	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Owner,
		&a.Balance,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

const getQuery = `
SELECT ` + columns + `
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.Info().Err(err).Int64("account_id", id).Send()
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Send()

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const getByOwnerQuery = `
SELECT ` + columns + `
FROM accounts
WHERE owner = $1
`

// GetByOwner returns the account of the given user.
func (r *RepoPGS) GetByOwner(ctx context.Context, owner string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, getByOwnerQuery, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.Info().Err(err).Str("owner", owner).Send()
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Send()

		return a, errorspkg.ErrInternal
	}

	return a, nil
}

const lockByOwnersQuery = `
SELECT ` + columns + `
FROM accounts
WHERE owner = ANY($1)
ORDER BY id
FOR UPDATE
`

// LockByOwners row-locks the accounts of the given users in ascending id order.
//
// It must run inside a transaction. Missing owners are simply absent from the result.
func (r *RepoPGS) LockByOwners(ctx context.Context, owners ...string) ([]domain.Account, error) {
	return r.lock(ctx, lockByOwnersQuery, pq.Array(owners))
}

const lockByIDsQuery = `
SELECT ` + columns + `
FROM accounts
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE
`

// LockByIDs row-locks the given accounts in ascending id order.
func (r *RepoPGS) LockByIDs(ctx context.Context, ids ...int64) ([]domain.Account, error) {
	return r.lock(ctx, lockByIDsQuery, pq.Array(ids))
}

func (r *RepoPGS) lock(ctx context.Context, query string, arg any) ([]domain.Account, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Account{}

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, a)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const setBalanceQuery = `
UPDATE accounts
SET balance = $1, updated_at = now()
WHERE id = $2
RETURNING ` + columns

// AddBalance changes the account's balance by delta and returns the changed account.
//
// The new balance is rounded to cents and must stay non-negative. The caller is
// expected to hold the row lock of the account.
func (r *RepoPGS) AddBalance(ctx context.Context, account domain.Account, delta decimal.Decimal) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	current, err := decimal.NewFromString(account.Balance)
	if err != nil {
		l.Error().Err(err).Int64("account_id", account.ID).Send()
		return account, errorspkg.ErrInternal
	}

	balance, err := domain.EnforceBalance(current.Add(delta))
	if err != nil {
		l.Error().Err(err).
			Int64("account_id", account.ID).
			Str("balance", account.Balance).
			Str("delta", delta.String()).
			Send()

		return account, err
	}

	a, err := scanAccount(r.db.QueryRowContext(ctx, setBalanceQuery, moneypkg.String(balance), account.ID))
	if err != nil {
		l.Error().Err(err).Send()

		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch {
			case pqErr.Constraint == "accounts_balance_check":
				return a, domain.ErrBalanceInvariant
			case pqErr.Code.Name() == "numeric_value_out_of_range":
				return a, domain.ErrInvalidAmount
			}
		}

		return a, errorspkg.ErrInternal
	}

	return a, nil
}
