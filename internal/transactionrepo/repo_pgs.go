// Package transactionrepo manages repository layer of ledger transactions.
package transactionrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// RepoPGS facilitates transaction repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns transaction RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const columns = `
    t.id, t.account_id, a.owner, t.counterparty_id, t.transfer_group, t.reverses_id,
    t.kind, t.direction, t.amount, t.status, t.failure_reason, t.created_at, t.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var t domain.Transaction

	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.Owner,
		&t.CounterpartyID,
		&t.TransferGroup,
		&t.ReversesID,
		&t.Kind,
		&t.Direction,
		&t.Amount,
		&t.Status,
		&t.FailureReason,
		&t.CreatedAt,
		&t.UpdatedAt,
	)

	return t, err
}

func (r *RepoPGS) scanAll(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transaction{}

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, t)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const createQuery = `
WITH t AS (
    INSERT INTO transactions (
        account_id, counterparty_id, transfer_group, reverses_id, kind, direction, amount, status
    ) VALUES (
        $1, $2, $3, $4, $5, $6, $7, $8
    ) RETURNING *
)
SELECT ` + columns + `
FROM t
JOIN accounts a ON a.id = t.account_id
`

// Create creates the transaction and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	status := arg.Status
	if status == "" {
		status = domain.StatusPending
	}

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.AccountID,
		arg.CounterpartyID,
		arg.TransferGroup,
		arg.ReversesID,
		arg.Kind,
		arg.Direction,
		arg.Amount,
		status,
	)

	t, err := scanTransaction(row)
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Constraint {
			case "transactions_account_id_fkey", "transactions_counterparty_id_fkey":
				return t, domain.ErrAccountNotFound
			case "transactions_amount_check":
				return t, domain.ErrInvalidAmount
			case "transactions_kind_check":
				return t, domain.ErrInvalidKind
			}
		}

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const getQuery = `
SELECT ` + columns + `
FROM transactions t
JOIN accounts a ON a.id = t.account_id
WHERE t.id = $1
`

// Get returns the transaction with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	return r.get(ctx, getQuery, id)
}

const getForUpdateQuery = getQuery + `FOR UPDATE OF t`

// GetForUpdate returns the transaction with the given id and holds its row lock.
func (r *RepoPGS) GetForUpdate(ctx context.Context, id int64) (domain.Transaction, error) {
	return r.get(ctx, getForUpdateQuery, id)
}

func (r *RepoPGS) get(ctx context.Context, query string, id int64) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.Info().Err(err).Int64("transaction_id", id).Send()
			return t, domain.ErrTransactionNotFound
		}

		l.Error().Err(err).Send()

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const lockGroupQuery = `
SELECT ` + columns + `
FROM transactions t
JOIN accounts a ON a.id = t.account_id
WHERE t.transfer_group = $1
ORDER BY t.id
FOR UPDATE OF t
`

// LockGroup row-locks both halves of a transfer in ascending id order.
func (r *RepoPGS) LockGroup(ctx context.Context, group uuid.UUID) ([]domain.Transaction, error) {
	return r.scanAll(ctx, lockGroupQuery, group)
}

const listQuery = `
SELECT ` + columns + `
FROM transactions t
JOIN accounts a ON a.id = t.account_id
WHERE $1 = '' OR a.owner = $1
ORDER BY t.created_at DESC, t.id DESC
LIMIT $2 OFFSET $3
`

// List returns a page of transactions, newest first.
func (r *RepoPGS) List(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error) {
	return r.scanAll(ctx, listQuery, arg.Owner, arg.Limit, arg.Offset)
}

const sumCompletedQuery = `
SELECT COALESCE(SUM(amount), 0)
FROM transactions
WHERE account_id = $1
    AND status = 'completed'
    AND kind <> 'reversal'
    AND NOT (kind = 'transfer' AND direction = 'credit')
    AND created_at >= $2
    AND created_at < $3
`

// SumCompleted sums the completed deposits, withdrawals and outgoing transfers
// of the account created in [from, to).
func (r *RepoPGS) SumCompleted(ctx context.Context, accountID int64, from, to time.Time) (decimal.Decimal, error) {
	l := zerolog.Ctx(ctx)

	var total decimal.Decimal

	err := r.db.QueryRowContext(ctx, sumCompletedQuery, accountID, from, to).Scan(&total)
	if err != nil {
		l.Error().Err(err).Send()
		return decimal.Zero, errorspkg.ErrInternal
	}

	return total, nil
}

const setStatusQuery = `
WITH t AS (
    UPDATE transactions
    SET status = $2, failure_reason = $3, updated_at = now()
    WHERE id = $1 AND status = 'pending'
    RETURNING *
)
SELECT ` + columns + `
FROM t
JOIN accounts a ON a.id = t.account_id
`

// SetStatus moves a pending transaction into a terminal status.
//
// It returns domain.ErrTransactionFinalized when the transaction is not pending anymore.
func (r *RepoPGS) SetStatus(ctx context.Context, arg domain.SetStatusParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	t, err := scanTransaction(r.db.QueryRowContext(ctx, setStatusQuery, arg.ID, arg.Status, arg.FailureReason))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.Warn().Err(err).Int64("transaction_id", arg.ID).Msg("transaction is not pending")
			return t, domain.ErrTransactionFinalized
		}

		l.Error().Err(err).Send()

		return t, errorspkg.ErrInternal
	}

	return t, nil
}
