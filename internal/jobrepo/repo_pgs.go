// Package jobrepo manages the verification job queue stored in Postgres.
package jobrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// RepoPGS facilitates verification job repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns job RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const columns = `id, transaction_id, status, attempts, last_error, next_run_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (domain.VerificationJob, error) {
	var j domain.VerificationJob

	err := row.Scan(
		&j.ID,
		&j.TransactionID,
		&j.Status,
		&j.Attempts,
		&j.LastError,
		&j.NextRunAt,
		&j.CreatedAt,
		&j.UpdatedAt,
	)

	return j, err
}

func (r *RepoPGS) scanAll(ctx context.Context, query string, args ...any) ([]domain.VerificationJob, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.VerificationJob{}

	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, j)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

func (r *RepoPGS) update(ctx context.Context, query string, args ...any) (domain.VerificationJob, error) {
	l := zerolog.Ctx(ctx)

	j, err := scanJob(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.Warn().Err(err).Send()
			return j, domain.ErrJobNotFound
		}

		l.Error().Err(err).Send()

		return j, errorspkg.ErrInternal
	}

	return j, nil
}

const enqueueQuery = `
INSERT INTO verification_jobs (transaction_id)
VALUES ($1)
RETURNING ` + columns

// Enqueue schedules verification of the transaction.
//
// Run it on the same *sql.Tx as the mutation so the job commits with it.
func (r *RepoPGS) Enqueue(ctx context.Context, transactionID int64) (domain.VerificationJob, error) {
	l := zerolog.Ctx(ctx)

	j, err := scanJob(r.db.QueryRowContext(ctx, enqueueQuery, transactionID))
	if err != nil {
		l.Error().Err(err).Int64("transaction_id", transactionID).Send()
		return j, errorspkg.ErrInternal
	}

	return j, nil
}

const claimQuery = `
WITH picked AS (
    SELECT id
    FROM verification_jobs
    WHERE status = 'queued' AND next_run_at <= now()
    ORDER BY next_run_at, id
    LIMIT $1
    FOR UPDATE SKIP LOCKED
)
UPDATE verification_jobs j
SET attempts = j.attempts + 1,
    next_run_at = now() + make_interval(secs => $2),
    updated_at = now()
FROM picked
WHERE j.id = picked.id
RETURNING j.id, j.transaction_id, j.status, j.attempts, j.last_error, j.next_run_at, j.created_at, j.updated_at
`

// Claim leases up to limit due jobs.
//
// A claimed job stays queued but is invisible to other workers until the lease
// expires, so a crashed worker's job is delivered again.
func (r *RepoPGS) Claim(ctx context.Context, limit int, lease time.Duration) ([]domain.VerificationJob, error) {
	return r.scanAll(ctx, claimQuery, limit, lease.Seconds())
}

const completeQuery = `
UPDATE verification_jobs
SET status = 'done', last_error = $2, updated_at = now()
WHERE id = $1
RETURNING ` + columns

// Complete marks the job as done. A non-empty note is kept as the last error.
func (r *RepoPGS) Complete(ctx context.Context, id int64, note string) error {
	_, err := r.update(ctx, completeQuery, id, note)
	return err
}

const retryQuery = `
UPDATE verification_jobs
SET next_run_at = now() + make_interval(secs => $2), last_error = $3, updated_at = now()
WHERE id = $1 AND status = 'queued'
RETURNING ` + columns

// Retry reschedules the job after delay.
func (r *RepoPGS) Retry(ctx context.Context, id int64, delay time.Duration, lastErr string) error {
	_, err := r.update(ctx, retryQuery, id, delay.Seconds(), lastErr)
	return err
}

const buryQuery = `
UPDATE verification_jobs
SET status = 'dead', last_error = $2, updated_at = now()
WHERE id = $1
RETURNING ` + columns

// Bury moves the job to the dead letter state for manual review.
func (r *RepoPGS) Bury(ctx context.Context, id int64, lastErr string) error {
	_, err := r.update(ctx, buryQuery, id, lastErr)
	return err
}

const listDeadQuery = `
SELECT ` + columns + `
FROM verification_jobs
WHERE status = 'dead'
ORDER BY updated_at DESC, id DESC
LIMIT $1 OFFSET $2
`

// ListDead returns a page of dead lettered jobs, most recent first.
func (r *RepoPGS) ListDead(ctx context.Context, limit, offset int32) ([]domain.VerificationJob, error) {
	return r.scanAll(ctx, listDeadQuery, limit, offset)
}

const requeueQuery = `
UPDATE verification_jobs
SET status = 'queued', attempts = 0, next_run_at = now(), updated_at = now()
WHERE id = $1 AND status = 'dead'
RETURNING ` + columns

// Requeue puts a dead job back on the queue with a fresh attempt budget.
func (r *RepoPGS) Requeue(ctx context.Context, id int64) (domain.VerificationJob, error) {
	return r.update(ctx, requeueQuery, id)
}
