// Package worker runs verification jobs from the Postgres backed queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
)

// JobRepo provides the queue operations needed by the pool.
//
//go:generate mockgen -source pool.go -destination pool_mock.go -package worker
type JobRepo interface {
	Claim(ctx context.Context, limit int, lease time.Duration) ([]domain.VerificationJob, error)
	Complete(ctx context.Context, id int64, note string) error
	Retry(ctx context.Context, id int64, delay time.Duration, lastErr string) error
	Bury(ctx context.Context, id int64, lastErr string) error
}

// Verifier verifies a single transaction.
type Verifier interface {
	Verify(ctx context.Context, transactionID int64) (domain.Resolution, error)
}

// Config tunes the pool.
type Config struct {
	Concurrency  int
	PollInterval time.Duration
	JobTimeout   time.Duration
	Lease        time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
}

// NewConfig reads the pool settings from the application configuration.
func NewConfig(c configpkg.Config) Config {
	return Config{
		Concurrency:  c.WorkerConcurrency,
		PollInterval: c.WorkerPollInterval,
		JobTimeout:   c.WorkerJobTimeout,
		Lease:        c.WorkerLease,
		MaxAttempts:  c.WorkerMaxAttempts,
		BackoffBase:  c.WorkerBackoffBase,
		BackoffMax:   c.WorkerBackoffMax,
	}
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}

	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = 10 * time.Second
	}

	// The lease must outlive a job run or the job gets delivered twice.
	if c.Lease <= c.JobTimeout {
		c.Lease = 2 * c.JobTimeout
	}

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}

	return c
}

// Pool polls the queue and verifies claimed jobs concurrently.
type Pool struct {
	jobs     JobRepo
	verifier Verifier
	config   Config
	backoff  func(attempts int) time.Duration
}

// New returns a worker pool.
func New(jobs JobRepo, verifier Verifier, config Config) *Pool {
	config = config.withDefaults()

	return &Pool{
		jobs:     jobs,
		verifier: verifier,
		config:   config,
		backoff: func(attempts int) time.Duration {
			return Backoff(config.BackoffBase, config.BackoffMax, attempts)
		},
	}
}

// Run starts the workers and blocks until ctx is cancelled and every in-flight job has finished.
func (p *Pool) Run(ctx context.Context) {
	l := zerolog.Ctx(ctx)
	l.Info().Int("concurrency", p.config.Concurrency).Msg("verification worker started")

	var wg sync.WaitGroup

	for i := 0; i < p.config.Concurrency; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()
			p.loop(ctx, n)
		}(i)
	}

	wg.Wait()

	l.Info().Msg("verification worker stopped")
}

func (p *Pool) loop(ctx context.Context, n int) {
	l := zerolog.Ctx(ctx).With().Int("worker", n).Logger()
	ctx = l.WithContext(ctx)

	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := p.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			l.Error().Err(err).Msg("claim failed")
		}

		if processed {
			continue
		}

		timer := time.NewTimer(p.config.PollInterval)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// ProcessNext claims and handles at most one job. It reports whether a job was found.
func (p *Pool) ProcessNext(ctx context.Context) (bool, error) {
	jobs, err := p.jobs.Claim(ctx, 1, p.config.Lease)
	if err != nil {
		return false, err
	}

	if len(jobs) == 0 {
		return false, nil
	}

	p.handle(ctx, jobs[0])

	return true, nil
}

// handle runs one job and records its outcome. Queue errors are logged only,
// the lease brings the job back.
func (p *Pool) handle(ctx context.Context, job domain.VerificationJob) {
	l := zerolog.Ctx(ctx).With().
		Int64("job_id", job.ID).
		Int64("transaction_id", job.TransactionID).
		Int("attempt", job.Attempts).
		Logger()

	// Bookkeeping must still happen when the parent context is cancelled mid run.
	bookkeeping := l.WithContext(context.WithoutCancel(ctx))

	runCtx, cancel := context.WithTimeout(l.WithContext(ctx), p.config.JobTimeout)
	err := p.run(runCtx, job.TransactionID)
	cancel()

	switch {
	case err == nil:
		if err := p.jobs.Complete(bookkeeping, job.ID, ""); err != nil {
			l.Error().Err(err).Msg("complete job")
		}

	case errors.Is(err, domain.ErrTransactionNotFound):
		l.Warn().Err(err).Msg("dropping job")

		if err := p.jobs.Complete(bookkeeping, job.ID, err.Error()); err != nil {
			l.Error().Err(err).Msg("complete job")
		}

	case job.Attempts >= p.config.MaxAttempts:
		l.Error().Err(err).Msg("attempts exhausted, job needs manual review")

		if err := p.jobs.Bury(bookkeeping, job.ID, err.Error()); err != nil {
			l.Error().Err(err).Msg("bury job")
		}

	default:
		delay := p.backoff(job.Attempts)
		l.Warn().Err(err).Dur("retry_in", delay).Msg("verification failed")

		if err := p.jobs.Retry(bookkeeping, job.ID, delay, err.Error()); err != nil {
			l.Error().Err(err).Msg("retry job")
		}
	}
}

func (p *Pool) run(ctx context.Context, transactionID int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("verification panicked: %v", r)
		}
	}()

	_, err = p.verifier.Verify(ctx, transactionID)

	return err
}
