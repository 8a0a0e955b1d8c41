package domain

import (
	"errors"
	"time"
)

// ErrJobNotFound indicates that the verification job is not found.
var ErrJobNotFound = errors.New("verification job not found")

// Verification job statuses.
const (
	JobQueued = "queued"
	JobDone   = "done"
	JobDead   = "dead"
)

// VerificationJob is a queued request to verify a transaction.
type VerificationJob struct {
	ID            int64     `json:"id"`
	TransactionID int64     `json:"transaction_id"`
	Status        string    `json:"status"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error"`
	NextRunAt     time.Time `json:"next_run_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
