package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidAmount indicates a malformed, non-positive or oversized amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidKind indicates a transaction kind clients may not submit.
	ErrInvalidKind = errors.New("invalid transaction kind")
	// ErrSelfTransferNotAllowed indicates a transfer to the sender's own account.
	ErrSelfTransferNotAllowed = errors.New("cannot transfer to yourself")
	// ErrCounterpartyNotFound indicates that the transfer recipient does not exist.
	ErrCounterpartyNotFound = errors.New("recipient not found")
	// ErrTransactionNotFound indicates that the transaction is not found.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrTransactionFinalized indicates an attempt to change a terminal transaction.
	ErrTransactionFinalized = errors.New("transaction already finalized")
)

// Transaction kinds.
const (
	KindDeposit    = "deposit"
	KindWithdrawal = "withdrawal"
	KindTransfer   = "transfer"
	KindReversal   = "reversal"
)

// Entry directions relative to the owning account.
const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

// Transaction statuses. A transaction leaves pending exactly once.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Transaction is a single ledger entry of an account.
type Transaction struct {
	ID             int64      `json:"id"`
	AccountID      int64      `json:"account_id"`
	Owner          string     `json:"owner"`
	CounterpartyID *int64     `json:"counterparty_id,omitempty"`
	TransferGroup  *uuid.UUID `json:"transfer_group,omitempty"`
	ReversesID     *int64     `json:"reverses_id,omitempty"`
	Kind           string     `json:"kind"`
	Direction      string     `json:"direction"`
	Amount         string     `json:"amount"`
	Status         string     `json:"status"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the transaction has been resolved.
func (t Transaction) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// CreateTransactionParams is the input data to insert a ledger entry.
type CreateTransactionParams struct {
	AccountID      int64
	CounterpartyID *int64
	TransferGroup  *uuid.UUID
	ReversesID     *int64
	Kind           string
	Direction      string
	Amount         string
	Status         string
}

// SetStatusParams is the input data to resolve a pending transaction.
type SetStatusParams struct {
	ID            int64
	Status        string
	FailureReason string
}

// ListTransactionsParams selects a page of transactions, newest first.
//
// An empty Owner lists transactions of every account.
type ListTransactionsParams struct {
	Owner  string
	Limit  int32
	Offset int32
}

// MutationParams is the input data of a ledger mutation.
type MutationParams struct {
	Owner        string
	Counterparty string
	Amount       string
}

// LedgerResult is the outcome of a committed ledger mutation.
type LedgerResult struct {
	Transaction         Transaction  `json:"transaction"`
	Counterpart         *Transaction `json:"counterpart,omitempty"`
	Account             Account      `json:"account"`
	CounterpartyAccount *Account     `json:"-"`
}
