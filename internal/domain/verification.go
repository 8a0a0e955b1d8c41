package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FailureDailyLimit is recorded on transactions that breach the daily limit.
const FailureDailyLimit = "daily limit exceeded"

// Subject is what a verification judge decides on.
type Subject struct {
	Transaction Transaction
	// DailyTotal sums the completed outgoing and deposit entries of the day.
	DailyTotal decimal.Decimal
}

// Verdict is the decision about a pending transaction.
type Verdict struct {
	Status        string
	FailureReason string
	Notify        NotificationKind
	Reverse       bool
}

// Judge decides the verdict for a subject.
type Judge func(Subject) (Verdict, error)

// ResolveParams is the input data of a single verification run.
type ResolveParams struct {
	TransactionID int64
	DayStart      time.Time
	DayEnd        time.Time
	Judge         Judge
}

// Recipient identifies whom a notification is addressed to.
type Recipient struct {
	Username string
	Email    string
}

// Resolution is the outcome of a verification run.
type Resolution struct {
	Transaction Transaction
	// Changed is false when the transaction was already terminal.
	Changed   bool
	Verdict   Verdict
	Recipient Recipient
	Reversal  []Transaction
	// ReversalSkipped explains why a requested reversal was not written.
	ReversalSkipped string
}
