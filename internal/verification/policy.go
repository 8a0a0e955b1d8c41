// Package verification re-checks ledger policy after a mutation has committed.
package verification

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
)

// Policy holds the limits a transaction is verified against.
type Policy struct {
	DailyLimit     decimal.Decimal
	LargeThreshold decimal.Decimal
	Location       *time.Location
	// ReverseOnFailure writes compensating entries when the daily limit fails a transaction.
	ReverseOnFailure bool
}

// NewPolicy builds the Policy from configuration.
func NewPolicy(config configpkg.Config) (Policy, error) {
	var p Policy

	limit, err := decimal.NewFromString(config.DailyLimit)
	if err != nil {
		return p, fmt.Errorf("invalid DAILY_LIMIT %q: %w", config.DailyLimit, err)
	}

	threshold, err := decimal.NewFromString(config.LargeTransactionThreshold)
	if err != nil {
		return p, fmt.Errorf("invalid LARGE_TRANSACTION_THRESHOLD %q: %w", config.LargeTransactionThreshold, err)
	}

	loc, err := time.LoadLocation(config.LedgerTimezone)
	if err != nil {
		return p, fmt.Errorf("invalid LEDGER_TIMEZONE %q: %w", config.LedgerTimezone, err)
	}

	p = Policy{
		DailyLimit:       limit,
		LargeThreshold:   threshold,
		Location:         loc,
		ReverseOnFailure: config.ReverseOnLimitFailure,
	}

	return p, nil
}

// Day returns the calendar day containing now in the ledger time zone as [start, end).
//
// Days around DST changes are 23 or 25 hours long.
func (p Policy) Day(now time.Time) (time.Time, time.Time) {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}

	local := now.In(loc)
	y, m, d := local.Date()

	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	return start, end
}

// Judge decides the outcome of a pending transaction.
//
// Deposits always complete. Anything pushing the day's completed total over the
// daily limit fails. Outgoing amounts above the large threshold complete with an alert.
func (p Policy) Judge(s domain.Subject) (domain.Verdict, error) {
	t := s.Transaction

	if t.Kind == domain.KindDeposit {
		return domain.Verdict{Status: domain.StatusCompleted, Notify: domain.NotifyDepositSuccess}, nil
	}

	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("transaction %d amount %q: %w", t.ID, t.Amount, err)
	}

	if s.DailyTotal.Add(amount).GreaterThan(p.DailyLimit) {
		v := domain.Verdict{
			Status:        domain.StatusFailed,
			FailureReason: domain.FailureDailyLimit,
			Notify:        domain.NotifyLimitExceeded,
			Reverse:       p.ReverseOnFailure,
		}

		return v, nil
	}

	v := domain.Verdict{Status: domain.StatusCompleted}

	outgoing := t.Kind == domain.KindWithdrawal || t.Kind == domain.KindTransfer
	if outgoing && amount.GreaterThan(p.LargeThreshold) {
		v.Notify = domain.NotifyLargeTransaction
	}

	return v, nil
}
