package verification

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// Repo provides data access layer interface needed by verification service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package verification
type Repo interface {
	Resolve(ctx context.Context, arg domain.ResolveParams) (domain.Resolution, error)
}

// Notifier accepts outbound notifications without blocking.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// Service facilitates verification service layer logic.
type Service struct {
	repo     Repo
	notifier Notifier
	policy   Policy
	now      func() time.Time
}

// New returns verification service struct.
func New(repo Repo, notifier Notifier, policy Policy) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
	}
}

// Verify resolves the transaction with the given id.
//
// Notifications go out only when this call moved the transaction to a terminal
// status, so redelivered jobs never notify twice.
func (s *Service) Verify(ctx context.Context, transactionID int64) (domain.Resolution, error) {
	l := zerolog.Ctx(ctx)

	start, end := s.policy.Day(s.now())

	res, err := s.repo.Resolve(ctx, domain.ResolveParams{
		TransactionID: transactionID,
		DayStart:      start,
		DayEnd:        end,
		Judge:         s.policy.Judge,
	})
	if err != nil {
		return res, err
	}

	if !res.Changed {
		return res, nil
	}

	l.Info().
		Int64("transaction_id", res.Transaction.ID).
		Str("status", res.Transaction.Status).
		Str("failure_reason", res.Transaction.FailureReason).
		Int("reversal_entries", len(res.Reversal)).
		Str("reversal_skipped", res.ReversalSkipped).
		Msg("transaction verified")

	if res.Verdict.Notify != "" {
		s.notifier.Notify(ctx, domain.Notification{
			Kind:          res.Verdict.Notify,
			Username:      res.Recipient.Username,
			Email:         res.Recipient.Email,
			TransactionID: res.Transaction.ID,
			Amount:        res.Transaction.Amount,
		})
	}

	return res, nil
}
