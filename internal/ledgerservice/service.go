// Package ledgerservice manages business logic layer of ledger transactions.
package ledgerservice

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
)

// Repo provides data access layer interface needed by ledger service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package ledgerservice
type Repo interface {
	Deposit(ctx context.Context, arg domain.MutationParams) (domain.LedgerResult, error)
	Withdraw(ctx context.Context, arg domain.MutationParams) (domain.LedgerResult, error)
	Transfer(ctx context.Context, arg domain.MutationParams) (domain.LedgerResult, error)
	Get(ctx context.Context, id int64) (domain.Transaction, error)
	List(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error)
}

// Service facilitates ledger service layer logic.
type Service struct {
	repo Repo
}

// New returns ledger service struct to manage ledger business logic.
func New(repo Repo) *Service {
	return &Service{repo: repo}
}

func normalize(ctx context.Context, amount string) (string, error) {
	d, err := moneypkg.ParseAmount(amount)
	if err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Str("amount", amount).Send()
		return "", domain.ErrInvalidAmount
	}

	return moneypkg.String(d), nil
}

// Submit runs the mutation named by kind.
func (s *Service) Submit(ctx context.Context, kind string, arg domain.MutationParams) (domain.LedgerResult, error) {
	switch kind {
	case domain.KindDeposit:
		return s.Deposit(ctx, arg.Owner, arg.Amount)
	case domain.KindWithdrawal:
		return s.Withdraw(ctx, arg.Owner, arg.Amount)
	case domain.KindTransfer:
		return s.Transfer(ctx, arg.Owner, arg.Counterparty, arg.Amount)
	}

	return domain.LedgerResult{}, domain.ErrInvalidKind
}

// Deposit credits amount to the owner's account.
func (s *Service) Deposit(ctx context.Context, owner, amount string) (domain.LedgerResult, error) {
	amount, err := normalize(ctx, amount)
	if err != nil {
		return domain.LedgerResult{}, err
	}

	return s.repo.Deposit(ctx, domain.MutationParams{Owner: owner, Amount: amount})
}

// Withdraw debits amount from the owner's account.
func (s *Service) Withdraw(ctx context.Context, owner, amount string) (domain.LedgerResult, error) {
	amount, err := normalize(ctx, amount)
	if err != nil {
		return domain.LedgerResult{}, err
	}

	return s.repo.Withdraw(ctx, domain.MutationParams{Owner: owner, Amount: amount})
}

// Transfer moves amount from the owner's account to the recipient's account.
func (s *Service) Transfer(ctx context.Context, owner, recipient, amount string) (domain.LedgerResult, error) {
	amount, err := normalize(ctx, amount)
	if err != nil {
		return domain.LedgerResult{}, err
	}

	if recipient == "" {
		return domain.LedgerResult{}, domain.ErrCounterpartyNotFound
	}

	if recipient == owner {
		return domain.LedgerResult{}, domain.ErrSelfTransferNotAllowed
	}

	return s.repo.Transfer(ctx, domain.MutationParams{Owner: owner, Counterparty: recipient, Amount: amount})
}

// Get returns the transaction with the given id.
//
// Users only see their own transactions. Foreign rows look like missing ones.
func (s *Service) Get(ctx context.Context, viewer domain.Viewer, id int64) (domain.Transaction, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}

	if !viewer.IsAdmin() && t.Owner != viewer.Username {
		zerolog.Ctx(ctx).Warn().Str("viewer", viewer.Username).Int64("transaction_id", id).Msg("foreign transaction requested")
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}

	return t, nil
}

// ErrInvalidPage indicates a non-positive page id or size.
var ErrInvalidPage = errors.New("invalid page")

// List returns a page of transactions, newest first.
//
// Admins list every account or filter by username, users always get their own history.
func (s *Service) List(ctx context.Context, viewer domain.Viewer, username string, pageID, pageSize int32) ([]domain.Transaction, error) {
	if pageID < 1 || pageSize < 1 {
		return nil, ErrInvalidPage
	}

	owner := viewer.Username
	if viewer.IsAdmin() {
		owner = username
	}

	return s.repo.List(ctx, domain.ListTransactionsParams{
		Owner:  owner,
		Limit:  pageSize,
		Offset: (pageID - 1) * pageSize,
	})
}
