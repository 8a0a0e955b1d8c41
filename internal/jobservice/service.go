// Package jobservice manages dead lettered verification jobs.
package jobservice

import (
	"context"
	"errors"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// Repo provides data access layer interface needed by job service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package jobservice
type Repo interface {
	ListDead(ctx context.Context, limit, offset int32) ([]domain.VerificationJob, error)
	Requeue(ctx context.Context, id int64) (domain.VerificationJob, error)
}

// ErrInvalidPage indicates a non-positive page id or size.
var ErrInvalidPage = errors.New("invalid page")

// Service facilitates job service layer logic.
type Service struct {
	repo Repo
}

// New returns job service struct.
func New(jr Repo) *Service {
	return &Service{repo: jr}
}

// ListDead returns a page of dead lettered jobs, most recent first.
func (s *Service) ListDead(ctx context.Context, pageID, pageSize int32) ([]domain.VerificationJob, error) {
	if pageID < 1 || pageSize < 1 {
		return nil, ErrInvalidPage
	}

	return s.repo.ListDead(ctx, pageSize, (pageID-1)*pageSize)
}

// Requeue gives a dead job a fresh attempt budget.
func (s *Service) Requeue(ctx context.Context, id int64) (domain.VerificationJob, error) {
	return s.repo.Requeue(ctx, id)
}
