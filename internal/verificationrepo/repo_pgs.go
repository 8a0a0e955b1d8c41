// Package verificationrepo resolves pending transactions inside one database transaction.
package verificationrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/transactionrepo"
	"github.com/go-petr/pet-ledger/internal/userrepo"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
)

// ReversalSkippedFunds is reported when the recipient no longer holds the transferred money.
const ReversalSkippedFunds = "recipient balance does not cover the reversal"

// RepoPGS facilitates verification repository layer logic.
type RepoPGS struct {
	conn *sql.DB
}

// NewRepoPGS returns verification RepoPGS with connection to start transactions.
func NewRepoPGS(conn *sql.DB) *RepoPGS {
	return &RepoPGS{conn: conn}
}

// Resolve applies the judge to a pending transaction and persists its verdict.
//
// The transaction row and every involved account stay locked until commit, so
// verification runs touching the same account are serialized. A transaction that
// is already terminal is returned unchanged.
func (r *RepoPGS) Resolve(ctx context.Context, arg domain.ResolveParams) (domain.Resolution, error) {
	l := zerolog.Ctx(ctx)

	var res domain.Resolution

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return res, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.Error().Err(err).Send()
		}
	}()

	transactions := transactionrepo.NewRepoPGS(tx)
	accounts := accountrepo.NewRepoPGS(tx)
	users := userrepo.NewRepoPGS(tx)

	debit, credit, err := lockTarget(ctx, transactions, arg.TransactionID)
	if err != nil {
		return res, err
	}

	res.Transaction = debit

	owner, err := users.Get(ctx, debit.Owner)
	if err != nil {
		return res, err
	}

	res.Recipient = domain.Recipient{Username: owner.Username, Email: owner.Email}

	if debit.IsTerminal() {
		l.Info().Int64("transaction_id", debit.ID).Str("status", debit.Status).Msg("already resolved")
		return res, nil
	}

	ids := []int64{debit.AccountID}
	if debit.CounterpartyID != nil {
		ids = append(ids, *debit.CounterpartyID)
	}

	locked, err := accounts.LockByIDs(ctx, ids...)
	if err != nil {
		return res, err
	}

	total, err := transactions.SumCompleted(ctx, debit.AccountID, arg.DayStart, arg.DayEnd)
	if err != nil {
		return res, err
	}

	verdict, err := arg.Judge(domain.Subject{Transaction: debit, DailyTotal: total})
	if err != nil {
		l.Error().Err(err).Int64("transaction_id", debit.ID).Send()
		return res, errorspkg.ErrInternal
	}

	res.Verdict = verdict

	res.Transaction, err = transactions.SetStatus(ctx, domain.SetStatusParams{
		ID:            debit.ID,
		Status:        verdict.Status,
		FailureReason: verdict.FailureReason,
	})
	if err != nil {
		return res, err
	}

	if credit != nil {
		_, err = transactions.SetStatus(ctx, domain.SetStatusParams{
			ID:            credit.ID,
			Status:        verdict.Status,
			FailureReason: verdict.FailureReason,
		})
		if err != nil {
			return res, err
		}
	}

	if verdict.Status == domain.StatusFailed && verdict.Reverse {
		res.Reversal, res.ReversalSkipped, err = reverse(ctx, accounts, transactions, debit, locked)
		if err != nil {
			return res, err
		}
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return domain.Resolution{}, errorspkg.ErrInternal
	}

	res.Changed = true

	return res, nil
}

// lockTarget locks the transaction to verify. For transfers it locks both
// halves in id order and returns the debit half first.
func lockTarget(ctx context.Context, r *transactionrepo.RepoPGS, id int64) (domain.Transaction, *domain.Transaction, error) {
	t, err := r.Get(ctx, id)
	if err != nil {
		return t, nil, err
	}

	if t.TransferGroup == nil {
		t, err = r.GetForUpdate(ctx, id)
		return t, nil, err
	}

	group, err := r.LockGroup(ctx, *t.TransferGroup)
	if err != nil {
		return t, nil, err
	}

	var debit, credit *domain.Transaction

	for i := range group {
		switch group[i].Direction {
		case domain.DirectionDebit:
			debit = &group[i]
		case domain.DirectionCredit:
			credit = &group[i]
		}
	}

	if debit == nil {
		zerolog.Ctx(ctx).Error().Str("transfer_group", t.TransferGroup.String()).Msg("transfer without debit half")
		return t, nil, errorspkg.ErrInternal
	}

	return *debit, credit, nil
}

// reverse writes compensating entries for a failed withdrawal or transfer.
//
// A transfer is only reversed when the recipient still holds the amount, otherwise
// the reason is returned and nothing is written.
func reverse(
	ctx context.Context,
	accounts *accountrepo.RepoPGS,
	transactions *transactionrepo.RepoPGS,
	t domain.Transaction,
	locked []domain.Account,
) ([]domain.Transaction, string, error) {
	l := zerolog.Ctx(ctx)

	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, "", errorspkg.ErrInternal
	}

	byID := make(map[int64]domain.Account, len(locked))
	for _, a := range locked {
		byID[a.ID] = a
	}

	if t.Kind == domain.KindWithdrawal {
		if _, err := accounts.AddBalance(ctx, byID[t.AccountID], amount); err != nil {
			return nil, "", err
		}

		entry, err := transactions.Create(ctx, domain.CreateTransactionParams{
			AccountID:  t.AccountID,
			ReversesID: &t.ID,
			Kind:       domain.KindReversal,
			Direction:  domain.DirectionCredit,
			Amount:     t.Amount,
			Status:     domain.StatusCompleted,
		})
		if err != nil {
			return nil, "", err
		}

		return []domain.Transaction{entry}, "", nil
	}

	if t.Kind != domain.KindTransfer || t.CounterpartyID == nil {
		return nil, "", nil
	}

	recipient := byID[*t.CounterpartyID]

	held, err := decimal.NewFromString(recipient.Balance)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, "", errorspkg.ErrInternal
	}

	if held.LessThan(amount) {
		l.Warn().Int64("transaction_id", t.ID).Msg(ReversalSkippedFunds)
		return nil, ReversalSkippedFunds, nil
	}

	// Same id order as the locks.
	if t.AccountID < recipient.ID {
		if _, err := accounts.AddBalance(ctx, byID[t.AccountID], amount); err != nil {
			return nil, "", err
		}

		if _, err := accounts.AddBalance(ctx, recipient, amount.Neg()); err != nil {
			return nil, "", err
		}
	} else {
		if _, err := accounts.AddBalance(ctx, recipient, amount.Neg()); err != nil {
			return nil, "", err
		}

		if _, err := accounts.AddBalance(ctx, byID[t.AccountID], amount); err != nil {
			return nil, "", err
		}
	}

	group := uuid.New()

	back, err := transactions.Create(ctx, domain.CreateTransactionParams{
		AccountID:      t.AccountID,
		CounterpartyID: t.CounterpartyID,
		TransferGroup:  &group,
		ReversesID:     &t.ID,
		Kind:           domain.KindReversal,
		Direction:      domain.DirectionCredit,
		Amount:         t.Amount,
		Status:         domain.StatusCompleted,
	})
	if err != nil {
		return nil, "", err
	}

	taken, err := transactions.Create(ctx, domain.CreateTransactionParams{
		AccountID:      recipient.ID,
		CounterpartyID: &t.AccountID,
		TransferGroup:  &group,
		ReversesID:     &t.ID,
		Kind:           domain.KindReversal,
		Direction:      domain.DirectionDebit,
		Amount:         t.Amount,
		Status:         domain.StatusCompleted,
	})
	if err != nil {
		return nil, "", err
	}

	return []domain.Transaction{back, taken}, "", nil
}
