//go:build integration

package verificationrepo_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/integrationtest"
	"github.com/go-petr/pet-ledger/internal/ledgerrepo"
	"github.com/go-petr/pet-ledger/internal/test"
	"github.com/go-petr/pet-ledger/internal/verification"
	"github.com/go-petr/pet-ledger/internal/verificationrepo"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
)

var (
	dbSource string
	ctx      context.Context
)

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	source, terminate, err := integrationtest.RunPostgres(context.Background())
	if err != nil {
		log.Println("cannot start postgres:", err)
		return 1
	}
	defer terminate()

	dbSource = source
	ctx = zerolog.Nop().WithContext(context.Background())

	return m.Run()
}

func policy(reverse bool) verification.Policy {
	return verification.Policy{
		DailyLimit:       decimal.RequireFromString("3000000.00"),
		LargeThreshold:   decimal.RequireFromString("10000.00"),
		Location:         time.UTC,
		ReverseOnFailure: reverse,
	}
}

func resolveParams(p verification.Policy, id int64) domain.ResolveParams {
	start, end := p.Day(time.Now())

	return domain.ResolveParams{
		TransactionID: id,
		DayStart:      start,
		DayEnd:        end,
		Judge:         p.Judge,
	}
}

// seedSpent records completed withdrawals worth amount on the account today.
func seedSpent(t *testing.T, db dbpkg.SQLInterface, account domain.Account, amount string) {
	t.Helper()

	test.SeedTransaction(t, db, domain.CreateTransactionParams{
		AccountID: account.ID,
		Kind:      domain.KindWithdrawal,
		Direction: domain.DirectionDebit,
		Amount:    amount,
		Status:    domain.StatusCompleted,
	})
}

func TestResolveWithinLimit(t *testing.T) {
	db := integrationtest.SetupDB(t, dbSource)
	ledger := ledgerrepo.NewRepoPGS(db)
	repo := verificationrepo.NewRepoPGS(db)
	p := policy(false)

	user, _ := test.SeedUserWithBalance(t, db, "50000.00")

	res, err := ledger.Withdraw(ctx, domain.MutationParams{Owner: user.Username, Amount: "15000.00"})
	require.NoError(t, err)

	got, err := repo.Resolve(ctx, resolveParams(p, res.Transaction.ID))
	require.NoError(t, err)

	require.True(t, got.Changed)
	require.Equal(t, domain.StatusCompleted, got.Transaction.Status)
	require.Equal(t, domain.NotifyLargeTransaction, got.Verdict.Notify)
	require.Equal(t, user.Username, got.Recipient.Username)
	require.Equal(t, user.Email, got.Recipient.Email)

	// A second delivery of the same job changes nothing.
	again, err := repo.Resolve(ctx, resolveParams(p, res.Transaction.ID))
	require.NoError(t, err)
	require.False(t, again.Changed)
	require.Equal(t, domain.StatusCompleted, again.Transaction.Status)
}

func TestResolveOverLimit(t *testing.T) {
	db := integrationtest.SetupDB(t, dbSource)
	ledger := ledgerrepo.NewRepoPGS(db)
	repo := verificationrepo.NewRepoPGS(db)
	p := policy(false)

	user, account := test.SeedUserWithBalance(t, db, "1000.00")
	seedSpent(t, db, account, "2999950.00")

	res, err := ledger.Withdraw(ctx, domain.MutationParams{Owner: user.Username, Amount: "100.00"})
	require.NoError(t, err)

	got, err := repo.Resolve(ctx, resolveParams(p, res.Transaction.ID))
	require.NoError(t, err)

	require.True(t, got.Changed)
	require.Equal(t, domain.StatusFailed, got.Transaction.Status)
	require.Equal(t, domain.FailureDailyLimit, got.Transaction.FailureReason)
	require.Equal(t, domain.NotifyLimitExceeded, got.Verdict.Notify)
	require.Empty(t, got.Reversal)

	// The money stays debited unless reversal is enabled.
	acc, err := accountrepo.NewRepoPGS(db).Get(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "900.00", acc.Balance)
}

func TestResolveOverLimitReversesWithdrawal(t *testing.T) {
	db := integrationtest.SetupDB(t, dbSource)
	ledger := ledgerrepo.NewRepoPGS(db)
	repo := verificationrepo.NewRepoPGS(db)
	p := policy(true)

	user, account := test.SeedUserWithBalance(t, db, "1000.00")
	seedSpent(t, db, account, "3000000.00")

	res, err := ledger.Withdraw(ctx, domain.MutationParams{Owner: user.Username, Amount: "0.01"})
	require.NoError(t, err)

	got, err := repo.Resolve(ctx, resolveParams(p, res.Transaction.ID))
	require.NoError(t, err)

	require.Equal(t, domain.StatusFailed, got.Transaction.Status)
	require.Len(t, got.Reversal, 1)
	require.Equal(t, domain.KindReversal, got.Reversal[0].Kind)
	require.Equal(t, domain.StatusCompleted, got.Reversal[0].Status)
	require.Equal(t, res.Transaction.ID, *got.Reversal[0].ReversesID)

	acc, err := accountrepo.NewRepoPGS(db).Get(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "1000.00", acc.Balance)
}

func TestResolveTransfer(t *testing.T) {
	db := integrationtest.SetupDB(t, dbSource)
	ledger := ledgerrepo.NewRepoPGS(db)
	repo := verificationrepo.NewRepoPGS(db)
	p := policy(true)

	alice, aliceAccount := test.SeedUserWithBalance(t, db, "500.00")
	bob, bobAccount := test.SeedUserWithBalance(t, db, "100.00")

	ok, err := ledger.Transfer(ctx, domain.MutationParams{Owner: alice.Username, Counterparty: bob.Username, Amount: "200.00"})
	require.NoError(t, err)

	// Resolving by the credit half resolves the whole transfer.
	got, err := repo.Resolve(ctx, resolveParams(p, ok.Counterpart.ID))
	require.NoError(t, err)
	require.True(t, got.Changed)
	require.Equal(t, ok.Transaction.ID, got.Transaction.ID)
	require.Equal(t, domain.StatusCompleted, got.Transaction.Status)

	credit, err := ledger.Get(ctx, ok.Counterpart.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, credit.Status)

	// Push alice over the limit and check both halves fail and are reversed.
	seedSpent(t, db, aliceAccount, "3000000.00")

	failed, err := ledger.Transfer(ctx, domain.MutationParams{Owner: alice.Username, Counterparty: bob.Username, Amount: "50.00"})
	require.NoError(t, err)

	got, err = repo.Resolve(ctx, resolveParams(p, failed.Transaction.ID))
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, got.Transaction.Status)
	require.Len(t, got.Reversal, 2)

	credit, err = ledger.Get(ctx, failed.Counterpart.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, credit.Status)

	accounts := accountrepo.NewRepoPGS(db)

	a, err := accounts.Get(ctx, aliceAccount.ID)
	require.NoError(t, err)
	require.Equal(t, "300.00", a.Balance)

	b, err := accounts.Get(ctx, bobAccount.ID)
	require.NoError(t, err)
	require.Equal(t, "300.00", b.Balance)
}

func TestResolveTransferReversalSkipped(t *testing.T) {
	db := integrationtest.SetupDB(t, dbSource)
	ledger := ledgerrepo.NewRepoPGS(db)
	repo := verificationrepo.NewRepoPGS(db)
	p := policy(true)

	alice, aliceAccount := test.SeedUserWithBalance(t, db, "500.00")
	bob, _ := test.SeedUserWithBalance(t, db, "0.00")
	seedSpent(t, db, aliceAccount, "3000000.00")

	res, err := ledger.Transfer(ctx, domain.MutationParams{Owner: alice.Username, Counterparty: bob.Username, Amount: "200.00"})
	require.NoError(t, err)

	// Bob spends the money before verification runs.
	_, err = ledger.Withdraw(ctx, domain.MutationParams{Owner: bob.Username, Amount: "150.00"})
	require.NoError(t, err)

	got, err := repo.Resolve(ctx, resolveParams(p, res.Transaction.ID))
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, got.Transaction.Status)
	require.Empty(t, got.Reversal)
	require.Equal(t, verificationrepo.ReversalSkippedFunds, got.ReversalSkipped)
}

func TestResolveNotFound(t *testing.T) {
	db := integrationtest.SetupDB(t, dbSource)
	repo := verificationrepo.NewRepoPGS(db)

	_, err := repo.Resolve(ctx, resolveParams(policy(false), 424242))
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}
