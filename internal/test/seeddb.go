// Package test provides shared test helpers.
package test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/transactionrepo"
	"github.com/go-petr/pet-ledger/internal/userrepo"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/passpkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
)

// SeedUser creates random User together with an empty account.
func SeedUser(t *testing.T, db dbpkg.SQLInterface) domain.User {
	t.Helper()

	hashedPassword, err := passpkg.Hash(randompkg.String(32))
	if err != nil {
		t.Fatalf("passpkg.Hash(randompkg.String(32)) returned error: %v", err)
	}

	arg := domain.CreateUserParams{
		Username:       randompkg.Owner(),
		HashedPassword: hashedPassword,
		FullName:       randompkg.String(10),
		Email:          randompkg.Email(),
	}

	userRepo := userrepo.NewRepoPGS(db)

	user, err := userRepo.Create(context.Background(), arg)
	if err != nil {
		t.Fatalf("userRepo.Create(context.Background(), %+v) returned error: %v", arg, err)
	}

	return user
}

// SeedUserWithBalance creates random User whose account holds balance.
func SeedUserWithBalance(t *testing.T, db dbpkg.SQLInterface, balance string) (domain.User, domain.Account) {
	t.Helper()

	user := SeedUser(t, db)
	accountRepo := accountrepo.NewRepoPGS(db)

	account, err := accountRepo.GetByOwner(context.Background(), user.Username)
	if err != nil {
		t.Fatalf("accountRepo.GetByOwner(context.Background(), %v) returned error: %v", user.Username, err)
	}

	account, err = accountRepo.AddBalance(context.Background(), account, decimal.RequireFromString(balance))
	if err != nil {
		t.Fatalf("accountRepo.AddBalance(context.Background(), %+v, %v) returned error: %v", account, balance, err)
	}

	return user, account
}

// SeedTransaction inserts a ledger row without touching balances.
func SeedTransaction(t *testing.T, db dbpkg.SQLInterface, arg domain.CreateTransactionParams) domain.Transaction {
	t.Helper()

	transactionRepo := transactionrepo.NewRepoPGS(db)

	tx, err := transactionRepo.Create(context.Background(), arg)
	if err != nil {
		t.Fatalf("transactionRepo.Create(context.Background(), %+v) returned error: %v", arg, err)
	}

	return tx
}
