// Package domain provides definitions of all entities.
package domain

import (
	"errors"
	"time"

	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountOwnerMismatch indicates that the account belongs to another user.
	ErrAccountOwnerMismatch = errors.New("account doesn't belong to the authenticated user")
	// ErrInsufficientFunds indicates that the account balance does not cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrBalanceInvariant indicates an attempt to persist a negative balance.
	ErrBalanceInvariant = errors.New("balance invariant violated")
)

// Account holds user balance data.
type Account struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EnforceBalance rounds the balance to cents and rejects negative values.
// A balance the column cannot hold is reported as ErrInvalidAmount.
func EnforceBalance(balance decimal.Decimal) (decimal.Decimal, error) {
	balance = moneypkg.Quantize(balance)

	if balance.IsNegative() {
		return decimal.Zero, ErrBalanceInvariant
	}

	if balance.GreaterThan(moneypkg.MaxAmount) {
		return decimal.Zero, ErrInvalidAmount
	}

	return balance, nil
}
