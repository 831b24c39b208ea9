package domain

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrNonPositiveAmount is returned for amounts that are not strictly
	// positive finite numbers.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrInsufficientBalance is returned when a withdrawal exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNegativeBalance is returned when an account would be created or
	// persisted with a balance below zero.
	ErrNegativeBalance = errors.New("balance cannot be negative")
	// ErrBalanceOverflow is returned when a deposit would push the balance
	// past the largest representable amount.
	ErrBalanceOverflow = errors.New("balance overflow")
	// ErrAccountExists is returned by repositories on a duplicate create.
	ErrAccountExists = errors.New("account already exists")
)

// Account is a bank account holding a single balance.
type Account struct {
	ID        string    `json:"id"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount builds an account with the given opening balance.
func NewAccount(id string, initialBalance float64) (*Account, error) {
	if math.IsNaN(initialBalance) || math.IsInf(initialBalance, 0) || initialBalance < 0 {
		return nil, ErrNegativeBalance
	}
	now := time.Now().UTC()
	return &Account{
		ID:        id,
		Balance:   initialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidAmount reports whether amount can be moved between accounts.
func ValidAmount(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 1)
}

// Deposit adds amount to the balance.
func (a *Account) Deposit(amount float64) error {
	if !ValidAmount(amount) {
		return ErrNonPositiveAmount
	}
	if math.IsInf(a.Balance+amount, 1) {
		return ErrBalanceOverflow
	}
	a.Balance += amount
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Withdraw removes amount from the balance. The balance is left untouched on
// error.
func (a *Account) Withdraw(amount float64) error {
	if !ValidAmount(amount) {
		return ErrNonPositiveAmount
	}
	if amount > a.Balance {
		return ErrInsufficientBalance
	}
	a.Balance -= amount
	a.UpdatedAt = time.Now().UTC()
	return nil
}
