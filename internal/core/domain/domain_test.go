package domain

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccount(t *testing.T) {
	tests := []struct {
		name    string
		balance float64
		wantErr error
	}{
		{"zero balance", 0, nil},
		{"positive balance", 100, nil},
		{"negative balance", -1, ErrNegativeBalance},
		{"NaN balance", math.NaN(), ErrNegativeBalance},
		{"infinite balance", math.Inf(1), ErrNegativeBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, err := NewAccount("acc-1", tt.balance)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, acc)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "acc-1", acc.ID)
			assert.Equal(t, tt.balance, acc.Balance)
			assert.False(t, acc.CreatedAt.IsZero())
		})
	}
}

func TestAccount_Deposit(t *testing.T) {
	tests := []struct {
		name    string
		amount  float64
		want    float64
		wantErr error
	}{
		{"positive", 25, 125, nil},
		{"fractional", 0.5, 100.5, nil},
		{"zero", 0, 100, ErrNonPositiveAmount},
		{"negative", -5, 100, ErrNonPositiveAmount},
		{"NaN", math.NaN(), 100, ErrNonPositiveAmount},
		{"infinite", math.Inf(1), 100, ErrNonPositiveAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &Account{ID: "a", Balance: 100}
			err := acc.Deposit(tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, acc.Balance)
		})
	}
}

func TestAccount_DepositOverflow(t *testing.T) {
	acc := &Account{ID: "a", Balance: math.MaxFloat64}

	err := acc.Deposit(math.MaxFloat64)
	assert.ErrorIs(t, err, ErrBalanceOverflow)
	assert.Equal(t, math.MaxFloat64, acc.Balance)
	assert.False(t, math.IsInf(acc.Balance, 0))

	// small deposits round away without overflowing
	assert.NoError(t, acc.Deposit(1))
	assert.Equal(t, math.MaxFloat64, acc.Balance)
}

func TestAccount_Withdraw(t *testing.T) {
	tests := []struct {
		name    string
		amount  float64
		want    float64
		wantErr error
	}{
		{"partial", 30, 70, nil},
		{"entire balance", 100, 0, nil},
		{"exceeds balance", 150, 100, ErrInsufficientBalance},
		{"zero", 0, 100, ErrNonPositiveAmount},
		{"negative", -1, 100, ErrNonPositiveAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &Account{ID: "a", Balance: 100}
			err := acc.Withdraw(tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, acc.Balance)
		})
	}
}

func TestTransferHandle_CompletesOnce(t *testing.T) {
	h := NewTransferHandle("t-1", TransferRequest{FromAccountID: "a", ToAccountID: "b", Amount: 1})
	assert.NoError(t, h.Err(), "pending handle reports no error")

	first := errors.New("first")
	h.Complete(first)
	h.Complete(errors.New("second"))

	select {
	case <-h.Done():
	default:
		t.Fatal("handle should be done")
	}
	assert.Equal(t, first, h.Err())
	assert.Equal(t, first, h.Wait(context.Background()))
}

func TestTransferHandle_WaitHonorsContext(t *testing.T) {
	h := NewTransferHandle("t-1", TransferRequest{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// abandoning the wait leaves the handle completable
	h.Complete(nil)
	assert.NoError(t, h.Wait(context.Background()))
}

func TestTransferRecord_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status TransferStatus
		want   bool
	}{
		{"queued", TransferStatusQueued, false},
		{"completed", TransferStatusCompleted, true},
		{"failed", TransferStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &TransferRecord{Status: tt.status}
			assert.Equal(t, tt.want, r.IsTerminal())
		})
	}
}

func TestNewTransferRecord(t *testing.T) {
	h := NewTransferHandle("t-9", TransferRequest{FromAccountID: "a", ToAccountID: "b", Amount: 2.5})
	r := NewTransferRecord(h)

	assert.Equal(t, "t-9", r.ID)
	assert.Equal(t, "a", r.FromAccountID)
	assert.Equal(t, "b", r.ToAccountID)
	assert.Equal(t, 2.5, r.Amount)
	assert.Equal(t, TransferStatusQueued, r.Status)
	assert.Nil(t, r.CompletedAt)
}
