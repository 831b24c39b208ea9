package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"mybank/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic
// locking. Lookups return (nil, nil) when the account does not exist.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Account, error)
	Save(ctx context.Context, account *domain.Account) error
	SaveAll(ctx context.Context, tx pgx.Tx, accounts []*domain.Account) error
	FindAll(ctx context.Context) ([]domain.Account, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TransferStatusStore keeps the latest state of desk-submitted transfers.
type TransferStatusStore interface {
	Put(ctx context.Context, record *domain.TransferRecord, ttl time.Duration) error
	Get(ctx context.Context, id string) (*domain.TransferRecord, error) // nil when unknown or expired
}

// ErrIdempotencyInProgress is returned by IdempotencyCache.Get while another
// request holds the key's reservation.
var ErrIdempotencyInProgress = errors.New("idempotency key is in progress")

// IdempotencyCache is the Redis-layer idempotency check for sync transfers.
// A key is reserved before the transfer runs and replaced by the response
// once it succeeds.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Release(ctx context.Context, key string) error // Drops a reservation; stored responses are kept
}
