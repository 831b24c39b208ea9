package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"

	"mybank/internal/core/domain"
)

// AccountService manages account lifecycle and balance queries.
type AccountService interface {
	CreateAccount(ctx context.Context, initialBalance float64) (*domain.Account, error)
	CreateAccountWithID(ctx context.Context, id string, initialBalance float64) (*domain.Account, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	TotalBalance(ctx context.Context) (float64, error)
}

// TransferEngine moves money between two accounts atomically.
type TransferEngine interface {
	Transfer(ctx context.Context, req domain.TransferRequest) error
}

// TransferDesk accepts transfers for execution. The returned handle completes
// with the engine's result; the error covers submission failures only.
type TransferDesk interface {
	Submit(ctx context.Context, req domain.TransferRequest) (*domain.TransferHandle, error)
}

// TransferTracker submits transfers to a desk and records their status so it
// can be polled by id.
type TransferTracker interface {
	Submit(ctx context.Context, req domain.TransferRequest) (*domain.TransferRecord, *domain.TransferHandle, error)
	Status(ctx context.Context, id string) (*domain.TransferRecord, error)
}

// QueueMetrics exposes a desk's queueing statistics.
type QueueMetrics interface {
	Snapshot() domain.QueueReport
	Reset()
}
