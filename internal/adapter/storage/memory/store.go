// Package memory is an in-process account store with row locking semantics
// close to the PostgreSQL adapter: GetByIDForUpdate locks the row until the
// transaction ends, and writes become visible only on Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"mybank/internal/core/domain"
	"mybank/pkg/keylock"
	"mybank/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Store implements ports.AccountRepository, ports.DBTransactor and
// ports.HealthChecker.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	rows     *keylock.Manager[string]
	log      zerolog.Logger
}

// NewStore creates an empty Store.
func NewStore(log zerolog.Logger) *Store {
	log = logger.Component(log, "memory-store")
	return &Store{
		accounts: make(map[string]domain.Account),
		rows:     keylock.NewManager[string](log),
		log:      log,
	}
}

// Create inserts a new account.
func (s *Store) Create(_ context.Context, account *domain.Account) error {
	if account.Balance < 0 {
		return domain.ErrNegativeBalance
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; ok {
		return fmt.Errorf("create account %s: %w", account.ID, domain.ErrAccountExists)
	}
	s.accounts[account.ID] = *account
	return nil
}

// GetByID returns the last committed state of the account, or nil.
func (s *Store) GetByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// GetByIDForUpdate locks the row for the rest of tx and returns the account as
// seen by tx, or nil.
func (s *Store) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id string) (*domain.Account, error) {
	mt, err := s.txOf(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lockRow(ctx, id); err != nil {
		return nil, err
	}

	if a, ok := mt.staged[id]; ok {
		return &a, nil
	}
	return s.GetByID(ctx, id)
}

// Save upserts the account outside any transaction.
func (s *Store) Save(_ context.Context, account *domain.Account) error {
	if account.Balance < 0 {
		return domain.ErrNegativeBalance
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = *account
	return nil
}

// SaveAll stages the accounts in tx. Nothing is visible until Commit.
func (s *Store) SaveAll(_ context.Context, tx pgx.Tx, accounts []*domain.Account) error {
	mt, err := s.txOf(tx)
	if err != nil {
		return err
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.closed {
		return pgx.ErrTxClosed
	}
	for _, a := range accounts {
		if a.Balance < 0 {
			return fmt.Errorf("save account %s: %w", a.ID, domain.ErrNegativeBalance)
		}
	}
	for _, a := range accounts {
		mt.staged[a.ID] = *a
	}
	return nil
}

// FindAll returns every committed account ordered by id.
func (s *Store) FindAll(_ context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Account, 0, len(s.accounts))
	for _, id := range slices.Sorted(maps.Keys(s.accounts)) {
		out = append(out, s.accounts[id])
	}
	return out, nil
}

// Begin starts a transaction.
func (s *Store) Begin(_ context.Context) (pgx.Tx, error) {
	return &memTx{
		store:  s,
		held:   make(map[string]*keylock.Release[string]),
		staged: make(map[string]domain.Account),
	}, nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Name returns "memory".
func (s *Store) Name() string { return "memory" }

func (s *Store) txOf(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return nil, errors.New("memory store: transaction was not started by this store")
	}
	return mt, nil
}

// memTx satisfies pgx.Tx for the methods the repositories use. The embedded
// interface is nil; calling anything else panics.
type memTx struct {
	pgx.Tx

	store *Store

	mu     sync.Mutex
	held   map[string]*keylock.Release[string]
	staged map[string]domain.Account
	closed bool
}

func (t *memTx) lockRow(ctx context.Context, id string) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	_, ok := t.held[id]
	t.mu.Unlock()
	if ok {
		return nil
	}

	release, err := t.store.rows.Acquire(ctx, id)
	if err != nil {
		return fmt.Errorf("lock row %s: %w", id, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		release.Release()
		return pgx.ErrTxClosed
	}
	t.held[id] = release
	return nil
}

// Commit applies staged writes atomically and releases row locks.
func (t *memTx) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true

	t.store.mu.Lock()
	for id, a := range t.staged {
		t.store.accounts[id] = a
	}
	t.store.mu.Unlock()

	t.releaseRows()
	return nil
}

// Rollback discards staged writes and releases row locks.
func (t *memTx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.staged = nil
	t.releaseRows()
	return nil
}

func (t *memTx) releaseRows() {
	for id, r := range t.held {
		r.Release()
		delete(t.held, id)
	}
}
