package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mybank/internal/core/domain"
	"mybank/internal/core/ports"
	"mybank/pkg/apperror"
	"mybank/pkg/keylock"
	"mybank/pkg/logger"

	"github.com/rs/zerolog"
)

// IsolationPolicy selects how concurrent transfers on shared accounts are
// kept apart.
type IsolationPolicy string

const (
	// IsolationLocal takes in-process key locks on both accounts before the
	// storage transaction starts.
	IsolationLocal IsolationPolicy = "local"
	// IsolationDatabase relies solely on storage row locks.
	IsolationDatabase IsolationPolicy = "database"
)

// ParseIsolationPolicy maps a config value to a policy. Empty means local.
func ParseIsolationPolicy(s string) (IsolationPolicy, error) {
	switch IsolationPolicy(s) {
	case "", IsolationLocal:
		return IsolationLocal, nil
	case IsolationDatabase:
		return IsolationDatabase, nil
	default:
		return "", fmt.Errorf("unknown isolation policy %q", s)
	}
}

// TransferServiceImpl implements ports.TransferEngine.
type TransferServiceImpl struct {
	accountRepo ports.AccountRepository
	transactor  ports.DBTransactor
	locks       *keylock.Manager[string]
	isolation   IsolationPolicy
	log         zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl. locks may be nil only
// with IsolationDatabase.
func NewTransferService(
	accountRepo ports.AccountRepository,
	transactor ports.DBTransactor,
	locks *keylock.Manager[string],
	isolation IsolationPolicy,
	log zerolog.Logger,
) *TransferServiceImpl {
	if isolation == "" {
		isolation = IsolationLocal
	}
	return &TransferServiceImpl{
		accountRepo: accountRepo,
		transactor:  transactor,
		locks:       locks,
		isolation:   isolation,
		log:         logger.Component(log, "transfer-engine"),
	}
}

// Transfer moves req.Amount from one account to the other as a single unit.
//
// Both accounts are read for update in ascending id order inside one storage
// transaction, whichever policy is active, so that row locks follow the same
// global order as the in-process key locks.
func (s *TransferServiceImpl) Transfer(ctx context.Context, req domain.TransferRequest) error {
	if req.FromAccountID == "" || req.ToAccountID == "" {
		return apperror.ErrInvalidRequest("source and destination accounts are required")
	}
	if req.FromAccountID == req.ToAccountID {
		return apperror.ErrInvalidRequest("cannot transfer to the same account")
	}
	if !domain.ValidAmount(req.Amount) {
		return apperror.ErrInvalidAmount()
	}

	start := time.Now()
	log := logger.FromContext(ctx, s.log)

	if s.isolation == IsolationLocal {
		release, err := s.locks.Acquire(ctx, req.FromAccountID, req.ToAccountID)
		if err != nil {
			if errors.Is(err, keylock.ErrNoKeys) {
				return apperror.ErrInvalidRequest("no accounts to lock")
			}
			return apperror.ErrLockAcquisition(err)
		}
		defer release.Release()
	}

	if err := s.transferInTx(ctx, req); err != nil {
		log.Info().
			Err(err).
			Str("from", req.FromAccountID).
			Str("to", req.ToAccountID).
			Float64("amount", req.Amount).
			Msg("transfer rejected")
		return err
	}

	log.Info().
		Str("from", req.FromAccountID).
		Str("to", req.ToAccountID).
		Float64("amount", req.Amount).
		Dur("elapsed", time.Since(start)).
		Msg("transfer completed")

	return nil
}

func (s *TransferServiceImpl) transferInTx(ctx context.Context, req domain.TransferRequest) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	accounts := make(map[string]*domain.Account, 2)
	for _, id := range keylock.Ordered(req.FromAccountID, req.ToAccountID) {
		acc, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock account %s: %w", id, err))
		}
		if acc == nil {
			return apperror.ErrAccountNotFound(id)
		}
		accounts[id] = acc
	}

	from, to := accounts[req.FromAccountID], accounts[req.ToAccountID]

	if err := from.Withdraw(req.Amount); err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			return apperror.ErrInsufficientFunds()
		}
		return apperror.ErrInvalidAmount()
	}
	if err := to.Deposit(req.Amount); err != nil {
		return apperror.ErrInvalidAmount()
	}

	if err := s.accountRepo.SaveAll(ctx, dbTx, []*domain.Account{from, to}); err != nil {
		return apperror.InternalError(fmt.Errorf("save accounts: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	return nil
}
