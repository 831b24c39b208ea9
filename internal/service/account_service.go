package service

import (
	"context"
	"errors"
	"strings"

	"mybank/internal/core/domain"
	"mybank/internal/core/ports"
	"mybank/pkg/apperror"
	"mybank/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// accountService implements ports.AccountService.
type accountService struct {
	accountRepo ports.AccountRepository
	log         zerolog.Logger
}

// NewAccountService creates a new account service.
func NewAccountService(accountRepo ports.AccountRepository, log zerolog.Logger) ports.AccountService {
	return &accountService{
		accountRepo: accountRepo,
		log:         logger.Component(log, "account-service"),
	}
}

// CreateAccount opens an account under a random id.
func (s *accountService) CreateAccount(ctx context.Context, initialBalance float64) (*domain.Account, error) {
	return s.CreateAccountWithID(ctx, uuid.NewString(), initialBalance)
}

// CreateAccountWithID opens an account under a caller-chosen id.
func (s *accountService) CreateAccountWithID(ctx context.Context, id string, initialBalance float64) (*domain.Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ErrInvalidRequest("account id is required")
	}

	account, err := domain.NewAccount(id, initialBalance)
	if err != nil {
		return nil, apperror.ErrInvalidAmount()
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrAccountExists) {
			return nil, apperror.ErrAccountExists(id)
		}
		return nil, apperror.InternalError(err)
	}

	s.log.Info().Str("account_id", id).Float64("balance", initialBalance).Msg("account created")
	return account, nil
}

// GetAccount returns the account or AccountNotFound.
func (s *accountService) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound(id)
	}
	return account, nil
}

// ListAccounts returns every account ordered by id.
func (s *accountService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.accountRepo.FindAll(ctx)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return accounts, nil
}

// TotalBalance sums all balances. Successful transfers never change it.
func (s *accountService) TotalBalance(ctx context.Context) (float64, error) {
	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		return 0, err
	}

	var total float64
	for _, a := range accounts {
		total += a.Balance
	}
	return total, nil
}
