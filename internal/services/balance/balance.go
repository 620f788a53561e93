package balance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/custbalance/internal/events"
	"github.com/fastprodman/custbalance/internal/repos/accounts"
	"github.com/fastprodman/custbalance/internal/repos/ledger"
	"github.com/fastprodman/custbalance/internal/repos/uow"
)

const publishTimeout = 2 * time.Second

type Service struct {
	uow       uow.UnitOfWork
	logger    *slog.Logger
	publisher events.Publisher
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithTimeout bounds every deposit and withdrawal, commit included.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func New(u uow.UnitOfWork, opts ...Option) *Service {
	s := &Service{
		uow:       u,
		logger:    slog.Default(),
		publisher: events.Noop{},
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Open creates an account with a zero balance.
func (s *Service) Open(ctx context.Context) (Result, error) {
	var acc accounts.Account

	err := s.uow.Run(ctx, func(ctx context.Context, repos uow.Repos) error {
		var err error
		acc, err = repos.Accounts.Create(ctx)

		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("open account: %w", err)
	}

	s.logger.Info("account opened", "account_id", acc.ID)

	return resultOf(acc, false), nil
}

func (s *Service) Get(ctx context.Context, accountID uint64) (Result, error) {
	var acc accounts.Account

	err := s.uow.Run(ctx, func(ctx context.Context, repos uow.Repos) error {
		var err error
		acc, err = repos.Accounts.Get(ctx, accountID)

		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("get account %d: %w", accountID, err)
	}

	return resultOf(acc, false), nil
}

// Ledger returns the account's entries oldest first.
func (s *Service) Ledger(ctx context.Context, accountID uint64) ([]ledger.Entry, error) {
	var entries []ledger.Entry

	err := s.uow.Run(ctx, func(ctx context.Context, repos uow.Repos) error {
		_, err := repos.Accounts.Get(ctx, accountID)
		if err != nil {
			return err
		}

		entries, err = repos.Ledger.ListByAccount(ctx, accountID)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list ledger of account %d: %w", accountID, err)
	}

	return entries, nil
}

func resultOf(acc accounts.Account, replayed bool) Result {
	return Result{
		ID:                acc.ID,
		BalanceMinorUnits: acc.BalanceMinorUnits,
		Version:           acc.Version,
		Replayed:          replayed,
	}
}
