package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/fastprodman/custbalance/internal/events"
	"github.com/fastprodman/custbalance/internal/money"
	"github.com/fastprodman/custbalance/internal/repos/accounts"
	"github.com/fastprodman/custbalance/internal/repos/ledger"
	"github.com/fastprodman/custbalance/internal/repos/uow"
)

func (s *Service) Deposit(ctx context.Context, req Request) (Result, error) {
	return s.apply(ctx, ledger.EntryDeposit, req)
}

func (s *Service) Withdraw(ctx context.Context, req Request) (Result, error) {
	return s.apply(ctx, ledger.EntryWithdraw, req)
}

type outcome struct {
	acc      accounts.Account
	entry    ledger.Entry
	replayed bool
}

// apply runs one mutation in a single unit of work:
//
// 1) Replay if the idempotency key is already in the ledger.
// 2) Read the account and compute the new balance.
// 3) Swap the balance if the version is still the one read in 2.
// 4) Append the ledger entry.
//
// A lost swap is not retried here; the caller decides.
func (s *Service) apply(ctx context.Context, op ledger.EntryType, req Request) (Result, error) {
	cents, err := req.Amount.Cents()
	if err != nil {
		return Result{}, fmt.Errorf("%s: parse amount: %w", op, err)
	}
	if cents <= 0 {
		return Result{}, fmt.Errorf("%s: %w", op, ErrNonPositiveAmount)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var out outcome

	err = s.uow.Run(ctx, func(ctx context.Context, repos uow.Repos) error {
		var err error
		out, err = mutate(ctx, repos, op, req.AccountID, cents, req.IdempotencyKey)

		return err
	})

	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		// A concurrent request with the same key committed first.
		res, gerr := s.Get(ctx, req.AccountID)
		if gerr != nil {
			return Result{}, fmt.Errorf("%s: replay: %w", op, gerr)
		}

		s.logger.Debug("idempotent replay after key conflict",
			"op", op, "account_id", req.AccountID, "idempotency_key", req.IdempotencyKey)

		res.Replayed = true

		return res, nil
	case errors.Is(err, uow.ErrConflict):
		return Result{}, fmt.Errorf("%s account %d: %w: %w", op, req.AccountID, ErrConcurrentModification, err)
	default:
		return Result{}, fmt.Errorf("%s account %d: %w", op, req.AccountID, err)
	}

	if out.replayed {
		s.logger.Debug("idempotent replay",
			"op", op, "account_id", req.AccountID, "idempotency_key", req.IdempotencyKey)

		return resultOf(out.acc, true), nil
	}

	s.logger.Info("balance changed",
		"op", op,
		"account_id", out.acc.ID,
		"delta_minor_units", out.entry.DeltaMinorUnits,
		"balance_minor_units", out.acc.BalanceMinorUnits,
		"version", out.acc.Version,
	)

	s.publish(ctx, out)

	return resultOf(out.acc, false), nil
}

func mutate(
	ctx context.Context,
	repos uow.Repos,
	op ledger.EntryType,
	accountID uint64,
	cents int64,
	key string,
) (outcome, error) {
	replay, found, err := replayed(ctx, repos, accountID, key)
	if err != nil || found {
		return replay, err
	}

	acc, err := repos.Accounts.Get(ctx, accountID)
	if err != nil {
		return outcome{}, fmt.Errorf("get account: %w", err)
	}

	delta := cents
	if op == ledger.EntryWithdraw {
		delta = -cents
	}

	next := acc.BalanceMinorUnits + delta

	switch op {
	case ledger.EntryWithdraw:
		if next < 0 {
			return outcome{}, ErrInsufficientFunds
		}
	case ledger.EntryDeposit:
		if next < acc.BalanceMinorUnits {
			return outcome{}, fmt.Errorf("balance overflow: %w", money.ErrInvalidAmount)
		}
	default:
		return outcome{}, fmt.Errorf("invalid operation: %s", op)
	}

	updated, ok, err := repos.Accounts.CompareAndSwap(ctx, acc.ID, acc.Version, next)
	if err != nil {
		return outcome{}, fmt.Errorf("compare and swap: %w", err)
	}
	if !ok {
		// The winner may have been a request carrying the same key.
		replay, found, err := replayed(ctx, repos, accountID, key)
		if err != nil || found {
			return replay, err
		}

		return outcome{}, ErrConcurrentModification
	}

	entry, err := repos.Ledger.Append(ctx, ledger.NewEntry{
		AccountID:       acc.ID,
		DeltaMinorUnits: delta,
		Type:            op,
		IdempotencyKey:  key,
		BalanceBefore:   acc.BalanceMinorUnits,
		BalanceAfter:    updated.BalanceMinorUnits,
	})
	if err != nil {
		return outcome{}, fmt.Errorf("append entry: %w", err)
	}

	return outcome{acc: updated, entry: entry}, nil
}

// replayed reports whether key was already recorded and, if so, returns the
// account's current state.
func replayed(ctx context.Context, repos uow.Repos, accountID uint64, key string) (outcome, bool, error) {
	if key == "" {
		return outcome{}, false, nil
	}

	_, found, err := repos.Ledger.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return outcome{}, false, fmt.Errorf("find idempotency key: %w", err)
	}
	if !found {
		return outcome{}, false, nil
	}

	acc, err := repos.Accounts.Get(ctx, accountID)
	if err != nil {
		return outcome{}, false, fmt.Errorf("get account: %w", err)
	}

	return outcome{acc: acc, replayed: true}, true, nil
}

func (s *Service) publish(ctx context.Context, out outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.Publish(ctx, events.BalanceChanged{
		AccountID:         out.acc.ID,
		EntryID:           out.entry.ID.String(),
		Type:              out.entry.Type,
		DeltaMinorUnits:   out.entry.DeltaMinorUnits,
		BalanceMinorUnits: out.acc.BalanceMinorUnits,
		Balance:           money.Format(out.acc.BalanceMinorUnits),
		Version:           out.acc.Version,
		IdempotencyKey:    out.entry.IdempotencyKey,
		OccurredAt:        s.now(),
	})
	if err != nil {
		s.logger.Warn("publish balance changed event",
			"account_id", out.acc.ID, "entry_id", out.entry.ID, "error", err)
	}
}
