// Package events describes the notifications emitted after a balance
// mutation commits.
package events

import (
	"context"
	"time"

	"github.com/fastprodman/custbalance/internal/repos/ledger"
)

// BalanceChanged is emitted once per committed deposit or withdrawal.
// Replayed requests emit nothing.
type BalanceChanged struct {
	AccountID         uint64           `json:"account_id"`
	EntryID           string           `json:"entry_id"`
	Type              ledger.EntryType `json:"type"`
	DeltaMinorUnits   int64            `json:"delta_minor_units"`
	BalanceMinorUnits int64            `json:"balance_minor_units"`
	Balance           string           `json:"balance"`
	Version           int64            `json:"version"`
	IdempotencyKey    string           `json:"idempotency_key,omitempty"`
	OccurredAt        time.Time        `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev BalanceChanged) error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, BalanceChanged) error { return nil }
