package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fastprodman/custbalance/internal/money"
	"github.com/fastprodman/custbalance/internal/repos/accounts"
	"github.com/fastprodman/custbalance/internal/repos/ledger"
	"github.com/fastprodman/custbalance/internal/services/balance"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 255
	maxBodyBytes         = 1 << 20
)

// BalanceService is the part of balance.Service the handlers call.
type BalanceService interface {
	Open(ctx context.Context) (balance.Result, error)
	Get(ctx context.Context, accountID uint64) (balance.Result, error)
	Ledger(ctx context.Context, accountID uint64) ([]ledger.Entry, error)
	Deposit(ctx context.Context, req balance.Request) (balance.Result, error)
	Withdraw(ctx context.Context, req balance.Request) (balance.Result, error)
}

// Pinger reports storage health. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HandlerProvider wraps a BalanceService and exposes HTTP handlers.
type HandlerProvider struct {
	svc     BalanceService
	pinger  Pinger
	logger  *slog.Logger
	retries uint64
}

type HandlerOption func(*HandlerProvider)

// WithPinger makes /healthz check storage as well.
func WithPinger(p Pinger) HandlerOption {
	return func(h *HandlerProvider) { h.pinger = p }
}

func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *HandlerProvider) { h.logger = l }
}

// WithConflictRetries sets how many times a mutation that lost an
// optimistic-concurrency race is resubmitted.
func WithConflictRetries(n uint64) HandlerOption {
	return func(h *HandlerProvider) { h.retries = n }
}

// NewHandler returns a new Handler provider.
func NewHandler(svc BalanceService, opts ...HandlerOption) *HandlerProvider {
	h := &HandlerProvider{svc: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// --- Helpers ---

func (h *HandlerProvider) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *HandlerProvider) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to status codes. Anything unknown is
// logged and reported as 500.
func (h *HandlerProvider) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, money.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, "invalid amount")
	case errors.Is(err, money.ErrInvalidCents):
		h.writeError(w, http.StatusBadRequest, "invalid amountMinorUnits")
	case errors.Is(err, balance.ErrNonPositiveAmount):
		h.writeError(w, http.StatusBadRequest, "amount must be positive")
	case errors.Is(err, accounts.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, balance.ErrInsufficientFunds):
		h.writeError(w, http.StatusUnprocessableEntity, "insufficient funds")
	case errors.Is(err, balance.ErrConcurrentModification):
		h.writeError(w, http.StatusConflict, "account was modified concurrently, retry")
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusServiceUnavailable, "operation timed out")
	default:
		h.logger.Error("request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseAccountIDFromPath reads `{accountId}` from chi routes like:
//
//	GET  /accounts/{accountId}
//	POST /accounts/{accountId}/deposit
func parseAccountIDFromPath(r *http.Request) (uint64, error) {
	idStr := chi.URLParam(r, "accountId")
	if idStr == "" {
		return 0, fmt.Errorf("missing accountId")
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid accountId: %w", err)
	}
	if id == 0 {
		return 0, fmt.Errorf("invalid accountId: must be positive")
	}

	return id, nil
}

func parseIdempotencyKey(hdr http.Header) (string, error) {
	key := strings.TrimSpace(hdr.Get(idempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLen {
		return "", fmt.Errorf("%s must be at most %d characters", idempotencyKeyHeader, maxIdempotencyKeyLen)
	}

	return key, nil
}

type mutationRequest struct {
	Amount           money.Amount `json:"amount"`
	AmountMinorUnits *float64     `json:"amountMinorUnits"`
}

// amount picks the one amount form the caller sent.
func (m mutationRequest) amount() (money.Amount, error) {
	if m.AmountMinorUnits == nil {
		return m.Amount, nil
	}
	if !m.Amount.IsZero() {
		return money.Amount{}, fmt.Errorf("send either amount or amountMinorUnits, not both")
	}

	cents, err := money.ExactCents(*m.AmountMinorUnits)
	if err != nil {
		return money.Amount{}, err
	}

	return money.MinorUnits(cents), nil
}

type accountView struct {
	ID                uint64 `json:"id"`
	Balance           string `json:"balance"`
	BalanceMinorUnits int64  `json:"balanceMinorUnits"`
	Version           int64  `json:"version"`
}

func viewOf(res balance.Result) accountView {
	return accountView{
		ID:                res.ID,
		Balance:           money.Format(res.BalanceMinorUnits),
		BalanceMinorUnits: res.BalanceMinorUnits,
		Version:           res.Version,
	}
}

type entryView struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Delta           string    `json:"delta"`
	DeltaMinorUnits int64     `json:"deltaMinorUnits"`
	BalanceBefore   int64     `json:"balanceBeforeMinorUnits"`
	BalanceAfter    int64     `json:"balanceAfterMinorUnits"`
	IdempotencyKey  string    `json:"idempotencyKey,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// --- Handlers ---

// HealthHandler handles GET /healthz
func (h *HandlerProvider) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		err := h.pinger.PingContext(ctx)
		if err != nil {
			h.logger.Warn("health check: storage unreachable", "error", err)
			h.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// OpenAccountHandler handles POST /accounts
func (h *HandlerProvider) OpenAccountHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Open(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/accounts/%d", res.ID))
	h.writeJSON(w, http.StatusCreated, viewOf(res))
}

// GetAccountHandler handles GET /accounts/{accountId}
func (h *HandlerProvider) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	res, err := h.svc.Get(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, viewOf(res))
}

// LedgerHandler handles GET /accounts/{accountId}/ledger
func (h *HandlerProvider) LedgerHandler(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	entries, err := h.svc.Ledger(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{
			ID:              e.ID.String(),
			Type:            string(e.Type),
			Delta:           money.Format(e.DeltaMinorUnits),
			DeltaMinorUnits: e.DeltaMinorUnits,
			BalanceBefore:   e.BalanceBefore,
			BalanceAfter:    e.BalanceAfter,
			IdempotencyKey:  e.IdempotencyKey,
			CreatedAt:       e.CreatedAt,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"accountId": accountID,
		"entries":   views,
	})
}

// DepositHandler handles POST /accounts/{accountId}/deposit
func (h *HandlerProvider) DepositHandler(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Deposit)
}

// WithdrawHandler handles POST /accounts/{accountId}/withdraw
func (h *HandlerProvider) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Withdraw)
}

type mutation func(ctx context.Context, req balance.Request) (balance.Result, error)

func (h *HandlerProvider) mutate(w http.ResponseWriter, r *http.Request, op mutation) {
	accountID, err := parseAccountIDFromPath(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid accountId in path")
		return
	}

	key, err := parseIdempotencyKey(r.Header)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Limit body size; disallow unknown fields
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	var body mutationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err = dec.Decode(&body)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			h.writeError(w, http.StatusBadRequest, "empty body")
		case errors.Is(err, money.ErrInvalidAmount):
			h.writeError(w, http.StatusBadRequest, "invalid amount")
		default:
			h.writeError(w, http.StatusBadRequest, "invalid JSON")
		}
		return
	}

	amount, err := body.amount()
	if err != nil {
		if errors.Is(err, money.ErrInvalidCents) {
			h.writeServiceError(w, r, err)
			return
		}

		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := balance.Request{
		AccountID:      accountID,
		Amount:         amount,
		IdempotencyKey: key,
	}

	res, err := h.withConflictRetry(r, func() (balance.Result, error) {
		return op(r.Context(), req)
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if res.Replayed {
		w.Header().Set(replayedHeader, "true")
	}

	h.writeJSON(w, http.StatusOK, viewOf(res))
}
