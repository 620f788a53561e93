package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fastprodman/custbalance/internal/services/balance"
	"github.com/go-chi/chi/v5/middleware"
)

// withConflictRetry resubmits op while it fails with
// ErrConcurrentModification, up to h.retries extra attempts. Every other
// error is returned at once.
func (h *HandlerProvider) withConflictRetry(r *http.Request, op func() (balance.Result, error)) (balance.Result, error) {
	var res balance.Result

	attempt := func() error {
		var err error

		res, err = op()
		if err != nil && !errors.Is(err, balance.ErrConcurrentModification) {
			return backoff.Permanent(err)
		}

		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, h.retries), r.Context())

	err := backoff.RetryNotify(attempt, policy, func(err error, wait time.Duration) {
		h.logger.Debug("retrying after concurrent modification",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"wait", wait,
		)
	})
	if err != nil {
		return balance.Result{}, err
	}

	return res, nil
}
