package api

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewServer creates and returns a configured *http.Server for the balance API.
// Requests are traced with the global OpenTelemetry provider.
func NewServer(port uint16, h *HandlerProvider) *http.Server {
	handler := otelhttp.NewHandler(NewRouter(h), "balance-api")

	addr := fmt.Sprintf(":%d", port)

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
