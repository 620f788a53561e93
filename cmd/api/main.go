package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/custbalance/internal/api"
	"github.com/fastprodman/custbalance/internal/events"
	"github.com/fastprodman/custbalance/internal/events/kafka"
	"github.com/fastprodman/custbalance/internal/infra/logging"
	"github.com/fastprodman/custbalance/internal/infra/pgutils"
	"github.com/fastprodman/custbalance/internal/repos/memory"
	"github.com/fastprodman/custbalance/internal/repos/uow"
	pguow "github.com/fastprodman/custbalance/internal/repos/uow/postgres"
	"github.com/fastprodman/custbalance/internal/services/balance"
	"github.com/fastprodman/custbalance/pkg/envconf"
	"github.com/fastprodman/custbalance/pkg/shutdownqueue"
	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	// A missing .env is fine; real environment variables win.
	_ = godotenv.Load()

	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	err = cfg.validate()
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := logging.SetupJSON(cfg.LogLevel, "balance-api")

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	unitOfWork, pinger, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}

	publisher := newPublisher(cfg)

	balanceSrv := balance.New(unitOfWork,
		balance.WithLogger(logger),
		balance.WithPublisher(publisher),
		balance.WithTimeout(cfg.Balance.OperationTimeout),
	)

	// --- HTTP server ---
	handlerOpts := []api.HandlerOption{
		api.WithLogger(logger),
		api.WithConflictRetries(cfg.Balance.ConflictRetries),
	}
	if pinger != nil {
		handlerOpts = append(handlerOpts, api.WithPinger(pinger))
	}

	srv := api.NewServer(cfg.Port, api.NewHandler(balanceSrv, handlerOpts...))

	shutdownqueue.Add("http server", func(c context.Context) error {
		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	logger.Info("API started", "port", cfg.Port, "storage", cfg.StorageDriver)

	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

func openStorage(ctx context.Context, cfg *apiConfig) (uow.UnitOfWork, api.Pinger, error) {
	if cfg.StorageDriver == storageMemory {
		slog.Warn("using in-memory storage; data is lost on exit")

		return memory.New(), nil, nil
	}

	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add("postgres", func(context.Context) error {
		return db.Close()
	})

	return pguow.New(db), db, nil
}

func newPublisher(cfg *apiConfig) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		slog.Info("no KAFKA_BROKERS configured, balance events are not published")

		return events.Noop{}
	}

	p := kafka.NewPublisher(cfg.Kafka)

	shutdownqueue.Add("kafka writer", func(context.Context) error {
		return p.Close()
	})

	return p
}
