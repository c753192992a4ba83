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

	"github.com/fastprodman/tablestakes/internal/api"
	"github.com/fastprodman/tablestakes/internal/game"
	"github.com/fastprodman/tablestakes/internal/infra/logging"
	"github.com/fastprodman/tablestakes/internal/services/eventlog"
	"github.com/fastprodman/tablestakes/internal/services/feed"
	"github.com/fastprodman/tablestakes/internal/services/ledger"
	"github.com/fastprodman/tablestakes/internal/services/sessions"
	"github.com/fastprodman/tablestakes/internal/storage"
	"github.com/fastprodman/tablestakes/pkg/envconf"
	"github.com/fastprodman/tablestakes/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	backend, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	shutdownqueue.Add("storage", func(context.Context) error {
		return backend.Close()
	})

	// --- Services ---
	ledgerSrv := ledger.New(backend.DB, backend.Wallets)
	eventLog := eventlog.New(backend.Events)
	games := game.NewRegistry(game.Config{MaxCrapsPlayers: cfg.Session.MaxCrapsPlayers})

	sessionSrv := sessions.New(backend.DB, backend.Sessions, eventLog, ledgerSrv, games, sessions.Config{
		GraceTTL: cfg.Session.GraceTTL,
	})

	feedSrv := feed.New(sessionSrv, eventLog, feed.Config{
		PollInterval: cfg.Feed.PollInterval,
		IdleBudget:   cfg.Feed.IdleBudget,
	})

	if cfg.AdminToken == "" {
		slog.Warn("ADMIN_TOKEN is empty, wallet deltas are disabled")
	}

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, api.NewHandler(sessionSrv, feedSrv, ledgerSrv, cfg.AdminToken))

	shutdownqueue.Add("http server", func(c context.Context) error {
		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
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

	slog.Info("API started", "port", cfg.Port, "storage", cfg.Storage.Driver)

	// --- Wait until either context cancels or server errors out ---
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
