package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/go-petr/pet-ledger/cmd/httpserver"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, with the verification worker unless WORKER_EMBEDDED=false",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(a.context(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	var cache redis.Cmdable

	if a.config.RedisAddress != "" {
		client := redis.NewClient(&redis.Options{Addr: a.config.RedisAddress})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			a.logger.Warn().Err(err).Msg("redis is unreachable, idempotency keys are not enforced until it is back")
		}

		cache = client
	}

	server, err := httpserver.New(db, cache, a.logger, a.config)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup

	if a.config.WorkerEmbedded {
		dispatcher, stopDispatcher, err := a.startDispatcher()
		if err != nil {
			return err
		}
		defer stopDispatcher()

		verifier, err := a.newVerifier(db, dispatcher)
		if err != nil {
			return err
		}

		pool := a.newPool(db, verifier)

		wg.Add(1)

		go func() {
			defer wg.Done()
			pool.Run(ctx)
		}()
	}

	// Deferred calls run in reverse: the pool stops before the dispatcher drains.
	defer wg.Wait()

	httpServer := &http.Server{
		Addr:              a.config.ServerAddress,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("address", a.config.ServerAddress).Msg("LEDGER API SERVER HAS STARTED")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		stop()

		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}
