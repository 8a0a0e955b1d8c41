package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/jobrepo"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/internal/notification"
	"github.com/go-petr/pet-ledger/internal/verification"
	"github.com/go-petr/pet-ledger/internal/verificationrepo"
	"github.com/go-petr/pet-ledger/internal/worker"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"

	// postgres driver
	_ "github.com/lib/pq"
)

// app carries what every command needs once the config is loaded.
type app struct {
	configPath string
	config     configpkg.Config
	logger     zerolog.Logger
}

func (a *app) load() error {
	config, err := configpkg.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	a.config = config
	a.logger = middleware.CreateLogger(config)

	return nil
}

func (a *app) openDB() (*sql.DB, error) {
	db, err := dbpkg.Setup(a.config.DBDriver, a.config.DBSource)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to database: %w", err)
	}

	return db, nil
}

func (a *app) context(ctx context.Context) context.Context {
	return a.logger.WithContext(ctx)
}

// startDispatcher starts the notification dispatcher. Messages go to the broker
// when AMQP_URL is set and to the log otherwise.
//
// The returned stop function drains pending notifications and closes the broker connection.
func (a *app) startDispatcher() (*notification.Dispatcher, func(), error) {
	var (
		sender    notification.Sender = notification.LogSender{}
		closeConn                     = func() error { return nil }
	)

	if a.config.AMQPURL != "" {
		amqpSender, closeFn, err := notification.DialAMQP(a.config.AMQPURL, a.config.NotificationExchange, a.logger)
		if err != nil {
			return nil, nil, err
		}

		sender, closeConn = amqpSender, closeFn
	}

	renderer := notification.Renderer{
		From:       a.config.NotificationSender,
		DailyLimit: a.config.DailyLimit,
	}

	dispatcher := notification.NewDispatcher(sender, renderer, a.config.NotificationBuffer, a.logger)

	go dispatcher.Run()

	stop := func() {
		dispatcher.Close()

		if err := closeConn(); err != nil {
			a.logger.Error().Err(err).Msg("close notification broker")
		}
	}

	return dispatcher, stop, nil
}

func (a *app) newVerifier(db *sql.DB, notifier verification.Notifier) (*verification.Service, error) {
	policy, err := verification.NewPolicy(a.config)
	if err != nil {
		return nil, err
	}

	return verification.New(verificationrepo.NewRepoPGS(db), notifier, policy), nil
}

func (a *app) newPool(db *sql.DB, verifier worker.Verifier) *worker.Pool {
	return worker.New(jobrepo.NewRepoPGS(db), verifier, worker.NewConfig(a.config))
}
