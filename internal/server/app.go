// Package server wires configuration, storage, mail delivery and the
// services together and runs the HTTP API until a shutdown signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/securepass/internal/cryptox"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/config"
	"github.com/dmitrijs2005/securepass/internal/server/httpapi"
	"github.com/dmitrijs2005/securepass/internal/server/mailer"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/codes"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/securepass/internal/server/services"
	"github.com/go-redis/redis/v8"
)

const memoryDSN = "memory"

type App struct {
	config  *config.Config
	logger  logging.Logger
	closers []func() error
	http    *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.LogBackend, cfg.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}
	app := &App{config: cfg, logger: logger}

	m, err := app.initStorage(context.Background())
	if err != nil {
		app.close()
		return nil, err
	}

	hasher, err := cryptox.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("hasher init error: %w", err)
	}
	vc, err := cryptox.NewVaultConfig(cfg.EncryptionKey)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	vault, err := cryptox.NewVault(vc)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("vault init error: %w", err)
	}

	sender := app.initSender()

	ledger := services.NewCodeLedger(m, services.RandomCode, logger)
	gate := services.NewMasterKeyGate(m, hasher, cfg.MasterMaxAttempts, logger)
	sessions := services.NewSessionService(m, cfg)

	app.http = httpapi.NewServer(cfg.HTTPAddr, cfg.CORSOrigins, logger, httpapi.Services{
		Identity:    services.NewIdentityService(m, ledger, sessions, hasher, sender, cfg.ResetWindow, logger),
		Accounts:    services.NewAccountService(m, gate, ledger, hasher, sender, logger),
		Sessions:    sessions,
		Gate:        gate,
		Credentials: services.NewCredentialService(m, vault, logger),
		Transfer:    services.NewTransferService(m, gate, vault, logger),
	})
	return app, nil
}

func (app *App) initStorage(ctx context.Context) (repomanager.RepositoryManager, error) {
	var opts []repomanager.Option
	if app.config.OTPBackend == "redis" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{app.config.RedisAddr},
			Password: app.config.RedisPassword,
			DB:       app.config.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		opts = append(opts, repomanager.WithCodeRepository(codes.NewRedisRepository(client, codes.RetentionFor(app.config.ResetWindow))))
		app.logger.Info(ctx, "one-time codes stored in redis", "address", app.config.RedisAddr)
	}

	if app.config.DatabaseDSN == memoryDSN {
		app.logger.Warn(ctx, "using in-memory storage, data is lost on exit")
		return repomanager.NewMemoryRepositoryManager(opts...), nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db.Close)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m, err := repomanager.NewPostgresRepositoryManager(db, opts...)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := m.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return m, nil
}

func (app *App) initSender() mailer.Sender {
	if app.config.SMTPAddr == "" {
		return mailer.NewLogSender(app.logger)
	}
	return mailer.NewSMTPSender(app.config.SMTPAddr, app.config.MailFrom, app.config.SMTPUser, app.config.SMTPPassword)
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or the server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	wg.Wait()

	app.close()
	app.logger.Info(ctx, "App stopped")
}
