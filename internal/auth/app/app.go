// Package app assembles the authentication service: configuration, storage,
// services, HTTP server and background workers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	authhttp "github.com/quollsec/authgate/internal/auth/http"
	"github.com/quollsec/authgate/internal/auth/service"
	"github.com/quollsec/authgate/internal/auth/store"
	"github.com/quollsec/authgate/internal/auth/store/drivers/sqlite"
	"github.com/quollsec/authgate/pkg/cryptox"
	"github.com/quollsec/authgate/pkg/jwtx"
	"github.com/quollsec/authgate/pkg/slogx"
)

// BuildVersion is stamped at build time via -ldflags.
var BuildVersion = "dev"

// Application owns the lifecycle of every component.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store        store.Store
	housekeeping *service.HousekeepingService
	server       *http.Server
}

// New builds a ready-to-run application from config.
func New(cfg Config) (*Application, error) {
	logger := slogx.New(slogx.Config{
		Service: "authgate",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	cryptox.SetPepperPath(cfg.PepperFile)

	app := &Application{cfg: cfg, logger: logger}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		app.store.Close()
		return nil, err
	}
	return app, nil
}

func (a *Application) initDatabase() error {
	s, err := sqlite.NewStore(a.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := s.ApplyMigrations(); err != nil {
		s.Close()
		return fmt.Errorf("migrate database: %w", err)
	}
	a.store = s
	return nil
}

func (a *Application) initHTTP() error {
	pemKey, err := loadOrCreateSessionKey(a.cfg.SessionKey)
	if err != nil {
		return err
	}
	signer, err := jwtx.NewSigner(pemKey)
	if err != nil {
		return err
	}

	handler := &authhttp.Handler{
		Users:      service.NewUserService(a.store),
		Login:      service.NewLoginService(a.store, signer, a.cfg.Issuer, a.cfg.SessionTTL, a.cfg.ChallengeTTL),
		Enrollment: service.NewEnrollmentService(a.store, a.cfg.Issuer, a.cfg.RetainSecretOnDisable),
		Store:      a.store,
		Verifier:   signer.Verifier(a.cfg.Issuer, 30*time.Second),
	}

	a.housekeeping = service.NewHousekeepingService(a.store, a.cfg.HousekeepingInterval, a.logger)

	a.server = &http.Server{
		Addr:              net.JoinHostPort("", a.cfg.Port),
		Handler:           slogx.HTTPMiddleware(a.logger)(handler.Router()),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return slogx.WithContext(context.Background(), a.logger)
		},
	}
	return nil
}

// Run starts the background workers and serves HTTP until ctx is cancelled,
// then shuts everything down within the configured grace period.
func (a *Application) Run(ctx context.Context) error {
	a.housekeeping.Start()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.shutdown()
		return err
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.shutdown()
	}
}

func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGracePeriod)
	defer cancel()

	err := a.server.Shutdown(ctx)
	a.housekeeping.Stop()

	if closeErr := a.store.Close(); err == nil {
		err = closeErr
	}

	a.logger.Info("shutdown complete")
	return err
}
