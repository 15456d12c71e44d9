package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/nr1etech/xcorplatform-client/internal/credentials"
	"github.com/nr1etech/xcorplatform-client/internal/proxy"
)

// App orchestrates the lifecycle of the proxy server and the credential manager.
type App struct {
	cfg     *Config
	manager *credentials.Manager
	proxy   *proxy.Proxy
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// I/O deferred to the first token exchange
	manager, err := NewCredentialManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential manager: %w", err)
	}

	proxyServer, err := proxy.New(manager.TokenSource(), cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &App{
		cfg:     cfg,
		manager: manager,
		proxy:   proxyServer,
	}, nil
}

// NewCredentialManager builds a credential manager from application
// configuration, wiring the configured secret store in as the source of the
// client secret. No I/O is performed until the first exchange.
func NewCredentialManager(cfg *Config) (*credentials.Manager, error) {
	store, err := cfg.Auth.NewSecretStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create secret store: %w", err)
	}

	factory := func(secret string) credentials.Exchanger {
		return credentials.NewHTTPExchanger(cfg.Auth.CredentialConfig(secret))
	}

	exchanger, err := NewStoredSecretExchanger(factory, store)
	if err != nil {
		return nil, err
	}

	return credentials.New(cfg.Auth.CredentialConfig(""), credentials.WithExchanger(exchanger))
}

// Start starts all services and blocks until shutdown is triggered.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Server.Host + ":" + strconv.FormatUint(uint64(a.cfg.Server.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting proxy server", "address", address)
	proxyErrCh, err := a.proxy.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	// Shutdown runs in reverse: drain the proxy first, then stop the
	// credential manager's background refresh.
	shutdownFuncs = append(shutdownFuncs, func(context.Context) error {
		return a.manager.Close()
	})
	shutdownFuncs = append(shutdownFuncs, a.proxy.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
