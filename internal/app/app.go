// Package app wires and runs the local fake API server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-fintrack/internal/config"
	"go-fintrack/internal/fakeapi"
	"go-fintrack/internal/federated"
	"go-fintrack/internal/router"
)

type App struct {
	server *http.Server
}

func New(cfg *config.Config) (*App, error) {
	opts := fakeapi.Options{
		JWTSecret:  cfg.FakeJWTSecret,
		AccessTTL:  cfg.FakeAccessTTL,
		RefreshTTL: cfg.FakeRefreshTTL,
	}

	if cfg.GoogleEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		provider, err := federated.NewProvider(ctx, federated.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Issuer:       cfg.GoogleIssuer,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize google verifier: %w", err)
		}
		opts.Google = provider
		slog.Info("google sign-in enabled", "issuer", cfg.GoogleIssuer)
	}

	api, err := fakeapi.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fake api: %w", err)
	}

	server := &http.Server{
		Addr:              ":" + cfg.FakeServerPort,
		Handler:           router.New(cfg, api),
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{server: server}, nil
}

func (a *App) Addr() string {
	return a.server.Addr
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
