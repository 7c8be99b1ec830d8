package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"go-fintrack/internal/apiclient"
	"go-fintrack/internal/config"
	"go-fintrack/internal/database"
	"go-fintrack/internal/federated"
	"go-fintrack/internal/service"
	"go-fintrack/internal/session"
	"go-fintrack/internal/tokenstore"
	"go-fintrack/internal/validation"
)

// Env is everything a command needs. Build assembles it from config; tests
// assemble their own.
type Env struct {
	Config   *config.Config
	Session  *session.Manager
	Expenses *service.ExpenseService
	Registry *prometheus.Registry
	// Federated is nil when no Google client is configured.
	Federated func(ctx context.Context) (*federated.Provider, error)

	closers []func()
}

type BuildFunc func(ctx context.Context, cfg *config.Config) (*Env, error)

func (e *Env) Close() {
	if e == nil {
		return
	}
	if e.Session != nil {
		e.Session.Wait()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// Build is the composition root: token store by driver, API client, services
// and the session manager.
func Build(ctx context.Context, cfg *config.Config) (*Env, error) {
	env := &Env{Config: cfg}

	durable, err := durableArea(ctx, cfg, env)
	if err != nil {
		env.Close()
		return nil, err
	}

	ephemeral, err := tokenstore.NewFileArea(cfg.SessionFile, cfg.Profile)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("open session file: %w", err)
	}

	store := tokenstore.New(durable, ephemeral)
	env.Registry = prometheus.NewRegistry()

	client := apiclient.New(cfg.APIBaseURL, store,
		apiclient.WithTimeout(cfg.RequestTimeout),
		apiclient.WithRateLimit(cfg.ClientRateLimitRPM),
		apiclient.WithMetrics(apiclient.NewMetrics(env.Registry)),
		apiclient.WithLogger(slog.Default().With("component", "apiclient")),
	)

	validate := validation.New()
	env.Expenses = service.NewExpenseService(client, validate)
	env.Session = session.NewManager(service.NewAuthService(client, validate), store, session.Options{
		NotifyServerOnLogout: true,
	})

	if cfg.GoogleEnabled() {
		env.Federated = func(ctx context.Context) (*federated.Provider, error) {
			return federated.NewProvider(ctx, federated.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Issuer:       cfg.GoogleIssuer,
				RedirectPort: cfg.GoogleRedirectPort,
			})
		}
	}

	return env, nil
}

func durableArea(ctx context.Context, cfg *config.Config, env *Env) (tokenstore.Area, error) {
	switch cfg.TokenStoreDriver {
	case config.DriverRedis:
		client, err := tokenstore.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, func() { _ = client.Close() })
		return tokenstore.NewRedisArea(client, cfg.RedisKeyPrefix, cfg.Profile), nil

	case config.DriverPostgres:
		db, err := database.Open(ctx, database.Options{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, db.Close)

		if err := db.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure token schema: %w", err)
		}
		return tokenstore.NewPostgresArea(db.Pool, cfg.Profile), nil

	default:
		area, err := tokenstore.NewFileArea(cfg.TokenFile, cfg.Profile)
		if err != nil {
			return nil, fmt.Errorf("open token file: %w", err)
		}
		return area, nil
	}
}
