package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresArea is a durable area stored in the stored_credentials table
// created by database.EnsureSchema.
type PostgresArea struct {
	pool    *pgxpool.Pool
	profile string
}

func NewPostgresArea(pool *pgxpool.Pool, profile string) *PostgresArea {
	return &PostgresArea{pool: pool, profile: profile}
}

func (a *PostgresArea) Name() string { return "postgres" }

func (a *PostgresArea) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := a.pool.QueryRow(ctx,
		`SELECT value FROM stored_credentials WHERE profile = $1 AND key = $2`,
		a.profile, key).Scan(&value)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get stored credential: %w", err)
	}
	return value, value != "", nil
}

func (a *PostgresArea) Set(ctx context.Context, key string, value string) error {
	if value == "" {
		return a.Delete(ctx, key)
	}

	_, err := a.pool.Exec(ctx,
		`INSERT INTO stored_credentials (profile, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (profile, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		a.profile, key, value)
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

func (a *PostgresArea) Delete(ctx context.Context, key string) error {
	_, err := a.pool.Exec(ctx,
		`DELETE FROM stored_credentials WHERE profile = $1 AND key = $2`, a.profile, key)
	if err != nil {
		return fmt.Errorf("delete stored credential: %w", err)
	}
	return nil
}
