// Package fakeapi is an in-process implementation of the fintrack REST
// contract. Tests run clients against it and cmd/fakeapi serves it locally.
package fakeapi

import (
	"log/slog"
	"time"
)

type Options struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
	Google     IDTokenVerifier
	Now        func() time.Time
	Logger     *slog.Logger
}

// API bundles the fake backend's state and handlers. internal/router mounts
// the handlers.
type API struct {
	Store   *Store
	Tokens  *Issuer
	Outbox  *Outbox
	Auth    *AuthHandler
	Expense *ExpenseHandler
	Dev     *DevHandler
}

func New(opts Options) (*API, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	tokens, err := NewIssuer(opts.JWTSecret, opts.AccessTTL, opts.RefreshTTL, opts.Now)
	if err != nil {
		return nil, err
	}

	store := NewStore()
	outbox := NewOutbox(opts.Logger.With("component", "outbox"))

	return &API{
		Store:  store,
		Tokens: tokens,
		Outbox: outbox,
		Auth: NewAuthHandler(store, tokens, outbox, AuthOptions{
			Google:     opts.Google,
			BcryptCost: opts.BcryptCost,
			Now:        opts.Now,
		}),
		Expense: NewExpenseHandler(store, opts.Now),
		Dev:     NewDevHandler(outbox),
	}, nil
}
