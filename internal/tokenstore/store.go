// Package tokenstore is the single source of truth for where credentials
// live. A Store owns two areas, durable and ephemeral, and callers only ever
// choose between them with a persistence flag.
package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"go-fintrack/internal/model"
)

type Store struct {
	durable   Area
	ephemeral Area
}

func New(durable Area, ephemeral Area) *Store {
	if ephemeral == nil {
		ephemeral = NewMemoryArea()
	}
	if durable == nil {
		durable = NewMemoryArea()
	}
	return &Store{durable: durable, ephemeral: ephemeral}
}

// NewInMemory backs both areas with memory; the durable one simply outlives
// nothing. Used by tests and one-shot commands.
func NewInMemory() *Store {
	return New(NewMemoryArea(), NewMemoryArea())
}

func (s *Store) Durable() Area   { return s.durable }
func (s *Store) Ephemeral() Area { return s.ephemeral }

func (s *Store) area(persistent bool) Area {
	if persistent {
		return s.durable
	}
	return s.ephemeral
}

// SetAccessToken writes to the durable area when persistent, otherwise to the
// ephemeral one. It does not touch the other area; use Save for login flows.
func (s *Store) SetAccessToken(ctx context.Context, token string, persistent bool) error {
	return s.set(ctx, KeyAccessToken, token, persistent)
}

func (s *Store) SetRefreshToken(ctx context.Context, token string, persistent bool) error {
	return s.set(ctx, KeyRefreshToken, token, persistent)
}

// GetAccessToken returns the durable token if present, else the ephemeral
// one, else "".
func (s *Store) GetAccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyAccessToken)
}

func (s *Store) GetRefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyRefreshToken)
}

// ClearAll removes both tokens from both areas. Every deletion is attempted
// even if an earlier one fails.
func (s *Store) ClearAll(ctx context.Context) error {
	var errs []error
	for _, area := range []Area{s.durable, s.ephemeral} {
		for _, key := range []string{KeyAccessToken, KeyRefreshToken} {
			if err := area.Delete(ctx, key); err != nil {
				errs = append(errs, fmt.Errorf("clear %s from %s: %w", key, area.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Save clears every area and then writes the pair into the one selected by
// persistent, so only one area ever holds a session's tokens.
func (s *Store) Save(ctx context.Context, creds model.Credentials, persistent bool) error {
	if creds.AccessToken == "" {
		return errors.New("access token is required")
	}

	if err := s.ClearAll(ctx); err != nil {
		return err
	}

	if err := s.SetAccessToken(ctx, creds.AccessToken, persistent); err != nil {
		return err
	}

	if creds.RefreshToken != "" {
		if err := s.SetRefreshToken(ctx, creds.RefreshToken, persistent); err != nil {
			return err
		}
	}

	return nil
}

// Persistent reports whether the durable area currently holds the access
// token, which is what makes it the active area.
func (s *Store) Persistent(ctx context.Context) (bool, error) {
	_, ok, err := s.durable.Get(ctx, KeyAccessToken)
	if err != nil {
		return false, fmt.Errorf("read %s from %s: %w", KeyAccessToken, s.durable.Name(), err)
	}
	return ok, nil
}

// ReplaceAccessToken writes a refreshed access token into the active area.
func (s *Store) ReplaceAccessToken(ctx context.Context, token string) error {
	persistent, err := s.Persistent(ctx)
	if err != nil {
		return err
	}
	return s.SetAccessToken(ctx, token, persistent)
}

func (s *Store) set(ctx context.Context, key string, value string, persistent bool) error {
	area := s.area(persistent)
	if err := area.Set(ctx, key, value); err != nil {
		return fmt.Errorf("write %s to %s: %w", key, area.Name(), err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	for _, area := range []Area{s.durable, s.ephemeral} {
		v, ok, err := area.Get(ctx, key)
		if err != nil {
			return "", fmt.Errorf("read %s from %s: %w", key, area.Name(), err)
		}
		if ok {
			return v, nil
		}
	}
	return "", nil
}
