package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go-fintrack/internal/model"
)

func newFileStore(t *testing.T) *Store {
	t.Helper()

	durable, err := NewFileArea(filepath.Join(t.TempDir(), "credentials.json"), "default")
	require.NoError(t, err)
	return New(durable, NewMemoryArea())
}

func TestStorePrecedence(t *testing.T) {
	t.Parallel()

	values := []string{"", "X", "Y"}
	for _, durable := range values {
		for _, ephemeral := range values {
			durable, ephemeral := durable, ephemeral
			t.Run(fmt.Sprintf("durable=%q ephemeral=%q", durable, ephemeral), func(t *testing.T) {
				t.Parallel()
				ctx := context.Background()
				store := newFileStore(t)

				require.NoError(t, store.SetAccessToken(ctx, durable, true))
				require.NoError(t, store.SetAccessToken(ctx, ephemeral, false))
				require.NoError(t, store.SetRefreshToken(ctx, durable, true))
				require.NoError(t, store.SetRefreshToken(ctx, ephemeral, false))

				want := durable
				if want == "" {
					want = ephemeral
				}

				got, err := store.GetAccessToken(ctx)
				require.NoError(t, err)
				require.Equal(t, want, got)

				got, err = store.GetRefreshToken(ctx)
				require.NoError(t, err)
				require.Equal(t, want, got)
			})
		}
	}
}

func TestStoreClearAll(t *testing.T) {
	t.Parallel()

	for _, persistent := range []bool{true, false} {
		persistent := persistent
		t.Run(fmt.Sprintf("persistent=%v", persistent), func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := newFileStore(t)

			require.NoError(t, store.Save(ctx, model.Credentials{AccessToken: "A", RefreshToken: "R"}, persistent))
			require.NoError(t, store.SetAccessToken(ctx, "stale", !persistent))

			require.NoError(t, store.ClearAll(ctx))

			access, err := store.GetAccessToken(ctx)
			require.NoError(t, err)
			require.Empty(t, access)

			refresh, err := store.GetRefreshToken(ctx)
			require.NoError(t, err)
			require.Empty(t, refresh)
		})
	}

	t.Run("clearing an empty store is a no-op", func(t *testing.T) {
		require.NoError(t, NewInMemory().ClearAll(context.Background()))
	})
}

func TestStoreSave(t *testing.T) {
	t.Parallel()

	t.Run("persistent save leaves the ephemeral area empty", func(t *testing.T) {
		ctx := context.Background()
		store := newFileStore(t)
		require.NoError(t, store.SetAccessToken(ctx, "old", false))

		require.NoError(t, store.Save(ctx, model.Credentials{AccessToken: "A1", RefreshToken: "R1"}, true))

		_, ok, err := store.Ephemeral().Get(ctx, KeyAccessToken)
		require.NoError(t, err)
		require.False(t, ok)

		v, ok, err := store.Durable().Get(ctx, KeyRefreshToken)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "R1", v)
	})

	t.Run("ephemeral save leaves the durable area empty", func(t *testing.T) {
		ctx := context.Background()
		store := newFileStore(t)
		require.NoError(t, store.SetAccessToken(ctx, "old", true))

		require.NoError(t, store.Save(ctx, model.Credentials{AccessToken: "A1", RefreshToken: "R1"}, false))

		_, ok, err := store.Durable().Get(ctx, KeyAccessToken)
		require.NoError(t, err)
		require.False(t, ok)

		persistent, err := store.Persistent(ctx)
		require.NoError(t, err)
		require.False(t, persistent)
	})

	t.Run("rejects an empty access token", func(t *testing.T) {
		require.Error(t, NewInMemory().Save(context.Background(), model.Credentials{}, true))
	})
}

func TestStoreReplaceAccessToken(t *testing.T) {
	t.Parallel()

	for _, persistent := range []bool{true, false} {
		persistent := persistent
		t.Run(fmt.Sprintf("persistent=%v", persistent), func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			store := NewInMemory()
			require.NoError(t, store.Save(ctx, model.Credentials{AccessToken: "A1", RefreshToken: "R1"}, persistent))

			require.NoError(t, store.ReplaceAccessToken(ctx, "A2"))

			active, inactive := store.Durable(), store.Ephemeral()
			if !persistent {
				active, inactive = inactive, active
			}

			v, ok, err := active.Get(ctx, KeyAccessToken)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "A2", v)

			_, ok, err = inactive.Get(ctx, KeyAccessToken)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

type failingArea struct {
	*MemoryArea
	deletes int
}

func (a *failingArea) Name() string { return "failing" }

func (a *failingArea) Delete(ctx context.Context, key string) error {
	a.deletes++
	return errors.New("unavailable")
}

func TestStoreClearAllAttemptsEveryDeletion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	durable := &failingArea{MemoryArea: NewMemoryArea()}
	ephemeral := NewMemoryArea()
	store := New(durable, ephemeral)
	require.NoError(t, store.SetAccessToken(ctx, "A", false))

	err := store.ClearAll(ctx)
	require.Error(t, err)
	require.Equal(t, 2, durable.deletes)

	_, ok, err := ephemeral.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	require.False(t, ok)
}
