package tokenstore

import "context"

const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// Area is one storage scope for credentials. An empty value is never stored;
// Get reports absence with ok=false.
type Area interface {
	Name() string
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
