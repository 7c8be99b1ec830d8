// Package federated obtains a Google ID token for the federated login
// endpoint. It runs an OpenID Connect authorization code flow with PKCE and
// receives the redirect on a loopback listener.
package federated

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	GoogleIssuer = "https://accounts.google.com"
	callbackPath = "/callback"
)

var (
	ErrStateMismatch = errors.New("authorization state mismatch")
	ErrNonceMismatch = errors.New("id token nonce mismatch")
	ErrNoIDToken     = errors.New("token response has no id_token")
)

type Config struct {
	ClientID     string
	ClientSecret string
	Issuer       string
	// RedirectPort is the loopback port Google redirects to; 0 picks a free
	// one, which only works when the client allows any loopback port.
	RedirectPort int
}

// Identity is a verified ID token and the claims the CLI displays.
type Identity struct {
	RawIDToken    string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

type Provider struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
	port     int
	logger   *slog.Logger
}

// NewProvider discovers the issuer's endpoints and keys.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("client id is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = GoogleIssuer
	}

	discovered, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	verifier := discovered.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return newProvider(cfg, discovered.Endpoint(), verifier), nil
}

// NewStaticProvider skips discovery: endpoints and signing keys are given.
func NewStaticProvider(cfg Config, endpoint oauth2.Endpoint, keys oidc.KeySet) *Provider {
	verifier := oidc.NewVerifier(cfg.Issuer, keys, &oidc.Config{ClientID: cfg.ClientID})
	return newProvider(cfg, endpoint, verifier)
}

func newProvider(cfg Config, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier) *Provider {
	return &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: verifier,
		port:     cfg.RedirectPort,
		logger:   slog.Default().With("component", "federated"),
	}
}

// AuthCodeURL builds the consent URL for one attempt. redirectURL must match
// the one later passed to Exchange.
func (p *Provider) AuthCodeURL(redirectURL string, state string, nonce string, verifier string) string {
	cfg := p.oauth
	cfg.RedirectURL = redirectURL
	return cfg.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oidc.Nonce(nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange redeems code and verifies the returned ID token, including its
// nonce.
func (p *Provider) Exchange(ctx context.Context, redirectURL string, code string, verifier string, nonce string) (Identity, error) {
	cfg := p.oauth
	cfg.RedirectURL = redirectURL

	token, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Identity{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return Identity{}, ErrNoIDToken
	}

	return p.Verify(ctx, raw, nonce)
}

// Verify checks signature, issuer, audience and expiry. An empty nonce skips
// the nonce check.
func (p *Provider) Verify(ctx context.Context, rawIDToken string, nonce string) (Identity, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return Identity{}, fmt.Errorf("verify id token: %w", err)
	}

	if nonce != "" && idToken.Nonce != nonce {
		return Identity{}, ErrNonceMismatch
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("decode id token claims: %w", err)
	}

	return Identity{
		RawIDToken:    rawIDToken,
		Subject:       idToken.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
	}, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
