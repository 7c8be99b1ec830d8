package fakeapi

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-fintrack/internal/model"
	"go-fintrack/pkg/apierror"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Issuer signs and validates the HS256 bearer tokens the fake API hands out.
// Access and refresh tokens differ only in their "typ" claim and lifetime.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewIssuer(secret string, accessTTL time.Duration, refreshTTL time.Duration, now func() time.Time) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	if now == nil {
		now = time.Now
	}

	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
		revoked:    map[string]time.Time{},
	}, nil
}

func (i *Issuer) IssuePair(userID int64) (model.Credentials, error) {
	access, err := i.issue(userID, tokenTypeAccess, i.accessTTL)
	if err != nil {
		return model.Credentials{}, err
	}

	refresh, err := i.issue(userID, tokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return model.Credentials{}, err
	}

	return model.Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *Issuer) IssueAccess(userID int64) (string, error) {
	return i.issue(userID, tokenTypeAccess, i.accessTTL)
}

// ValidateToken checks signature, expiry, type and revocation. An expired
// token yields the TOKEN_EXPIRED code so clients can tell it apart from a
// forged or revoked one.
func (i *Issuer) ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apierror.New(apierror.CodeTokenExpired, "Token has expired", "", http.StatusUnauthorized)
		}
		return nil, apierror.New(apierror.CodeUnauthorized, "Invalid token", "", http.StatusUnauthorized)
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.New(apierror.CodeUnauthorized, "Invalid token claims", "", http.StatusUnauthorized)
	}

	typ, _ := claimsMap["typ"].(string)
	if expectedType != "" && typ != expectedType {
		return nil, apierror.New(apierror.CodeUnauthorized, "Invalid token type", "", http.StatusUnauthorized)
	}

	claims := &model.AuthClaims{Type: typ}
	claims.TokenID, _ = claimsMap["jti"].(string)
	sub, _ := claimsMap["sub"].(string)
	claims.UserID, err = strconv.ParseInt(sub, 10, 64)
	if err != nil || claims.UserID <= 0 {
		return nil, apierror.New(apierror.CodeUnauthorized, "Invalid token subject", "", http.StatusUnauthorized)
	}

	if i.isRevoked(claims.TokenID) {
		return nil, apierror.New(apierror.CodeUnauthorized, "Token has been revoked", "", http.StatusUnauthorized)
	}

	return claims, nil
}

// Revoke blocks a token id until its natural expiry has certainly passed.
func (i *Issuer) Revoke(tokenID string) {
	if tokenID == "" {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	i.revoked[tokenID] = now.Add(i.refreshTTL)
	for id, until := range i.revoked {
		if now.After(until) {
			delete(i.revoked, id)
		}
	}
}

func (i *Issuer) isRevoked(tokenID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	_, found := i.revoked[tokenID]
	return found
}

func (i *Issuer) issue(userID int64, typ string, ttl time.Duration) (string, error) {
	now := i.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"typ": typ,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString(i.secret)
}
