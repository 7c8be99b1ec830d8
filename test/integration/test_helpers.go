//go:build integration

package integration

import (
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-fintrack/internal/apiclient"
	"go-fintrack/internal/config"
	"go-fintrack/internal/fakeapi"
	"go-fintrack/internal/model"
	"go-fintrack/internal/router"
	"go-fintrack/internal/service"
	"go-fintrack/internal/session"
	"go-fintrack/internal/tokenstore"
	"go-fintrack/internal/validation"
)

const (
	testPassword = "Secret123!"
	accessTTL    = 15 * time.Minute
	refreshTTL   = 24 * time.Hour
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type environment struct {
	t       *testing.T
	baseURL string
	api     *fakeapi.API
	clock   *clock

	// durableFile survives every restart; a new ephemeral file stands for a
	// new login session.
	durableFile string
}

func newEnvironment(t *testing.T, authRPM int) *environment {
	t.Helper()

	clk := &clock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	api, err := fakeapi.New(fakeapi.Options{
		JWTSecret:  "integration-secret",
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		BcryptCost: bcrypt.MinCost,
		Now:        clk.Now,
	})
	require.NoError(t, err)

	cfg := &config.Config{
		ServerWriteTimeout: 30 * time.Second,
		CORSOrigins:        []string{"*"},
		RateLimitRPM:       1000,
		AuthRateLimitRPM:   authRPM,
		FakeExposeOutbox:   true,
	}

	server := httptest.NewServer(router.New(cfg, api))
	t.Cleanup(server.Close)

	return &environment{
		t:           t,
		baseURL:     server.URL + "/api",
		api:         api,
		clock:       clk,
		durableFile: filepath.Join(t.TempDir(), "credentials.json"),
	}
}

// client is one process of the CLI: its own store handles, API client and
// session manager.
type client struct {
	tokens   *tokenstore.Store
	session  *session.Manager
	expenses *service.ExpenseService
}

func (e *environment) start(ephemeralFile string) *client {
	e.t.Helper()

	durable, err := tokenstore.NewFileArea(e.durableFile, "default")
	require.NoError(e.t, err)
	ephemeral, err := tokenstore.NewFileArea(ephemeralFile, "default")
	require.NoError(e.t, err)

	tokens := tokenstore.New(durable, ephemeral)
	api := apiclient.New(e.baseURL, tokens, apiclient.WithTimeout(5*time.Second))
	validate := validation.New()

	mgr := session.NewManager(service.NewAuthService(api, validate), tokens, session.Options{NotifyServerOnLogout: true})
	e.t.Cleanup(mgr.Wait)

	return &client{
		tokens:   tokens,
		session:  mgr,
		expenses: service.NewExpenseService(api, validate),
	}
}

func (e *environment) newSessionFile() string {
	return filepath.Join(e.t.TempDir(), "session.json")
}

// signUp registers email and verifies it through c, leaving c signed in.
func (e *environment) signUp(c *client, email string, remember bool) model.AuthResponse {
	e.t.Helper()
	ctx := e.t.Context()

	reg, err := c.session.Register(ctx, model.RegisterRequest{
		Name:            "Integration User",
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(e.t, err)

	msg, ok := e.api.Outbox.Latest(email, fakeapi.MailVerification)
	require.True(e.t, ok)

	resp, err := c.session.VerifyEmail(ctx, model.VerifyEmailRequest{UserID: reg.UserID, OTP: msg.Secret}, remember)
	require.NoError(e.t, err)
	return resp
}
