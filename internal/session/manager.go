// Package session owns the authentication state the CLI renders from. A
// Manager is built once by the composition root; it stores credentials in a
// tokenstore.Store, talks to the API through an AuthAPI and announces every
// state change on an event bus.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go-fintrack/internal/event"
	"go-fintrack/internal/model"
	"go-fintrack/internal/tokenstore"
	"go-fintrack/pkg/apierror"
)

// ErrSuperseded is returned by a sign-in whose result was discarded because a
// logout happened while it was in flight.
var ErrSuperseded = errors.New("session flow superseded by a newer one")

const (
	logoutNotifyTimeout = 5 * time.Second
	defaultStoreTimeout = 5 * time.Second
)

// AuthAPI is the slice of the REST API the session flows call.
// *service.AuthService satisfies it.
type AuthAPI interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.RegisterResponse, error)
	VerifyEmail(ctx context.Context, req model.VerifyEmailRequest) (model.AuthResponse, error)
	Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error)
	GoogleLogin(ctx context.Context, req model.GoogleLoginRequest) (model.AuthResponse, error)
	ResendOTP(ctx context.Context, req model.ResendOTPRequest) (model.MessageResponse, error)
	ForgotPassword(ctx context.Context, req model.ForgotPasswordRequest) (model.MessageResponse, error)
	VerifyResetToken(ctx context.Context, req model.VerifyResetTokenRequest) (model.VerifyResetTokenResponse, error)
	ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (model.MessageResponse, error)
	Refresh(ctx context.Context) (model.RefreshResponse, error)
	Profile(ctx context.Context) (model.UserProfile, error)
	Logout(ctx context.Context, accessToken string) error
}

type Options struct {
	Logger *slog.Logger
	Bus    event.Bus
	// NotifyServerOnLogout sends a best-effort POST /auth/logout after the
	// local session is cleared.
	NotifyServerOnLogout bool
	// StoreTimeout bounds the credential reads and deletes Logout performs
	// while holding the state lock. Defaults to 5s.
	StoreTimeout time.Duration
}

type Manager struct {
	auth   AuthAPI
	tokens *tokenstore.Store
	bus    event.Bus
	logger *slog.Logger
	notify bool

	storeTimeout time.Duration

	// mu guards state, seq and loggedOut, and serialises every token write
	// so a superseded flow can never touch storage after a newer flow
	// settled. seq advances only when a flow commits a result.
	mu        sync.Mutex
	state     State
	seq       uint64
	loggedOut uint64

	initStarted atomic.Bool
	background  sync.WaitGroup
}

func NewManager(auth AuthAPI, tokens *tokenstore.Store, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Bus == nil {
		opts.Bus = event.NewBus()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}

	return &Manager{
		auth:   auth,
		tokens: tokens,
		bus:    opts.Bus,
		logger: opts.Logger.With("component", "session"),
		notify: opts.NotifyServerOnLogout,
		state:  initializingState(),

		storeTimeout: opts.StoreTimeout,
	}
}

// State returns a snapshot of the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Subscribe delivers an event for every state transition. Use StateFrom to
// read the state it carries.
func (m *Manager) Subscribe() (<-chan event.Event, func()) {
	return m.bus.Subscribe()
}

// Initialize resolves the startup state from stored credentials. It runs once;
// later calls return the current state. It never returns an error: every
// failure ends in Anonymous.
func (m *Manager) Initialize(ctx context.Context) State {
	if !m.initStarted.CompareAndSwap(false, true) {
		return m.State()
	}

	seq := m.begin()
	m.resolve(ctx, seq)

	m.mu.Lock()
	if m.state.Phase == PhaseInitializing {
		// The guard dropped this result without another flow settling
		// the state. Loading must still end.
		m.setLocked(seq, anonymousState(), event.TypeSessionInitialized)
	}
	m.mu.Unlock()

	return m.State()
}

func (m *Manager) resolve(ctx context.Context, seq uint64) {
	access, err := m.tokens.GetAccessToken(ctx)
	if err != nil {
		m.logger.Warn("read stored credentials failed", "error", err)
		m.endAnonymous(ctx, seq, true)
		return
	}
	if access == "" {
		m.logger.Debug("no stored credentials")
		m.endAnonymous(ctx, seq, false)
		return
	}

	user, err := m.auth.Profile(ctx)
	if err == nil {
		m.endAuthenticated(seq, user)
		return
	}

	if !errors.Is(err, apierror.ErrAuthExpired) {
		m.logger.Info("stored session rejected", "error", err)
		m.endAnonymous(ctx, seq, true)
		return
	}

	refresh, err := m.tokens.GetRefreshToken(ctx)
	if err != nil || refresh == "" {
		m.logger.Info("access token expired and no refresh token is stored")
		m.endAnonymous(ctx, seq, true)
		return
	}

	resp, err := m.auth.Refresh(ctx)
	if err == nil && resp.AccessToken == "" {
		err = &apierror.NetworkError{Op: "decode refresh", Err: errors.New("response has no access_token")}
	}
	if err != nil {
		m.logger.Info("token refresh failed", "error", err)
		m.endAnonymous(ctx, seq, true)
		return
	}

	replaced, err := m.guarded(seq, func() error {
		return m.tokens.ReplaceAccessToken(ctx, resp.AccessToken)
	})
	if !replaced {
		return
	}
	if err != nil {
		m.logger.Warn("store refreshed token failed", "error", err)
		m.endAnonymous(ctx, seq, true)
		return
	}
	m.bus.Publish(event.Event{Type: event.TypeTokenRefreshed, Seq: seq})

	user, err = m.auth.Profile(ctx)
	if err != nil {
		m.logger.Info("profile fetch after refresh failed", "error", err)
		m.endAnonymous(ctx, seq, true)
		return
	}

	m.endAuthenticated(seq, user)
}

func (m *Manager) endAuthenticated(seq uint64, user model.UserProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq == m.seq {
		m.setLocked(seq, authenticatedState(user), event.TypeSessionInitialized)
	}
}

func (m *Manager) endAnonymous(ctx context.Context, seq uint64, clear bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.seq {
		return
	}
	if clear {
		if err := m.tokens.ClearAll(ctx); err != nil {
			m.logger.Warn("clear credentials failed", "error", err)
		}
	}
	m.setLocked(seq, anonymousState(), event.TypeSessionInitialized)
}

// Login authenticates with email and password. Remember selects durable
// storage. On failure the session state is left untouched.
func (m *Manager) Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	start := m.current()
	resp, err := m.auth.Login(ctx, req)
	if err != nil {
		return resp, err
	}
	return resp, m.establish(ctx, start, resp, req.Remember)
}

// FederatedLogin exchanges a provider ID token for a session.
func (m *Manager) FederatedLogin(ctx context.Context, idToken string, remember bool) (model.AuthResponse, error) {
	start := m.current()
	resp, err := m.auth.GoogleLogin(ctx, model.GoogleLoginRequest{IDToken: idToken})
	if err != nil {
		return resp, err
	}
	return resp, m.establish(ctx, start, resp, remember)
}

// VerifyEmail completes registration and signs the user in.
func (m *Manager) VerifyEmail(ctx context.Context, req model.VerifyEmailRequest, remember bool) (model.AuthResponse, error) {
	start := m.current()
	resp, err := m.auth.VerifyEmail(ctx, req)
	if err != nil {
		return resp, err
	}
	return resp, m.establish(ctx, start, resp, remember)
}

// establish commits a successful sign-in that started at sequence start. A
// logout since then discards it. Otherwise it takes a new sequence number, so
// an Initialize still in flight can no longer overwrite it, and the latest
// sign-in to finish wins.
func (m *Manager) establish(ctx context.Context, start uint64, resp model.AuthResponse, remember bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loggedOut > start {
		m.logger.Debug("discarding sign-in that finished after a logout", "start", start, "current", m.seq)
		return ErrSuperseded
	}

	m.seq++
	seq := m.seq

	if err := m.tokens.Save(ctx, resp.Credentials(), remember); err != nil {
		return err
	}

	user := model.UserProfile{}
	if resp.User != nil {
		user = *resp.User
	}
	m.setLocked(seq, authenticatedState(user), event.TypeSessionAuthenticated)
	m.logger.Info("signed in", "user_id", user.ID, "remember", remember)
	return nil
}

// Logout clears credentials and ends in Anonymous. It cannot fail.
//
// The store calls run under the state lock so no flow can write tokens
// between the clear and the transition. They are bounded by StoreTimeout,
// which caps how long State readers wait on a slow remote area.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	seq := m.seq
	m.loggedOut = seq

	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	if m.notify && m.state.IsAuthenticated {
		if token, err := m.tokens.GetAccessToken(ctx); err == nil && token != "" {
			m.notifyLogout(token)
		}
	}

	if err := m.tokens.ClearAll(ctx); err != nil {
		m.logger.Warn("clear credentials failed", "error", err)
	}
	m.setLocked(seq, anonymousState(), event.TypeSessionAnonymous)
}

// notifyLogout tells the server in the background. Its outcome is only
// logged.
func (m *Manager) notifyLogout(token string) {
	m.background.Add(1)
	go func() {
		defer m.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), logoutNotifyTimeout)
		defer cancel()

		if err := m.auth.Logout(ctx, token); err != nil {
			m.logger.Debug("server logout failed", "error", err)
		}
	}()
}

// Wait blocks until background logout notifications have finished.
func (m *Manager) Wait() {
	m.background.Wait()
}

func (m *Manager) Register(ctx context.Context, req model.RegisterRequest) (model.RegisterResponse, error) {
	return m.auth.Register(ctx, req)
}

func (m *Manager) ResendOTP(ctx context.Context, userID int64) (model.MessageResponse, error) {
	return m.auth.ResendOTP(ctx, model.ResendOTPRequest{UserID: userID})
}

func (m *Manager) ForgotPassword(ctx context.Context, email string) (model.MessageResponse, error) {
	return m.auth.ForgotPassword(ctx, model.ForgotPasswordRequest{Email: email})
}

func (m *Manager) VerifyResetToken(ctx context.Context, token string) (model.VerifyResetTokenResponse, error) {
	return m.auth.VerifyResetToken(ctx, model.VerifyResetTokenRequest{Token: token})
}

func (m *Manager) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (model.MessageResponse, error) {
	return m.auth.ResetPassword(ctx, req)
}

func (m *Manager) current() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seq
}

func (m *Manager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq
}

// guarded runs fn under the state lock only if seq is still current. The
// first result reports whether fn ran.
func (m *Manager) guarded(seq uint64, fn func() error) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq != m.seq {
		return false, nil
	}
	return true, fn()
}

func (m *Manager) setLocked(seq uint64, next State, typ event.Type) {
	m.state = next
	m.bus.Publish(event.Event{Type: typ, Payload: next.clone(), Seq: seq})
}
