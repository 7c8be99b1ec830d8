package federated

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const callbackPage = `<!doctype html><html><body><p>Signed in. You can close this window and return to the terminal.</p></body></html>`

type callbackResult struct {
	code string
	err  error
}

// Login runs the whole browser flow: it listens on a loopback port, hands the
// consent URL to open, waits for the redirect and returns the verified
// identity. ctx bounds the wait.
func (p *Provider) Login(ctx context.Context, open func(url string) error) (Identity, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p.port)))
	if err != nil {
		return Identity{}, fmt.Errorf("listen for oauth callback: %w", err)
	}

	redirectURL := fmt.Sprintf("http://%s%s", listener.Addr().String(), callbackPath)

	state, err := randomString(24)
	if err != nil {
		_ = listener.Close()
		return Identity{}, err
	}
	nonce, err := randomString(24)
	if err != nil {
		_ = listener.Close()
		return Identity{}, err
	}
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		res := readCallback(r, state)
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(callbackPage))
		}

		select {
		case results <- res:
		default:
		}
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Debug("oauth callback server stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := p.AuthCodeURL(redirectURL, state, nonce, verifier)
	p.logger.Debug("waiting for oauth callback", "redirect_url", redirectURL)
	if err := open(authURL); err != nil {
		return Identity{}, fmt.Errorf("open consent page: %w", err)
	}

	select {
	case <-ctx.Done():
		return Identity{}, ctx.Err()
	case res := <-results:
		if res.err != nil {
			return Identity{}, res.err
		}
		return p.Exchange(ctx, redirectURL, res.code, verifier, nonce)
	}
}

func readCallback(r *http.Request, state string) callbackResult {
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		return callbackResult{err: fmt.Errorf("authorization failed: %s %s", e, q.Get("error_description"))}
	}
	if q.Get("state") != state {
		return callbackResult{err: ErrStateMismatch}
	}

	code := q.Get("code")
	if code == "" {
		return callbackResult{err: errors.New("callback has no authorization code")}
	}

	return callbackResult{code: code}
}
