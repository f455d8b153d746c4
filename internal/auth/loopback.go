package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/model"
)

// LoopbackTimeout bounds how long LoopbackLogin waits for the browser.
const LoopbackTimeout = 5 * time.Minute

const callbackPage = `<html><body>
	<h1>%s</h1>
	<p>%s</p>
	<script>window.setTimeout(function(){window.close();}, 3000);</script>
</body></html>`

// LoopbackLogin runs the OAuth flow for a terminal user. It listens on addr, passes the
// consent URL to notify, and stores the resulting credential under id without a session
// expiry.
func (m *Manager) LoopbackLogin(ctx context.Context, addr, id string, notify func(url string)) (*model.Credential, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}

	cfg := *m.oauth
	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", listener.Addr().String())

	state := m.states.issue()
	codeChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		switch {
		case query.Get("error") != "":
			sendErr(errorChan, fmt.Errorf("%w: %s", common.ErrTokenExchange, query.Get("error")))
			_, _ = fmt.Fprintf(w, callbackPage, "Authentication Failed", "Access was denied. Please try again.")
			return
		case !m.states.consume(query.Get("state")):
			sendErr(errorChan, common.ErrInvalidState)
			_, _ = fmt.Fprintf(w, callbackPage, "Authentication Failed", "The login link expired. Please try again.")
			return
		case query.Get("code") == "":
			sendErr(errorChan, fmt.Errorf("%w: no authorization code received", common.ErrTokenExchange))
			_, _ = fmt.Fprintf(w, callbackPage, "Authentication Failed", "No authorization code received. Please try again.")
			return
		}

		select {
		case codeChan <- query.Get("code"):
		default:
		}
		_, _ = fmt.Fprintf(w, callbackPage, "Authentication Successful!", "You can close this window and return to the terminal.")
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			sendErr(errorChan, fmt.Errorf("callback server: %w", serveErr))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.Warn("Error shutting down callback server", "error", shutdownErr)
		}
	}()

	notify(m.authCodeURL(&cfg, state))

	var code string
	select {
	case code = <-codeChan:
		slog.Debug("Received authorization code")
	case err := <-errorChan:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(LoopbackTimeout):
		return nil, fmt.Errorf("authentication timeout - no response received within %s", LoopbackTimeout)
	}

	cred, err := m.exchange(ctx, &cfg, code, id)
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}

	return cred, nil
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
