// Package auth runs the Google OAuth flow and maps opaque session ids to stored credentials.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/service"
)

// Scopes requested at login.
var Scopes = []string{
	oauth2api.OpenIDScope,
	gmail.GmailReadonlyScope,
	oauth2api.UserinfoEmailScope,
	oauth2api.UserinfoProfileScope,
}

// Options configures a Manager.
type Options struct {
	// Endpoint defaults to google.Endpoint.
	Endpoint     oauth2.Endpoint
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// APIEndpoint overrides the Google API base URL used for the userinfo lookup.
	APIEndpoint string
	SessionTTL  time.Duration
	StateTTL    time.Duration
}

// Manager issues login URLs, completes the code exchange, and hands out token sources
// for stored sessions.
type Manager struct {
	oauth       *oauth2.Config
	store       service.TokenStore
	states      *stateCache
	now         func() time.Time
	apiEndpoint string
	sessionTTL  time.Duration
}

// NewManager creates a Manager backed by store.
func NewManager(opts Options, store service.TokenStore) *Manager {
	endpoint := opts.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}

	return &Manager{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  opts.RedirectURL,
			Scopes:       Scopes,
		},
		store:       store,
		states:      newStateCache(opts.StateTTL),
		now:         time.Now,
		apiEndpoint: opts.APIEndpoint,
		sessionTTL:  opts.SessionTTL,
	}
}

// Close stops background state eviction.
func (m *Manager) Close() {
	m.states.Close()
}

// LoginURL returns the provider consent URL for a fresh state.
func (m *Manager) LoginURL() string {
	return m.authCodeURL(m.oauth, m.states.issue())
}

func (m *Manager) authCodeURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Complete validates state, exchanges code, and stores the resulting credential under a
// new session id.
func (m *Manager) Complete(ctx context.Context, state, code string) (string, error) {
	if !m.states.consume(state) {
		return "", common.ErrInvalidState
	}

	cred, err := m.exchange(ctx, m.oauth, code, uuid.NewString())
	if err != nil {
		return "", err
	}
	if m.sessionTTL > 0 {
		cred.ExpiresAt = cred.CreatedAt.Add(m.sessionTTL)
	}

	if err := m.store.Put(ctx, cred); err != nil {
		return "", fmt.Errorf("failed to store credential: %w", err)
	}

	slog.Info("User authenticated", "email", cred.Email)
	return cred.ID, nil
}

func (m *Manager) exchange(ctx context.Context, cfg *oauth2.Config, code, id string) (*model.Credential, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", common.ErrTokenExchange)
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrTokenExchange, err)
	}

	email, err := m.fetchEmail(ctx, cfg, token)
	if err != nil {
		slog.Warn("Failed to fetch user email", "error", err)
	}

	return credentialFromToken(id, token, email, m.now()), nil
}

func (m *Manager) fetchEmail(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (string, error) {
	opts := []option.ClientOption{option.WithTokenSource(cfg.TokenSource(ctx, token))}
	if m.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(m.apiEndpoint))
	}

	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	return info.Email, nil
}

// Session returns the credential behind id, or common.ErrNotAuthenticated.
func (m *Manager) Session(ctx context.Context, id string) (*model.Credential, error) {
	if id == "" {
		return nil, common.ErrNotAuthenticated
	}

	cred, err := m.store.Get(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", common.ErrNotAuthenticated, err)
	}
	if err != nil {
		return nil, err
	}
	return cred, nil
}

// TokenSource returns a refreshing token source for session id. Refreshed access tokens
// are written back to the store.
func (m *Manager) TokenSource(ctx context.Context, id string) (oauth2.TokenSource, error) {
	cred, err := m.Session(ctx, id)
	if err != nil {
		return nil, err
	}

	return &persistingSource{
		ctx:   ctx,
		base:  m.oauth.TokenSource(ctx, tokenFromCredential(cred)),
		store: m.store,
		cred:  *cred,
	}, nil
}

// Logout forgets session id. Unknown ids are not an error.
func (m *Manager) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// persistingSource saves rotated tokens so the next request starts from them.
type persistingSource struct {
	ctx   context.Context
	base  oauth2.TokenSource
	store service.TokenStore
	cred  model.Credential
	mu    sync.Mutex
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	token, err := p.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSessionExpired, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if token.AccessToken == p.cred.AccessToken {
		return token, nil
	}

	p.cred.AccessToken = token.AccessToken
	p.cred.TokenExpiry = token.Expiry
	if token.RefreshToken != "" {
		p.cred.RefreshToken = token.RefreshToken
	}

	cred := p.cred
	if err := p.store.Put(p.ctx, &cred); err != nil {
		slog.Warn("Failed to persist refreshed token", "error", err)
	}

	return token, nil
}

func credentialFromToken(id string, token *oauth2.Token, email string, now time.Time) *model.Credential {
	return &model.Credential{
		ID:           id,
		Email:        email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		TokenExpiry:  token.Expiry,
		CreatedAt:    now,
	}
}

func tokenFromCredential(cred *model.Credential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
		Expiry:       cred.TokenExpiry,
	}
}
