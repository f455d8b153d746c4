package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/unclutter/internal/auth"
	"github.com/Veraticus/unclutter/internal/classification"
	"github.com/Veraticus/unclutter/internal/mail"
	"github.com/Veraticus/unclutter/internal/metrics"
	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/service"
	"github.com/Veraticus/unclutter/internal/testutil"
)

const (
	frontend  = "http://localhost:5174"
	sessionID = "session-1"
)

const midtermRaw = "From: Registrar <registrar@mcmaster.ca>\r\n" +
	"Subject: Midterm exam due March 3\r\n" +
	"Date: Mon, 02 Mar 2026 09:00:00 -0500\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Your midterm is on March 3.\r\n"

type harness struct {
	server  *Server
	fake    *testutil.FakeGoogle
	store   *testutil.TestStore
	metrics *metrics.Recorder
	http    *httptest.Server
}

func newHarness(t *testing.T, creds ...*model.Credential) *harness {
	t.Helper()

	fake := testutil.NewFakeGoogle(t,
		testutil.GmailMessage{
			ID:       "m1",
			ThreadID: "t1",
			From:     "Registrar <registrar@mcmaster.ca>",
			Subject:  "Midterm exam due March 3",
			Date:     "Mon, 02 Mar 2026 09:00:00 -0500",
			Snippet:  "Your midterm is on March 3.",
			Raw:      midtermRaw,
			LabelIDs: []string{"INBOX", "UNREAD"},
		},
		testutil.GmailMessage{
			ID:      "m2",
			From:    "Shop <deals@store.com>",
			Subject: "Huge Clearance Sale",
			Date:    "Tue, 03 Mar 2026 10:00:00 +0000",
			Snippet: "Save 50% today",
		},
		testutil.GmailMessage{
			ID:      "m3",
			From:    "friend@example.com",
			Subject: "Lunch tomorrow?",
			Snippet: "Want to grab lunch?",
		},
	)
	store := testutil.SetupTokenStore(t, creds...)

	manager := auth.NewManager(auth.Options{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:5001/api/auth/google/callback",
		Endpoint:     fake.Endpoint(),
		APIEndpoint:  fake.APIEndpoint(),
		SessionTTL:   time.Hour,
	}, store)
	t.Cleanup(manager.Close)

	rec := metrics.New()
	srv := New(Options{
		Auth:       manager,
		Store:      store,
		Classifier: classification.Default(),
		Metrics:    rec,
		Sources: GmailSources(manager, mail.GmailOptions{
			Endpoint: fake.APIEndpoint(),
			Retry: service.RetryOptions{
				MaxAttempts:  2,
				InitialDelay: time.Millisecond,
				MaxDelay:     time.Millisecond,
			},
		}),
		FrontendURL: frontend,
	})

	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	return &harness{server: srv, fake: fake, store: store, metrics: rec, http: httpSrv}
}

// noRedirect returns a client that reports redirects instead of following them.
func noRedirect() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (h *harness) do(t *testing.T, method, path, token string, body io.Reader) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, h.http.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := noRedirect().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestLoginRedirectsToProvider(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/auth/login", "", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, h.fake.Server.URL+"/auth", loc.Scheme+"://"+loc.Host+loc.Path)
	assert.NotEmpty(t, loc.Query().Get("state"))
	assert.Equal(t, "offline", loc.Query().Get("access_type"))
}

func TestCallback(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		query func() string
		want  string
	}{
		{
			name:  "provider error",
			query: func() string { return "error=access_denied" },
			want:  frontend + "/login?error=access_denied",
		},
		{
			name:  "missing code",
			query: func() string { return "state=x" },
			want:  frontend + "/login?error=no_code",
		},
		{
			name:  "unknown state",
			query: func() string { return "state=forged&code=good" },
			want:  frontend + "/login?error=token_exchange_failed",
		},
		{
			name: "exchange rejected",
			query: func() string {
				return "state=" + loginState(t, h) + "&code=bad"
			},
			want: frontend + "/login?error=token_exchange_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.do(t, http.MethodGet, "/api/auth/google/callback?"+tt.query(), "", nil)
			assert.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, tt.want, resp.Header.Get("Location"))
		})
	}
}

func loginState(t *testing.T, h *harness) string {
	t.Helper()

	resp := h.do(t, http.MethodGet, "/api/auth/login", "", nil)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return loc.Query().Get("state")
}

func TestCallbackSuccessThenMeAndLogout(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/auth/google/callback?state="+loginState(t, h)+"&code=good", "", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/home", loc.Path)
	token := loc.Query().Get("token")
	require.NotEmpty(t, token)
	assert.Equal(t, "access-good", h.store.MustGet(token).AccessToken)

	resp = h.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "student@mcmaster.ca", decode[map[string]string](t, resp)["email"])

	resp = h.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"ok": true}, decode[map[string]bool](t, resp))

	resp = h.do(t, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMeUnauthenticated(t *testing.T) {
	h := newHarness(t)

	for _, token := range []string{"", "unknown"} {
		resp := h.do(t, http.MethodGet, "/api/auth/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, map[string]string{"error": "Not authenticated"}, decode[map[string]string](t, resp))
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"ok": true}, decode[map[string]bool](t, resp))
}

type emailsResponse struct {
	Emails []emailJSON `json:"emails"`
}

func TestListEmails(t *testing.T) {
	h := newHarness(t, testutil.Credential(sessionID, time.Hour))

	resp := h.do(t, http.MethodGet, "/api/emails", sessionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[emailsResponse](t, resp).Emails
	require.Len(t, got, 3)

	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "t1", got[0].ThreadID)
	assert.Equal(t, "Registrar <registrar@mcmaster.ca>", got[0].Sender)
	assert.Equal(t, "Mon, 02 Mar 2026 09:00:00 -0500", got[0].Date)
	assert.Equal(t, "action", got[0].Category)
	assert.Equal(t, []string{"University", "Action Items"}, got[0].Labels)

	assert.Equal(t, "promotions", got[1].Category)
	assert.Equal(t, "unsorted", got[2].Category)
	assert.Equal(t, []string{"Unsorted"}, got[2].Labels)
}

func TestListEmailsQueryAndLimit(t *testing.T) {
	h := newHarness(t, testutil.Credential(sessionID, time.Hour))

	resp := h.do(t, http.MethodGet, "/api/emails?q=sale", sessionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[emailsResponse](t, resp).Emails
	require.Len(t, got, 1)
	assert.Equal(t, "m2", got[0].ID)

	resp = h.do(t, http.MethodGet, "/api/emails?maxResults=1", sessionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[emailsResponse](t, resp).Emails, 1)

	resp = h.do(t, http.MethodGet, "/api/emails?maxResults=lots", sessionID, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListEmailsErrors(t *testing.T) {
	h := newHarness(t, testutil.Credential(sessionID, time.Hour))

	resp := h.do(t, http.MethodGet, "/api/emails", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not authenticated", decode[map[string]string](t, resp)["error"])

	h.fake.ListStatus = http.StatusBadRequest
	resp = h.do(t, http.MethodGet, "/api/emails", sessionID, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotEmpty(t, decode[map[string]string](t, resp)["error"])
}

func TestGetEmail(t *testing.T) {
	h := newHarness(t, testutil.Credential(sessionID, time.Hour))

	resp := h.do(t, http.MethodGet, "/api/emails/m1", sessionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		ID       string   `json:"id"`
		Subject  string   `json:"subject"`
		Body     string   `json:"body"`
		Category string   `json:"category"`
		Labels   []string `json:"labels"`
		LabelIDs []string `json:"labelIds"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "Midterm exam due March 3", got.Subject)
	assert.Equal(t, "Your midterm is on March 3.", got.Body)
	assert.Equal(t, "action", got.Category)
	assert.Equal(t, []string{"INBOX", "UNREAD"}, got.LabelIDs)

	resp = h.do(t, http.MethodGet, "/api/emails/nope", sessionID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/emails/m1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestClassify(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/classify", "",
		strings.NewReader(`{"subject":"Assignment due 10/12","sender":"prof@mcmaster.ca","snippet":""}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[classifyResponse](t, resp)
	assert.Equal(t, model.CategoryAction, got.Category)
	assert.Equal(t, []model.Label{model.LabelUniversity, model.LabelActionItems}, got.Labels)
	assert.Equal(t, []model.Signal{model.SignalAcademic, model.SignalAction}, got.Signals)

	resp = h.do(t, http.MethodPost, "/api/classify", "", strings.NewReader(`{}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decode[classifyResponse](t, resp)
	assert.Equal(t, model.CategoryUnsorted, got.Category)
	assert.Empty(t, got.Signals)

	resp = h.do(t, http.MethodPost, "/api/classify", "", strings.NewReader(`{"subject":`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRules(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/rules", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[rulesResponse](t, resp)
	assert.Equal(t, []model.Category{
		model.CategoryAction,
		model.CategoryUniversity,
		model.CategoryPromotions,
		model.CategoryUnsorted,
	}, got.Categories)
	assert.Len(t, got.Rules.RuleSets, 4)
	assert.Equal(t, model.CategoryUnsorted, got.Rules.Fallback.Category)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/api/classify", "", strings.NewReader(`{"subject":"sale"}`))

	resp := h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `unclutter_messages_classified_total{category="promotions"} 1`)
	assert.Contains(t, string(body), `route="/api/classify"`)
}

func TestCORS(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodOptions, h.http.URL+"/api/emails", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", frontend)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, frontend, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req, err = http.NewRequest(http.MethodGet, h.http.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Empty(t, resp2.Header.Get("Access-Control-Allow-Origin"))
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"bearer abc", ""},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, bearerToken(r), "header %q", tt.header)
	}
}

func TestPurgeOnce(t *testing.T) {
	expired := testutil.Credential("old", time.Hour)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	h := newHarness(t, testutil.Credential(sessionID, time.Hour), expired)

	h.server.purgeOnce(context.Background())

	n, err := h.store.CountCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestServeStopsOnCancel(t *testing.T) {
	h := newHarness(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.server.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

