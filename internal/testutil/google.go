package testutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/oauth2"
)

// GmailMessage is one message served by FakeGoogle.
type GmailMessage struct {
	ID       string
	ThreadID string
	From     string
	Subject  string
	Date     string
	Snippet  string
	// Raw is the RFC 5322 source returned for format=raw.
	Raw      string
	LabelIDs []string
}

// FakeGoogle serves the OAuth token endpoint, the userinfo endpoint and the subset of
// the Gmail API the mail source uses.
type FakeGoogle struct {
	Server *httptest.Server
	// Email is returned by userinfo. Empty makes userinfo fail.
	Email string
	// FailIDs make metadata and raw fetches of those ids fail with a 500.
	FailIDs map[string]bool
	// RateLimitLists makes that many list calls fail with a 429 before succeeding.
	RateLimitLists int
	// ListStatus, when non-zero, fails every list call with that status.
	ListStatus int
	messages   []GmailMessage
	exchanges  int
	refreshes  int
	mu         sync.Mutex
}

// NewFakeGoogle starts a fake backend that is shut down when the test ends.
func NewFakeGoogle(t *testing.T, msgs ...GmailMessage) *FakeGoogle {
	t.Helper()

	f := &FakeGoogle{
		Email:    "student@mcmaster.ca",
		FailIDs:  map[string]bool{},
		messages: msgs,
	}

	r := chi.NewRouter()
	r.Post("/token", f.token)
	r.Get("/oauth2/v2/userinfo", f.userinfo)
	r.Get("/gmail/v1/users/{user}/messages", f.list)
	r.Get("/gmail/v1/users/{user}/messages/{id}", f.get)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)

	return f
}

// Endpoint is the OAuth endpoint of the fake.
func (f *FakeGoogle) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   f.Server.URL + "/auth",
		TokenURL:  f.Server.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// APIEndpoint is the base URL to pass to option.WithEndpoint.
func (f *FakeGoogle) APIEndpoint() string {
	return f.Server.URL + "/"
}

// Exchanges reports how many authorization codes were exchanged.
func (f *FakeGoogle) Exchanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchanges
}

// Refreshes reports how many refresh grants were served.
func (f *FakeGoogle) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func (f *FakeGoogle) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		code := r.PostForm.Get("code")
		if code == "" || code == "bad" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		f.exchanges++
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access-" + code,
			"refresh_token": "refresh-" + code,
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	case "refresh_token":
		f.refreshes++
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "refreshed-" + strconv.Itoa(f.refreshes),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *FakeGoogle) userinfo(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	email := f.Email
	f.mu.Unlock()

	if email == "" {
		googleError(w, http.StatusInternalServerError, "backend error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"email": email, "verified_email": true})
}

func (f *FakeGoogle) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ListStatus != 0 {
		googleError(w, f.ListStatus, http.StatusText(f.ListStatus))
		return
	}
	if f.RateLimitLists > 0 {
		f.RateLimitLists--
		googleError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
	query := strings.ToLower(r.URL.Query().Get("q"))

	refs := []map[string]string{}
	for _, msg := range f.messages {
		if query != "" && !strings.Contains(strings.ToLower(msg.Subject), query) {
			continue
		}
		refs = append(refs, map[string]string{"id": msg.ID, "threadId": msg.ThreadID})
		if limit > 0 && len(refs) == limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages":           refs,
		"resultSizeEstimate": len(refs),
	})
}

func (f *FakeGoogle) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailIDs[id] {
		googleError(w, http.StatusInternalServerError, "backend error")
		return
	}

	var msg *GmailMessage
	for i := range f.messages {
		if f.messages[i].ID == id {
			msg = &f.messages[i]
			break
		}
	}
	if msg == nil {
		googleError(w, http.StatusNotFound, "Requested entity was not found.")
		return
	}

	body := map[string]any{
		"id":       msg.ID,
		"threadId": msg.ThreadID,
		"snippet":  msg.Snippet,
		"labelIds": msg.LabelIDs,
	}

	switch r.URL.Query().Get("format") {
	case "raw":
		body["raw"] = base64.URLEncoding.EncodeToString([]byte(msg.Raw))
	default:
		body["payload"] = map[string]any{
			"headers": []map[string]string{
				{"name": "From", "value": msg.From},
				{"name": "Subject", "value": msg.Subject},
				{"name": "Date", "value": msg.Date},
			},
		}
	}

	writeJSON(w, http.StatusOK, body)
}

func googleError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"errors": []map[string]string{
				{"message": message, "reason": fmt.Sprintf("status%d", status)},
			},
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
