package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/inbox"
	"github.com/Veraticus/unclutter/internal/model"
	"github.com/Veraticus/unclutter/internal/rules"
	"github.com/Veraticus/unclutter/internal/service"
)

// maxClassifyBody bounds POST /api/classify request bodies.
const maxClassifyBody = 64 << 10

type emailJSON struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadId,omitempty"`
	Snippet  string   `json:"snippet"`
	Subject  string   `json:"subject"`
	Sender   string   `json:"sender"`
	Date     string   `json:"date"`
	Category string   `json:"category"`
	Labels   []string `json:"labels"`
}

type emailDetailJSON struct {
	emailJSON
	Body     string   `json:"body"`
	LabelIDs []string `json:"labelIds"`
}

type classifyRequest struct {
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
	Snippet string `json:"snippet"`
}

type classifyResponse struct {
	Category model.Category `json:"category"`
	Labels   []model.Label  `json:"labels"`
	Signals  []model.Signal `json:"signals"`
}

type rulesResponse struct {
	Rules      rules.Config     `json:"rules"`
	Categories []model.Category `json:"categories"`
}

func toEmailJSON(m model.ClassifiedMessage) emailJSON {
	return emailJSON{
		ID:       m.Message.ID,
		ThreadID: m.Message.ThreadID,
		Snippet:  m.Message.Snippet,
		Subject:  m.Message.Subject,
		Sender:   m.Message.Sender,
		Date:     m.Message.RawDate,
		Category: string(m.Classification.Category),
		Labels:   m.Classification.LabelStrings(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.auth.LoginURL(), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("error") {
		s.redirectFrontend(w, r, "/login", "error", "access_denied")
		return
	}
	code := q.Get("code")
	if code == "" {
		s.redirectFrontend(w, r, "/login", "error", "no_code")
		return
	}

	id, err := s.auth.Complete(r.Context(), q.Get("state"), code)
	if err != nil {
		common.Logger(r.Context()).Warn("OAuth callback failed", "error", err)
		s.redirectFrontend(w, r, "/login", "error", "token_exchange_failed")
		return
	}

	s.redirectFrontend(w, r, "/home", "token", id)
}

func (s *Server) redirectFrontend(w http.ResponseWriter, r *http.Request, path, key, value string) {
	target := s.frontendURL + path + "?" + url.Values{key: {value}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	cred, err := s.auth.Session(r.Context(), bearerToken(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": cred.Email})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		common.Logger(r.Context()).Warn("Logout failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) inboxFor(r *http.Request) (*inbox.Service, error) {
	src, err := s.sources(r.Context(), bearerToken(r))
	if err != nil {
		return nil, err
	}
	return inbox.New(src, s.classifier, s.metrics), nil
}

func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	opts := service.ListOptions{Query: r.URL.Query().Get("q")}
	if raw := r.URL.Query().Get("maxResults"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("maxResults must be an integer"))
			return
		}
		opts.MaxResults = n
	}

	svc, err := s.inboxFor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msgs, err := svc.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	emails := make([]emailJSON, 0, len(msgs))
	for _, m := range msgs {
		emails = append(emails, toEmailJSON(m))
	}
	writeJSON(w, http.StatusOK, map[string][]emailJSON{"emails": emails})
}

func (s *Server) handleGetEmail(w http.ResponseWriter, r *http.Request) {
	svc, err := s.inboxFor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	labelIDs := msg.Message.LabelIDs
	if labelIDs == nil {
		labelIDs = []string{}
	}
	writeJSON(w, http.StatusOK, emailDetailJSON{
		emailJSON: toEmailJSON(*msg),
		Body:      msg.Message.Body,
		LabelIDs:  labelIDs,
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxClassifyBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	c := s.classifier.Classify(req.Subject, req.Sender, req.Snippet)
	s.metrics.RecordClassified(c.Category)

	signals := c.Signals
	if signals == nil {
		signals = []model.Signal{}
	}
	writeJSON(w, http.StatusOK, classifyResponse{
		Category: c.Category,
		Labels:   c.Labels,
		Signals:  signals,
	})
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	cfg := s.classifier.Rules()
	writeJSON(w, http.StatusOK, rulesResponse{
		Rules:      cfg,
		Categories: cfg.CategoryOrder(),
	})
}

// writeError maps domain errors to status codes. Unexpected errors are logged and
// reported with their message, as the web client shows it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrNotAuthenticated), errors.Is(err, common.ErrSessionExpired):
		writeJSON(w, http.StatusUnauthorized, errorBody("Not authenticated"))
	case errors.Is(err, common.ErrMessageNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("Message not found"))
	default:
		common.Logger(r.Context()).Error("Request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody(err.Error()))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		common.LogError(err, "Failed to encode response", nil)
	}
}
