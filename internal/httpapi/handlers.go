package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/planningpoker/backend/internal/deck"
	"github.com/planningpoker/backend/internal/hub"
	"github.com/planningpoker/backend/internal/metrics"
	"github.com/planningpoker/backend/internal/once"
	"github.com/planningpoker/backend/internal/registry"
	"github.com/planningpoker/backend/internal/session"
	"github.com/planningpoker/backend/internal/store"
)

// API wires the engine to HTTP. It is the composition point: the registry and
// the hub never call each other, every accepted mutation passes through here
// and is published to the hub.
type API struct {
	log         *zap.Logger
	reg         *registry.Registry
	hub         *hub.Hub
	archive     *store.Store // nil disables listing; engine paths ignore it
	defaultDeck string
	publicURL   string
	baseURL     once.Guard[string]
}

func New(log *zap.Logger, reg *registry.Registry, h *hub.Hub, archive *store.Store, defaultDeck, publicURL string) *API {
	return &API{
		log:         log,
		reg:         reg,
		hub:         h,
		archive:     archive,
		defaultDeck: defaultDeck,
		publicURL:   publicURL,
	}
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Estimates   string `json:"estimates"`
}

type createResponse struct {
	Code string    `json:"code"`
	URL  string    `json:"url"`
	Deck deck.Deck `json:"deck"`
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	estimates := req.Estimates
	if strings.TrimSpace(estimates) == "" {
		estimates = a.defaultDeck
	}
	s, err := a.reg.Create(req.Name, req.Description, participantID(r), estimates)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createResponse{
		Code: s.Code(),
		URL:  a.sessionURL(r, s.Code()),
		Deck: s.Deck(),
	})
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.reg.Get(chi.URLParam(r, "code"))
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (a *API) sessionExists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Exists bool `json:"exists"`
	}{Exists: a.reg.Exists(chi.URLParam(r, "code"))})
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	a.reg.Remove(code)
	if a.archive != nil {
		if err := a.archive.DeleteSession(code); err != nil {
			a.log.Warn("archive delete failed", zap.String("code", code), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) join(w http.ResponseWriter, r *http.Request) {
	s, participant, ok := a.resolve(w, r)
	if !ok {
		return
	}
	if ev, joined := s.Join(participant); joined {
		a.hub.Publish(s.Code(), ev)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) leave(w http.ResponseWriter, r *http.Request) {
	s, participant, ok := a.resolve(w, r)
	if !ok {
		return
	}
	if ev, left := s.Leave(participant); left {
		a.hub.Publish(s.Code(), ev)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) vote(w http.ResponseWriter, r *http.Request) {
	s, participant, ok := a.resolve(w, r)
	if !ok {
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	v, err := deck.ParseValue(req.Value)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("bad estimate: %v", err))
		return
	}
	ev, err := s.Vote(participant, v)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	metrics.VotesCast.Inc()
	a.hub.Publish(s.Code(), ev)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) reveal(w http.ResponseWriter, r *http.Request) {
	s, err := a.reg.Get(chi.URLParam(r, "code"))
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	ev, err := s.Reveal()
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	a.hub.Publish(s.Code(), ev)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) reset(w http.ResponseWriter, r *http.Request) {
	s, err := a.reg.Get(chi.URLParam(r, "code"))
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	ev, err := s.Reset()
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	a.hub.Publish(s.Code(), ev)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) chat(w http.ResponseWriter, r *http.Request) {
	s, participant, ok := a.resolve(w, r)
	if !ok {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	ev, err := s.Chat(participant, req.Message)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	a.hub.Publish(s.Code(), ev)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listSessions(w http.ResponseWriter, r *http.Request) {
	if a.archive == nil {
		writeError(w, http.StatusNotImplemented, "session archive is not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	var (
		recs []store.Record
		err  error
	)
	if author := r.URL.Query().Get("author"); author != "" {
		recs, err = a.archive.ListByAuthor(author, limit)
	} else {
		recs, err = a.archive.ListRecent(limit)
	}
	if err != nil {
		a.log.Error("listing archived sessions failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "archive unavailable")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// resolve looks up the session and the caller's participant identity; on
// failure the response has already been written.
func (a *API) resolve(w http.ResponseWriter, r *http.Request) (*session.Session, string, bool) {
	s, err := a.reg.Get(chi.URLParam(r, "code"))
	if err != nil {
		a.writeEngineError(w, err)
		return nil, "", false
	}
	participant := participantID(r)
	if participant == "" {
		writeError(w, http.StatusBadRequest, "missing X-Participant-ID")
		return nil, "", false
	}
	return s, participant, true
}

// participantID extracts the opaque caller identity. Identity provisioning is
// an outer-layer concern; the engine just needs a stable string.
func participantID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Participant-ID"))
}

// sessionURL builds the shareable link for a code. When PUBLIC_URL is not
// configured the externally visible base is latched from the first request,
// once, no matter how many requests race here.
func (a *API) sessionURL(r *http.Request, code string) string {
	base, err := a.baseURL.Ensure(func() (string, error) {
		if a.publicURL != "" {
			return strings.TrimSuffix(a.publicURL, "/"), nil
		}
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if r.Host == "" {
			return "", errors.New("request has no host")
		}
		return scheme + "://" + r.Host, nil
	})
	if err != nil {
		a.log.Warn("cannot determine public base URL", zap.Error(err))
		return "/session/" + code
	}
	return base + "/session/" + code
}

func (a *API) writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, deck.ErrInvalidDeck):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotAParticipant):
		return http.StatusForbidden
	case errors.Is(err, session.ErrInvalidEstimate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrIllegalTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
