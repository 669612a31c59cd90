// Package registry owns the code->session mapping. It is the only component
// allowed to create or evict sessions, and it guarantees code uniqueness by
// making the free-check and the insert a single step under its lock.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/planningpoker/backend/internal/code"
	"github.com/planningpoker/backend/internal/deck"
	"github.com/planningpoker/backend/internal/metrics"
	"github.com/planningpoker/backend/internal/session"
)

var ErrNotFound = errors.New("session not found")
var ErrCodeSpaceExhausted = errors.New("code space exhausted")

// createAttempts bounds the uniqueness retry loop. At the default code length
// the alphabet gives 62^6 codes, so hitting the bound means something is
// deeply wrong, not that the space is actually full.
const createAttempts = 100

// newCode is swapped out by tests to force collisions.
var newCode = code.New

// Archiver observes session lifecycle for durable bookkeeping. Archive
// failures never fail the engine path; they are logged and dropped.
type Archiver interface {
	SaveSession(v session.View) error
	DeleteSession(code string) error
}

type Config struct {
	CodeLength    int
	IdleTTL       time.Duration
	SweepInterval time.Duration
	// OnEvict runs after a session leaves the map, for both explicit removal
	// and idle sweeps. Used to tear down the session's broadcast topic.
	OnEvict func(code string)
}

type Registry struct {
	log     *zap.Logger
	cfg     Config
	archive Archiver // may be nil

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func New(cfg Config, log *zap.Logger, archive Archiver) *Registry {
	if cfg.CodeLength < code.MinLength || cfg.CodeLength > code.MaxLength {
		cfg.CodeLength = 6
	}
	if cfg.IdleTTL == 0 {
		cfg.IdleTTL = 4 * time.Hour
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	return &Registry{
		log:      log,
		cfg:      cfg,
		archive:  archive,
		sessions: make(map[string]*session.Session),
	}
}

// Create parses the estimate spec, allocates a free code and registers a new
// session under it. The code returned is visible to Exists/Get before Create
// returns.
func (r *Registry) Create(name, description, author, estimates string) (*session.Session, error) {
	d, err := deck.Parse(estimates)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < createAttempts; attempt++ {
		c, err := newCode(r.cfg.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("generating session code: %w", err)
		}
		r.mu.Lock()
		if _, taken := r.sessions[c]; taken {
			r.mu.Unlock()
			metrics.CodeCollisions.Inc()
			continue
		}
		s := session.New(c, name, description, author, d)
		r.sessions[c] = s
		live := len(r.sessions)
		r.mu.Unlock()

		metrics.SessionsCreated.Inc()
		metrics.SessionsLive.Set(float64(live))
		r.log.Info("session created",
			zap.String("code", c),
			zap.String("name", name),
			zap.Int("deck_size", len(d)))

		if r.archive != nil {
			if err := r.archive.SaveSession(s.Snapshot()); err != nil {
				r.log.Warn("archiving session failed", zap.String("code", c), zap.Error(err))
			}
		}
		return s, nil
	}
	return nil, ErrCodeSpaceExhausted
}

// Exists reports whether a live session is registered under code.
func (r *Registry) Exists(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[code]
	return ok
}

// Get returns the session registered under code, or ErrNotFound.
func (r *Registry) Get(code string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[code]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove evicts a session. Codes are never reassigned to a different session;
// a removed code simply stops resolving.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	_, ok := r.sessions[code]
	delete(r.sessions, code)
	live := len(r.sessions)
	r.mu.Unlock()
	if ok {
		metrics.SessionsLive.Set(float64(live))
		r.log.Info("session removed", zap.String("code", code))
		if r.cfg.OnEvict != nil {
			r.cfg.OnEvict(code)
		}
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Run sweeps idle sessions until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.cfg.IdleTTL)
	var stale []string
	r.mu.RLock()
	for c, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, c)
		}
	}
	r.mu.RUnlock()
	for _, c := range stale {
		r.Remove(c)
		r.log.Info("idle session swept", zap.String("code", c))
	}
}
