// Package session implements the voting state machine for one estimation
// session. A session is OPEN while votes are being cast, REVEALED once votes
// are exposed, and returns to OPEN when the round is reset. Vote values stay
// hidden while OPEN; external rendering goes through Snapshot, which strips
// values until the reveal.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/planningpoker/backend/internal/deck"
)

var ErrNotAParticipant = errors.New("not a participant")
var ErrInvalidEstimate = errors.New("estimate is not in the deck")
var ErrIllegalTransition = errors.New("illegal state transition")
var ErrNothingToReveal = fmt.Errorf("%w: no votes cast", ErrIllegalTransition)

type EventType string

const (
	EvtParticipantJoined EventType = "ParticipantJoined"
	EvtParticipantLeft   EventType = "ParticipantLeft"
	EvtVoteCast          EventType = "VoteCast"
	EvtRevealed          EventType = "Revealed"
	EvtRoundReset        EventType = "RoundReset"
	EvtChatMessage       EventType = "ChatMessage"
)

// Event is one state change, shaped for direct fan-out to observers. While
// the session is OPEN an event only ever carries vote presence (Voted); the
// Votes mapping appears exclusively on Revealed events.
type Event struct {
	Type        EventType             `json:"type"`
	Code        string                `json:"code"`
	Participant string                `json:"participant,omitempty"`
	Voted       []string              `json:"voted,omitempty"`
	Votes       map[string]deck.Value `json:"votes,omitempty"`
	Message     string                `json:"message,omitempty"`
}

// Session is one estimation round-table. All mutable state is guarded by mu;
// sessions for different codes never share locks.
type Session struct {
	code        string
	name        string
	description string
	author      string
	deck        deck.Deck
	created     time.Time

	mu           sync.Mutex
	participants map[string]struct{}
	votes        map[string]deck.Value
	revealed     bool
	lastActive   time.Time
}

// New creates an OPEN session. The code is immutable once assigned; the
// registry is responsible for its uniqueness.
func New(code, name, description, author string, d deck.Deck) *Session {
	now := time.Now()
	return &Session{
		code:         code,
		name:         name,
		description:  description,
		author:       author,
		deck:         d,
		created:      now,
		participants: make(map[string]struct{}),
		votes:        make(map[string]deck.Value),
		lastActive:   now,
	}
}

func (s *Session) Code() string         { return s.code }
func (s *Session) Name() string         { return s.name }
func (s *Session) Description() string  { return s.description }
func (s *Session) Author() string       { return s.author }
func (s *Session) Deck() deck.Deck      { return s.deck }
func (s *Session) CreatedAt() time.Time { return s.created }

// LastActive reports when the session last accepted an operation. The
// registry's idle sweep reads it; any accepted mutation refreshes it.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Join adds a participant. Re-joining is a no-op beyond refreshing liveness;
// the second return reports whether the participant was actually added, so
// callers only publish ParticipantJoined once per identity.
func (s *Session) Join(participant string) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
	if _, ok := s.participants[participant]; ok {
		return Event{}, false
	}
	s.participants[participant] = struct{}{}
	return Event{Type: EvtParticipantJoined, Code: s.code, Participant: participant}, true
}

// Leave removes a participant and any vote they cast.
func (s *Session) Leave(participant string) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[participant]; !ok {
		return Event{}, false
	}
	s.lastActive = time.Now()
	delete(s.participants, participant)
	delete(s.votes, participant)
	return Event{Type: EvtParticipantLeft, Code: s.code, Participant: participant}, true
}

// Vote records or overwrites a participant's estimate. Only legal while OPEN;
// the emitted event exposes who has voted, never the values.
func (s *Session) Vote(participant string, v deck.Value) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revealed {
		return Event{}, fmt.Errorf("%w: votes are revealed", ErrIllegalTransition)
	}
	if _, ok := s.participants[participant]; !ok {
		return Event{}, ErrNotAParticipant
	}
	if !s.deck.Contains(v) {
		return Event{}, fmt.Errorf("%w: %s", ErrInvalidEstimate, v)
	}
	s.lastActive = time.Now()
	s.votes[participant] = v
	return Event{
		Type:        EvtVoteCast,
		Code:        s.code,
		Participant: participant,
		Voted:       s.votedLocked(),
	}, nil
}

// Reveal exposes all cast votes and freezes voting until Reset.
func (s *Session) Reveal() (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revealed {
		return Event{}, fmt.Errorf("%w: already revealed", ErrIllegalTransition)
	}
	if len(s.votes) == 0 {
		return Event{}, ErrNothingToReveal
	}
	s.lastActive = time.Now()
	s.revealed = true
	return Event{Type: EvtRevealed, Code: s.code, Votes: s.votesLocked()}, nil
}

// Reset clears votes and starts a new OPEN round. Participants are kept.
func (s *Session) Reset() (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.revealed {
		return Event{}, fmt.Errorf("%w: round is still open", ErrIllegalTransition)
	}
	s.lastActive = time.Now()
	s.revealed = false
	s.votes = make(map[string]deck.Value)
	return Event{Type: EvtRoundReset, Code: s.code}, nil
}

// Chat builds a chat event on behalf of a joined participant. Chat does not
// touch voting state beyond liveness.
func (s *Session) Chat(participant, message string) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[participant]; !ok {
		return Event{}, ErrNotAParticipant
	}
	s.lastActive = time.Now()
	return Event{Type: EvtChatMessage, Code: s.code, Participant: participant, Message: message}, nil
}

// View is the externally visible projection of a session. Votes is nil until
// the session is revealed.
type View struct {
	Code         string                `json:"code"`
	Name         string                `json:"name"`
	Description  string                `json:"description,omitempty"`
	Author       string                `json:"author,omitempty"`
	Deck         deck.Deck             `json:"deck"`
	Participants []string              `json:"participants"`
	Voted        []string              `json:"voted"`
	Votes        map[string]deck.Value `json:"votes,omitempty"`
	Revealed     bool                  `json:"revealed"`
	CreatedAt    time.Time             `json:"created_at"`
}

// Snapshot returns the current projection.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Code:         s.code,
		Name:         s.name,
		Description:  s.description,
		Author:       s.author,
		Deck:         s.deck,
		Participants: make([]string, 0, len(s.participants)),
		Voted:        s.votedLocked(),
		Revealed:     s.revealed,
		CreatedAt:    s.created,
	}
	for p := range s.participants {
		v.Participants = append(v.Participants, p)
	}
	sort.Strings(v.Participants)
	if s.revealed {
		v.Votes = s.votesLocked()
	}
	return v
}

func (s *Session) votedLocked() []string {
	voted := make([]string, 0, len(s.votes))
	for p := range s.votes {
		voted = append(voted, p)
	}
	sort.Strings(voted)
	return voted
}

func (s *Session) votesLocked() map[string]deck.Value {
	votes := make(map[string]deck.Value, len(s.votes))
	for p, v := range s.votes {
		votes[p] = v
	}
	return votes
}
