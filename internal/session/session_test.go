package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planningpoker/backend/internal/deck"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	d, err := deck.Parse("1,2,3,5,8")
	require.NoError(t, err)
	return New("AB12", "Sprint 14", "backlog grooming", "alice", d)
}

func TestJoin_IsIdempotent(t *testing.T) {
	s := newTestSession(t)

	ev, joined := s.Join("P1")
	require.True(t, joined)
	assert.Equal(t, EvtParticipantJoined, ev.Type)
	assert.Equal(t, "AB12", ev.Code)
	assert.Equal(t, "P1", ev.Participant)

	_, joined = s.Join("P1")
	assert.False(t, joined, "re-join must be a no-op")
	assert.Equal(t, []string{"P1"}, s.Snapshot().Participants)
}

func TestVote_RequiresJoinedParticipant(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Vote("UNKNOWN", 3)
	require.ErrorIs(t, err, ErrNotAParticipant)
}

func TestVote_RejectsValueOutsideDeck(t *testing.T) {
	s := newTestSession(t)
	s.Join("P1")
	_, err := s.Vote("P1", 4)
	require.ErrorIs(t, err, ErrInvalidEstimate)
	assert.Empty(t, s.Snapshot().Voted)
}

func TestVote_ExposesPresenceNotValues(t *testing.T) {
	s := newTestSession(t)
	s.Join("P1")
	s.Join("P2")

	ev, err := s.Vote("P1", 3)
	require.NoError(t, err)
	assert.Equal(t, EvtVoteCast, ev.Type)
	assert.Equal(t, []string{"P1"}, ev.Voted)
	assert.Nil(t, ev.Votes, "vote values must stay hidden while open")

	view := s.Snapshot()
	assert.Equal(t, []string{"P1"}, view.Voted)
	assert.Nil(t, view.Votes)
	assert.False(t, view.Revealed)
}

func TestVote_OverwritesPriorVote(t *testing.T) {
	s := newTestSession(t)
	s.Join("P1")
	_, err := s.Vote("P1", 3)
	require.NoError(t, err)
	_, err = s.Vote("P1", 8)
	require.NoError(t, err)

	ev, err := s.Reveal()
	require.NoError(t, err)
	assert.Equal(t, map[string]deck.Value{"P1": 8}, ev.Votes)
}

func TestReveal_FailsWithNoVotes(t *testing.T) {
	s := newTestSession(t)
	s.Join("P1")
	_, err := s.Reveal()
	require.ErrorIs(t, err, ErrNothingToReveal)
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.False(t, s.Snapshot().Revealed, "failed reveal must leave the round open")
}

func TestReveal_ExposesAllVotes(t *testing.T) {
	s := newTestSession(t)
	s.Join("P1")
	s.Join("P2")
	s.Vote("P1", 3)
	s.Vote("P2", 5)

	ev, err := s.Reveal()
	require.NoError(t, err)
	assert.Equal(t, EvtRevealed, ev.Type)
	assert.Equal(t, map[string]deck.Value{"P1": 3, "P2": 5}, ev.Votes)

	view := s.Snapshot()
	assert.True(t, view.Revealed)
	assert.Equal(t, map[string]deck.Value{"P1": 3, "P2": 5}, view.Votes)
}

func TestVote_AfterRevealIsRejected(t *testing.T) {
	s := newTestSession(t)
	s.Join("P1")
	s.Vote("P1", 3)
	_, err := s.Reveal()
	require.NoError(t, err)

	_, err = s.Vote("P1", 5)
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, map[string]deck.Value{"P1": 3}, s.Snapshot().Votes, "rejected vote must not mutate votes")
}

func TestReset_OnlyLegalWhileRevealed(t *testing.T) {
	s := newTestSession(t)
	s.Join("P1")

	_, err := s.Reset()
	require.ErrorIs(t, err, ErrIllegalTransition)

	s.Vote("P1", 3)
	_, err = s.Reveal()
	require.NoError(t, err)

	ev, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, EvtRoundReset, ev.Type)

	view := s.Snapshot()
	assert.False(t, view.Revealed)
	assert.Empty(t, view.Voted)
	assert.Nil(t, view.Votes)
	assert.Equal(t, []string{"P1"}, view.Participants, "reset keeps participants")

	// a fresh round accepts votes again
	_, err = s.Vote("P1", 5)
	require.NoError(t, err)
}

func TestLeave_DropsVote(t *testing.T) {
	s := newTestSession(t)
	s.Join("P1")
	s.Join("P2")
	s.Vote("P1", 3)
	s.Vote("P2", 5)

	ev, left := s.Leave("P1")
	require.True(t, left)
	assert.Equal(t, EvtParticipantLeft, ev.Type)

	_, left = s.Leave("P1")
	assert.False(t, left)

	view := s.Snapshot()
	assert.Equal(t, []string{"P2"}, view.Participants)
	assert.Equal(t, []string{"P2"}, view.Voted)
}

func TestChat_RequiresParticipant(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Chat("ghost", "hello")
	require.ErrorIs(t, err, ErrNotAParticipant)

	s.Join("P1")
	ev, err := s.Chat("P1", "hello")
	require.NoError(t, err)
	assert.Equal(t, EvtChatMessage, ev.Type)
	assert.Equal(t, "hello", ev.Message)
}

func TestSession_ConcurrentVoters(t *testing.T) {
	s := newTestSession(t)
	ids := []string{"P1", "P2", "P3", "P4", "P5"}
	for _, id := range ids {
		s.Join(id)
	}

	errs := make(chan error, len(ids))
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := s.Vote(id, 3); err != nil {
					errs <- err
					return
				}
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, s.Snapshot().Voted, len(ids))
}
