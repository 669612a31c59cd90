package hub

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/planningpoker/backend/internal/session"
)

// recvEvent receives one event with a timeout so tests never hang.
func recvEvent(t *testing.T, sub *Subscriber, within time.Duration) session.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(within):
		t.Fatalf("timed out waiting for event")
		return session.Event{} // unreachable
	}
}

func recvNoEvent(t *testing.T, sub *Subscriber, within time.Duration) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("expected no event within %v, got %+v", within, ev)
	case <-time.After(within):
	}
}

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	a := h.Subscribe("AB12")
	b := h.Subscribe("AB12")
	other := h.Subscribe("ZZ99")

	h.Publish("AB12", session.Event{Type: session.EvtVoteCast, Code: "AB12"})

	assert.Equal(t, session.EvtVoteCast, recvEvent(t, a, time.Second).Type)
	assert.Equal(t, session.EvtVoteCast, recvEvent(t, b, time.Second).Type)
	recvNoEvent(t, other, 50*time.Millisecond)
}

func TestPublish_NoSubscribersIsSilent(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	// must not panic or error
	h.Publish("NONE", session.Event{Type: session.EvtRevealed})
}

func TestPublish_NoBacklogForLateSubscribers(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	early := h.Subscribe("AB12")
	h.Publish("AB12", session.Event{Type: session.EvtParticipantJoined})

	late := h.Subscribe("AB12")
	recvNoEvent(t, late, 50*time.Millisecond)
	_ = recvEvent(t, early, time.Second)
}

func TestPublish_PerCodeOrdering(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	sub := h.Subscribe("AB12")

	const n = subscriberBuffer
	for i := 0; i < n; i++ {
		h.Publish("AB12", session.Event{Type: session.EvtVoteCast, Participant: fmt.Sprintf("P%d", i)})
	}
	for i := 0; i < n; i++ {
		ev := recvEvent(t, sub, time.Second)
		assert.Equal(t, fmt.Sprintf("P%d", i), ev.Participant)
	}
}

func TestPublish_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	slow := h.Subscribe("AB12")
	fast := h.Subscribe("AB12")

	// overflow the slow subscriber's buffer without draining it
	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish("AB12", session.Event{Type: session.EvtVoteCast, Participant: fmt.Sprintf("P%d", i)})
	}

	// fast subscriber still gets its buffer's worth; slow lost the overflow
	for i := 0; i < subscriberBuffer; i++ {
		<-fast.Events()
	}
	drained := 0
	for {
		select {
		case <-slow.Events():
			drained++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriberBuffer, drained)
}

func TestUnsubscribe_IsIdempotent(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	sub := h.Subscribe("AB12")

	h.Unsubscribe("AB12", sub)
	h.Unsubscribe("AB12", sub) // second call must be a no-op

	select {
	case <-sub.Done():
	default:
		t.Fatal("done channel not closed after unsubscribe")
	}

	h.Publish("AB12", session.Event{Type: session.EvtVoteCast})
	recvNoEvent(t, sub, 50*time.Millisecond)
}

func TestUnsubscribe_DuringPublishStorm(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	sub := h.Subscribe("AB12")

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				h.Publish("AB12", session.Event{Type: session.EvtVoteCast})
			}
		}
	}()

	time.Sleep(5 * time.Millisecond)
	h.Unsubscribe("AB12", sub)
	close(stop)
	wg.Wait()

	// Buffered hand-offs from before the unsubscribe may remain; what matters
	// is that nothing panicked and the handle is detached.
	assert.Zero(t, h.Subscribers("AB12"))
}

func TestDrop_WakesSubscribers(t *testing.T) {
	h := New(zaptest.NewLogger(t))
	sub := h.Subscribe("AB12")

	h.Drop("AB12")
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel not closed by drop")
	}
	assert.Zero(t, h.Subscribers("AB12"))

	h.Drop("AB12") // dropping an unknown code is harmless
}
