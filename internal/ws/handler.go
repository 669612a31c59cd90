// Package ws exposes a session's live event stream over a websocket and
// accepts vote/reveal/reset/chat commands on the same connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/planningpoker/backend/internal/deck"
	"github.com/planningpoker/backend/internal/hub"
	"github.com/planningpoker/backend/internal/metrics"
	"github.com/planningpoker/backend/internal/registry"
	"github.com/planningpoker/backend/internal/session"
	"github.com/planningpoker/backend/internal/types"
)

const writeTimeout = 3 * time.Second

func Handler(log *zap.Logger, reg *registry.Registry, h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		s, err := reg.Get(code)
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		// Authenticated callers bring their own identity; everyone else gets
		// an anonymous per-connection token.
		participant := r.URL.Query().Get("participant")
		if participant == "" {
			participant = "anon-" + uuid.NewString()[:8]
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		sub := h.Subscribe(code)
		defer h.Unsubscribe(code, sub)

		if ev, joined := s.Join(participant); joined {
			h.Publish(code, ev)
		}
		defer func() {
			if ev, left := s.Leave(participant); left {
				h.Publish(code, ev)
			}
		}()

		log.Info("observer connected",
			zap.String("code", code),
			zap.String("participant", participant))

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go writer(writeCtx, conn, s, sub)

		reader(r.Context(), log, conn, s, h, participant)
	}
}

// writer pushes the current snapshot, then relays events until the
// subscription or the connection dies.
func writer(ctx context.Context, conn *websocket.Conn, s *session.Session, sub *hub.Subscriber) {
	view := s.Snapshot()
	if !write(ctx, conn, types.ServerMessage{Type: "Snapshot", View: &view}) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case ev := <-sub.Events():
			if !write(ctx, conn, types.ServerMessage{Type: "Event", Event: &ev}) {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) bool {
	payload, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload) == nil
}

func reader(ctx context.Context, log *zap.Logger, conn *websocket.Conn, s *session.Session, h *hub.Hub, participant string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				log.Debug("websocket read ended", zap.Error(err))
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			writeErr(ctx, conn, "bad json")
			continue
		}

		ev, err := apply(s, participant, cm)
		if err != nil {
			writeErr(ctx, conn, err.Error())
			continue
		}
		if cm.Type == "Leave" {
			return // deferred leave publishes the event
		}
		if cm.Type == "Vote" {
			metrics.VotesCast.Inc()
		}
		h.Publish(s.Code(), ev)
	}
}

func apply(s *session.Session, participant string, cm types.ClientMessage) (session.Event, error) {
	switch cm.Type {
	case "Vote":
		v, err := deck.ParseValue(cm.Value)
		if err != nil {
			return session.Event{}, err
		}
		return s.Vote(participant, v)
	case "Reveal":
		return s.Reveal()
	case "Reset":
		return s.Reset()
	case "Chat":
		return s.Chat(participant, cm.Message)
	case "Leave":
		return session.Event{}, nil
	default:
		return session.Event{}, errUnknownType
	}
}

var errUnknownType = errors.New("unknown message type")

func writeErr(ctx context.Context, conn *websocket.Conn, msg string) {
	_ = write(ctx, conn, types.ServerMessage{Type: "Error", Error: msg})
}
