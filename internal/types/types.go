package types

import "github.com/planningpoker/backend/internal/session"

// ClientMessage is what a websocket client sends over an open subscription.
type ClientMessage struct {
	Type    string `json:"type"`              // "Vote" | "Reveal" | "Reset" | "Chat" | "Leave"
	Value   string `json:"value,omitempty"`   // estimate token, Vote only
	Message string `json:"message,omitempty"` // Chat only
}

// ServerMessage is the envelope pushed to websocket clients.
type ServerMessage struct {
	Type  string         `json:"type"` // "Snapshot" | "Event" | "Error"
	View  *session.View  `json:"view,omitempty"`
	Event *session.Event `json:"event,omitempty"`
	Error string         `json:"error,omitempty"`
}
