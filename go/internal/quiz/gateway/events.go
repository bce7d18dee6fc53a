package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/quizhub/go/internal/models"
)

// RoomEvent is the envelope of every message pushed to a room's sockets.
type RoomEvent struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventType names an outbound room event.
type EventType string

const (
	EventTypeStateChange EventType = "state_change"
	EventTypeTimeTick    EventType = "time"
	EventTypeChat        EventType = "chat"
	EventTypeJoined      EventType = "joined"
	EventTypePlayers     EventType = "players"
	EventTypeLobby       EventType = "lobby"
	EventTypeHistogram   EventType = "histogram"
	EventTypeScores      EventType = "scores"
	EventTypeGrading     EventType = "grading"
	EventTypeBanned      EventType = "banned"
	EventTypeRoomClosed  EventType = "room_closed"
	EventTypeError       EventType = "error"
)

// StateChange announces a new room state. Payload is the redacted question,
// the correct choice vector, the leaderboard or nothing, depending on state.
type StateChange struct {
	State   string `json:"state"`
	Payload any    `json:"payload,omitempty"`
}

// NewRoomEvent marshals payload into a fresh envelope.
func NewRoomEvent(roomID string, eventType EventType, payload any, at time.Time) (*RoomEvent, error) {
	event := &RoomEvent{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Type:      eventType,
		Timestamp: at,
	}
	if payload == nil {
		return event, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	event.Data = data
	return event, nil
}

// Action names an inbound client command.
type Action string

const (
	ActionHost   Action = "host"
	ActionJoin   Action = "join"
	ActionLeave  Action = "leave"
	ActionBan    Action = "ban"
	ActionLock   Action = "lock"
	ActionStart  Action = "start"
	ActionSubmit Action = "submit"
	ActionPause  Action = "pause"
	ActionPanic  Action = "panic"
	ActionGrade  Action = "grade"
	ActionNext   Action = "next"
	ActionChat   Action = "chat"
)

// ClientMessage is a command received from a socket.
type ClientMessage struct {
	Action  Action         `json:"action"`
	Name    string         `json:"name,omitempty"`
	Message string         `json:"message,omitempty"`
	Choices []bool         `json:"choices,omitempty"`
	Text    string         `json:"text,omitempty"`
	Grades  map[string]int `json:"grades,omitempty"`
}

// ActionRouter receives the commands and disconnections of every socket.
type ActionRouter interface {
	HandleAction(roomID, userID string, msg ClientMessage)
	HandleDisconnect(roomID, userID string)
}

// JoinedPayload is sent to a socket once its join or host command succeeded.
type JoinedPayload struct {
	UserID  string               `json:"userId"`
	Name    string               `json:"name"`
	RoomID  string               `json:"roomId"`
	IsHost  bool                 `json:"isHost"`
	Title   string               `json:"title"`
	History []models.ChatMessage `json:"history"`
}

// ErrorPayload reports a rejected command to the sender.
type ErrorPayload struct {
	Action  Action `json:"action,omitempty"`
	Message string `json:"message"`
}
