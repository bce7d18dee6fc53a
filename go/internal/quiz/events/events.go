package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/quizhub/go/internal/models"
)

// EventType names a room lifecycle event published on the bus.
type EventType string

const (
	EventTypeRoomCreated EventType = "RoomCreated"
	EventTypeGameStarted EventType = "GameStarted"
	EventTypeGameOver    EventType = "GameOver"
	EventTypeRoomClosed  EventType = "RoomClosed"
)

// Event is a room lifecycle event.
type Event struct {
	ID        uuid.UUID
	Type      EventType
	RoomID    string
	Timestamp time.Time
	Payload   json.RawMessage
}

// Publisher delivers events to the outside world.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type RoomCreatedPayload struct {
	GameID    string `json:"gameId"`
	GameTitle string `json:"gameTitle"`
}

type GameStartedPayload struct {
	GameID  string `json:"gameId"`
	Players int    `json:"players"`
}

// GameOverPayload carries the final leaderboard.
type GameOverPayload = models.GameResult

type RoomClosedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewEvent marshals payload into an event stamped at at.
func NewEvent(eventType EventType, roomID string, payload any, at time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		RoomID:    roomID,
		Timestamp: at.UTC(),
		Payload:   data,
	}, nil
}

// envelope is the wire format shared by the publisher and the consumers.
type envelope struct {
	EventID   string          `json:"eventId"`
	EventType EventType       `json:"eventType"`
	RoomID    string          `json:"roomId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

func encodeEnvelope(event Event) ([]byte, error) {
	return json.Marshal(envelope{
		EventID:   event.ID.String(),
		EventType: event.Type,
		RoomID:    event.RoomID,
		Timestamp: event.Timestamp,
		Payload:   event.Payload,
	})
}

func decodeEnvelope(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return Event{}, fmt.Errorf("parse event ID: %w", err)
	}
	return Event{
		ID:        id,
		Type:      env.EventType,
		RoomID:    env.RoomID,
		Timestamp: env.Timestamp,
		Payload:   env.Payload,
	}, nil
}
