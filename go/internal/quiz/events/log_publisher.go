package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.Type)).
		Str("room_id", event.RoomID).
		RawJSON("payload", event.Payload).
		Msg("room event")
	return nil
}
