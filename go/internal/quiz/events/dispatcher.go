package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type DispatcherConfig struct {
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	// DrainTimeout bounds the flush of queued events on shutdown
	DrainTimeout time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BufferSize:   256,
		MaxRetries:   5,
		RetryDelay:   200 * time.Millisecond,
		DrainTimeout: 5 * time.Second,
	}
}

// Dispatcher publishes events from a queue so that room goroutines never wait
// on the broker.
type Dispatcher struct {
	publisher Publisher
	clock     clockwork.Clock
	cfg       DispatcherConfig
	queue     chan Event

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func NewDispatcher(publisher Publisher, clock clockwork.Clock, cfg DispatcherConfig) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultDispatcherConfig().BufferSize
	}
	return &Dispatcher{
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		queue:     make(chan Event, cfg.BufferSize),
	}
}

// Emit queues an event. It never blocks; events are dropped when the queue is full.
func (d *Dispatcher) Emit(eventType EventType, roomID string, payload any) {
	event, err := NewEvent(eventType, roomID, payload, d.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}

	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		log.Warn().
			Str("room_id", roomID).
			Str("event_type", string(eventType)).
			Msg("event queue full, dropping event")
	}
}

// OnRoomRemoved publishes RoomClosed for every room the manager drops.
func (d *Dispatcher) OnRoomRemoved(roomID string) {
	d.Emit(EventTypeRoomClosed, roomID, RoomClosedPayload{})
}

// Start publishes queued events until ctx is cancelled, then flushes what is left.
func (d *Dispatcher) Start(ctx context.Context) {
	log.Info().Msg("event dispatcher started")

	for {
		select {
		case <-ctx.Done():
			d.drain()
			log.Info().Msg("event dispatcher stopped")
			return
		case event := <-d.queue:
			d.publish(ctx, event)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DrainTimeout)
	defer cancel()

	for {
		select {
		case event := <-d.queue:
			d.publish(ctx, event)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, event Event) {
	if err := d.publishWithRetry(ctx, event); err != nil {
		d.failed.Add(1)
		log.Error().
			Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.Type)).
			Str("room_id", event.RoomID).
			Msg("failed to publish event")
		return
	}
	d.published.Add(1)
}

// publishWithRetry attempts to publish an event with a linear backoff.
func (d *Dispatcher) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error

	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 && d.cfg.RetryDelay > 0 {
			delay := d.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.clock.After(delay):
			}
		}

		err := d.publisher.Publish(ctx, event)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Str("event_id", event.ID.String()).
			Msg("publish attempt failed")
	}

	return fmt.Errorf("after %d attempts: %w", d.cfg.MaxRetries+1, lastErr)
}

// Stats returns the number of published, failed and dropped events.
func (d *Dispatcher) Stats() (published, failed, dropped uint64) {
	return d.published.Load(), d.failed.Load(), d.dropped.Load()
}
