package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizhub/go/internal/models"
)

// ResultRecorder stores finished games.
type ResultRecorder interface {
	Record(ctx context.Context, result models.GameResult) error
}

// ConsumerConfig holds configuration for the history consumer
type ConsumerConfig struct {
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
}

func DefaultConsumerConfig() ConsumerConfig {
	js := DefaultJetStreamConfig()
	return ConsumerConfig{
		StreamName:    js.StreamName,
		ConsumerName:  "quizhub-history",
		SubjectFilter: js.Subject(EventTypeGameOver),
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
	}
}

// HistoryConsumer records every GameOver event in the history store.
type HistoryConsumer struct {
	js       jetstream.JetStream
	consumer jetstream.Consumer
	recorder ResultRecorder
	config   ConsumerConfig
}

func NewHistoryConsumer(ctx context.Context, js jetstream.JetStream, recorder ResultRecorder, config ConsumerConfig) (*HistoryConsumer, error) {
	hc := &HistoryConsumer{js: js, recorder: recorder, config: config}
	if err := hc.ensureConsumer(ctx); err != nil {
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return hc, nil
}

func (hc *HistoryConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := hc.js.Stream(ctx, hc.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          hc.config.ConsumerName,
		Durable:       hc.config.ConsumerName,
		Description:   "Quiz game history recorder",
		FilterSubject: hc.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    hc.config.MaxDeliver,
		AckWait:       hc.config.AckWait,
		MaxAckPending: hc.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", hc.config.ConsumerName).
		Str("stream", hc.config.StreamName).
		Msg("JetStream consumer ready")

	hc.consumer = consumer
	return nil
}

// Start consumes until ctx is cancelled.
func (hc *HistoryConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", hc.config.ConsumerName).
		Str("stream", hc.config.StreamName).
		Msg("starting history consumer")

	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := hc.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("history consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := hc.handle(ctx, msg.Data()); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
				if nakErr := msg.Nak(); nakErr != nil {
					log.Error().Err(nakErr).Msg("failed to NAK message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

// handle decodes a GameOver envelope and records its result. Other event
// types are acknowledged without effect.
func (hc *HistoryConsumer) handle(ctx context.Context, data []byte) error {
	event, err := decodeEnvelope(data)
	if err != nil {
		return err
	}
	if event.Type != EventTypeGameOver {
		log.Debug().Str("event_type", string(event.Type)).Msg("history consumer skipping event")
		return nil
	}

	var result GameOverPayload
	if err := json.Unmarshal(event.Payload, &result); err != nil {
		return fmt.Errorf("unmarshal game over payload: %w", err)
	}
	if result.RoomID == "" {
		result.RoomID = event.RoomID
	}

	if err := hc.recorder.Record(ctx, result); err != nil {
		return fmt.Errorf("record result: %w", err)
	}

	log.Info().
		Str("event_id", event.ID.String()).
		Str("room_id", event.RoomID).
		Msg("game result recorded")
	return nil
}
