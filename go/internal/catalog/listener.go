package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ChangeListenerConfig configures the LISTEN connection used to invalidate
// the Postgres store cache.
type ChangeListenerConfig struct {
	DatabaseURL   string
	NotifyChannel string
	PingInterval  time.Duration
}

func DefaultChangeListenerConfig() ChangeListenerConfig {
	return ChangeListenerConfig{
		NotifyChannel: "quizhub_games_changed",
		PingInterval:  90 * time.Second,
	}
}

// ChangeListener invalidates cached games when the games table notifies a change.
type ChangeListener struct {
	store    *PostgresStore
	listener *pq.Listener
	cfg      ChangeListenerConfig
}

func NewChangeListener(store *PostgresStore, cfg ChangeListenerConfig) (*ChangeListener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("catalog listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", cfg.NotifyChannel).Msg("listening for catalog changes")

	return &ChangeListener{store: store, listener: l, cfg: cfg}, nil
}

// Start blocks until ctx is cancelled.
func (c *ChangeListener) Start(ctx context.Context) error {
	pingTicker := time.NewTicker(c.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("catalog listener shutting down")
			return c.listener.Close()
		case note := <-c.listener.Notify:
			if note == nil {
				// Notifications may have been missed while reconnecting.
				c.store.Invalidate("")
				continue
			}
			c.store.Invalidate(note.Extra)
			log.Debug().Str("game_id", note.Extra).Msg("catalog cache invalidated")
		case <-pingTicker.C:
			if err := c.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping catalog listener")
			}
		}
	}
}
