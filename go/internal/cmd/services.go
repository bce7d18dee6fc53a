package main

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizhub/go/internal/adminrpc"
	"github.com/mcdev12/quizhub/go/internal/catalog"
	"github.com/mcdev12/quizhub/go/internal/dbconfig"
	"github.com/mcdev12/quizhub/go/internal/history"
	"github.com/mcdev12/quizhub/go/internal/quiz/events"
	"github.com/mcdev12/quizhub/go/internal/quiz/gateway"
	"github.com/mcdev12/quizhub/go/internal/quiz/manager"
	"github.com/mcdev12/quizhub/go/internal/quiz/session"
	"github.com/mcdev12/quizhub/go/internal/quiz/timer"
)

type Services struct {
	Catalog     catalog.Store
	Connections *gateway.ConnectionManager
	Manager     *manager.Manager
	Sessions    *session.Service
	Dispatcher  *events.Dispatcher
	History     *history.Repository
	Admin       *adminrpc.Service

	db   *sql.DB
	pool *pgxpool.Pool
	nc   *nats.Conn

	listener *catalog.ChangeListener
	consumer *events.HistoryConsumer

	wg sync.WaitGroup
}

func setupServices(ctx context.Context, cfg *Config) (_ *Services, err error) {
	// Catalog → history → events → sockets → rooms → sessions
	s := &Services{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	clock := clockwork.NewRealClock()

	if err := s.setupCatalog(ctx, cfg); err != nil {
		return nil, err
	}

	if cfg.historyEnabled {
		s.db, err = setupDatabase(ctx, dbconfig.NewConfigFromEnv())
		if err != nil {
			return nil, err
		}
		s.History = history.NewRepository(s.db)
	}

	var publisher events.Publisher = events.LogPublisher{}
	if cfg.natsURL != "" {
		jsConfig := events.DefaultJetStreamConfig()
		jsConfig.URL = cfg.natsURL

		nc, js, err := events.Connect(ctx, jsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		s.nc = nc
		publisher = events.NewJetStreamPublisher(js, jsConfig)

		if s.History != nil {
			s.consumer, err = events.NewHistoryConsumer(ctx, js, s.History, events.DefaultConsumerConfig())
			if err != nil {
				return nil, fmt.Errorf("failed to create history consumer: %w", err)
			}
		}
	}
	s.Dispatcher = events.NewDispatcher(publisher, clock, events.DefaultDispatcherConfig())

	// Without a consumer, results go straight to the repository.
	var recorder session.ResultRecorder
	if s.History != nil && s.consumer == nil {
		recorder = s.History
	}

	s.Connections = gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), clock)

	timerConfig := cfg.timerConfig()
	s.Manager = manager.New(clock, func(roomID string) *timer.Timer {
		return timer.New(ctx, roomID, clock, s.Connections, timerConfig)
	})
	s.Manager.Subscribe(s.Connections)
	s.Manager.Subscribe(s.Dispatcher)

	s.Sessions = session.NewService(session.Deps{
		Manager:     s.Manager,
		Broadcaster: s.Connections,
		Games:       s.Catalog,
		Events:      s.Dispatcher,
		Recorder:    recorder,
		Clock:       clock,
	}, cfg.sessionConfig())
	s.Connections.SetRouter(s.Sessions)

	s.Admin = adminrpc.NewService(s.Sessions)

	return s, nil
}

func (s *Services) setupCatalog(ctx context.Context, cfg *Config) error {
	if cfg.catalogDSN == "" {
		store, err := catalog.NewFileStore(cfg.catalogDir)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
		s.Catalog = store
		return nil
	}

	pool, err := setupPool(ctx, cfg.catalogDSN)
	if err != nil {
		return err
	}
	s.pool = pool
	store := catalog.NewPostgresStore(pool)
	s.Catalog = store

	listenerConfig := catalog.DefaultChangeListenerConfig()
	listenerConfig.DatabaseURL = cfg.catalogDSN
	s.listener, err = catalog.NewChangeListener(store, listenerConfig)
	if err != nil {
		// The cache then stays warm until restart.
		log.Warn().Err(err).Msg("catalog change notifications unavailable")
	}
	return nil
}

// Start launches the background loops. They stop when ctx is cancelled.
func (s *Services) Start(ctx context.Context) {
	s.goRun(func() { s.Connections.Start(ctx) })
	s.goRun(func() { s.Dispatcher.Start(ctx) })

	if s.listener != nil {
		s.goRun(func() {
			if err := s.listener.Start(ctx); err != nil {
				log.Error().Err(err).Msg("catalog listener stopped")
			}
		})
	}
	if s.consumer != nil {
		s.goRun(func() {
			if err := s.consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("history consumer stopped")
			}
		})
	}
}

func (s *Services) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// Close stops the rooms, waits for the background loops and releases
// connections. The context given to Start must already be cancelled.
func (s *Services) Close() {
	if s.Sessions != nil {
		s.Sessions.Shutdown()
	}
	s.wg.Wait()

	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			log.Error().Err(err).Msg("failed to drain NATS connection")
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// Health reports the state of each external dependency.
func (s *Services) Health(ctx context.Context) map[string]error {
	checks := make(map[string]error)
	if s.db != nil {
		checks["history"] = s.db.PingContext(ctx)
	}
	if s.pool != nil {
		checks["catalog"] = s.pool.Ping(ctx)
	}
	if s.nc != nil {
		var err error
		if !s.nc.IsConnected() {
			err = fmt.Errorf("nats status %s", s.nc.Status())
		}
		checks["nats"] = err
	}
	return checks
}
