package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizhub/go/internal/models"
	"github.com/mcdev12/quizhub/go/internal/quiz/events"
	"github.com/mcdev12/quizhub/go/internal/quiz/gateway"
	"github.com/mcdev12/quizhub/go/internal/quiz/manager"
	"github.com/mcdev12/quizhub/go/internal/quiz/room"
)

const maxRoomIDAttempts = 10

var ErrNoTimer = errors.New("room has no timer")

// Broadcaster pushes room events to connected sockets.
type Broadcaster interface {
	EmitToRoom(roomID string, eventType gateway.EventType, payload any)
	EmitToUser(roomID, userID string, eventType gateway.EventType, payload any)
	EmitStateChange(roomID string, change gateway.StateChange)
	EmitChatMessage(roomID string, msg models.ChatMessage)
	History(roomID string) []models.ChatMessage
	Disconnect(roomID, userID string)
}

// EventEmitter receives room lifecycle events for publication.
type EventEmitter interface {
	Emit(eventType events.EventType, roomID string, payload any)
}

// ResultRecorder persists finished games.
type ResultRecorder interface {
	Record(ctx context.Context, result models.GameResult) error
}

// GameSource resolves a game id to its definition.
type GameSource interface {
	GetGame(ctx context.Context, id string) (*models.Game, error)
}

type Config struct {
	// StartDelay is the countdown in seconds before the first question. Zero
	// skips the countdown.
	StartDelay    int
	QRLDuration   int
	PanicMinQCM   int
	PanicMinQRL   int
	MaxChatLength int
	InboxSize     int
	// HostTimeout closes a room that no host has joined within this delay.
	// Zero keeps such rooms open.
	HostTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		StartDelay:    5,
		QRLDuration:   60,
		PanicMinQCM:   10,
		PanicMinQRL:   20,
		MaxChatLength: 200,
		InboxSize:     64,
		HostTimeout:   2 * time.Minute,
	}
}

type Deps struct {
	Manager     *manager.Manager
	Broadcaster Broadcaster
	Games       GameSource
	Events      EventEmitter
	// Recorder is optional. Leave it nil when results reach storage through
	// the event stream.
	Recorder ResultRecorder
	Clock    clockwork.Clock
}

type nopEmitter struct{}

func (nopEmitter) Emit(events.EventType, string, any) {}

// Service owns one Controller per active room and routes socket commands to
// them.
type Service struct {
	manager  *manager.Manager
	bc       Broadcaster
	games    GameSource
	events   EventEmitter
	recorder ResultRecorder
	clock    clockwork.Clock
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.RWMutex
	controllers map[string]*Controller
}

func NewService(deps Deps, cfg Config) *Service {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Events == nil {
		deps.Events = nopEmitter{}
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultConfig().InboxSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		manager:     deps.Manager,
		bc:          deps.Broadcaster,
		games:       deps.Games,
		events:      deps.Events,
		recorder:    deps.Recorder,
		clock:       deps.Clock,
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		controllers: make(map[string]*Controller),
	}
	deps.Manager.Subscribe(s)
	return s
}

// CreateRoom loads gameID and opens a room for it under a fresh id.
func (s *Service) CreateRoom(ctx context.Context, gameID string) (string, error) {
	game, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		return "", fmt.Errorf("load game %s: %w", gameID, err)
	}

	for attempt := 0; attempt < maxRoomIDAttempts; attempt++ {
		roomID, err := s.manager.NewRoomID()
		if err != nil {
			return "", err
		}
		err = s.OpenRoom(roomID, game)
		if errors.Is(err, manager.ErrDuplicateRoom) {
			continue
		}
		if err != nil {
			return "", err
		}
		return roomID, nil
	}
	return "", fmt.Errorf("create room for game %s: %w", gameID, manager.ErrDuplicateRoom)
}

// OpenRoom registers a room under roomID and starts its controller.
func (s *Service) OpenRoom(roomID string, game *models.Game) error {
	r, err := s.manager.CreateRoom(roomID, game)
	if err != nil {
		return err
	}
	if r.Timer() == nil {
		s.manager.RemoveRoom(roomID)
		return fmt.Errorf("open room %s: %w", roomID, ErrNoTimer)
	}

	ctrl := newController(r, s)
	ctx, cancel := context.WithCancel(s.ctx)
	ctrl.cancel = cancel

	s.mu.Lock()
	s.controllers[roomID] = ctrl
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctrl.run(ctx)
	}()

	if game != nil {
		s.events.Emit(events.EventTypeRoomCreated, roomID, events.RoomCreatedPayload{
			GameID:    game.ID,
			GameTitle: game.Title,
		})
	}
	return nil
}

func (s *Service) controller(roomID string) (*Controller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controllers[roomID]
	return c, ok
}

// HandleAction implements gateway.ActionRouter.
func (s *Service) HandleAction(roomID, userID string, msg gateway.ClientMessage) {
	c, ok := s.controller(roomID)
	if !ok || !c.enqueue(command{kind: commandAction, userID: userID, msg: msg}) {
		s.bc.EmitToUser(roomID, userID, gateway.EventTypeError, gateway.ErrorPayload{
			Action:  msg.Action,
			Message: manager.ErrRoomNotFound.Error(),
		})
	}
}

// HandleDisconnect implements gateway.ActionRouter.
func (s *Service) HandleDisconnect(roomID, userID string) {
	if c, ok := s.controller(roomID); ok {
		c.enqueue(command{kind: commandDisconnect, userID: userID})
	}
}

// OnRoomRemoved stops the controller of a removed room. It may run on that
// controller's own goroutine, so it never waits for it.
func (s *Service) OnRoomRemoved(roomID string) {
	s.mu.Lock()
	c, ok := s.controllers[roomID]
	delete(s.controllers, roomID)
	s.mu.Unlock()

	if ok {
		c.cancel()
	}
}

// CloseRoom closes roomID as if its host had ended it.
func (s *Service) CloseRoom(roomID string) error {
	c, ok := s.controller(roomID)
	if ok && c.enqueue(command{kind: commandClose, reason: "closed by an administrator"}) {
		return nil
	}
	if s.manager.RemoveRoom(roomID) {
		return nil
	}
	return fmt.Errorf("close room %s: %w", roomID, manager.ErrRoomNotFound)
}

// Summaries lists the active rooms.
func (s *Service) Summaries() []RoomSummary {
	rooms := s.manager.Rooms()
	out := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, summarize(r))
	}
	return out
}

func summarize(r *room.Room) RoomSummary {
	summary := RoomSummary{
		RoomID:    r.ID(),
		State:     r.State().String(),
		Players:   len(r.ActivePlayers()),
		Locked:    r.Locked(),
		CreatedAt: r.CreatedAt(),
	}
	if g := r.Game(); g != nil {
		summary.GameID = g.ID
		summary.GameTitle = g.Title
	}
	return summary
}

// Shutdown stops every controller and waits for them to exit.
func (s *Service) Shutdown() {
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("session service stopped")
}
