package manager

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizhub/go/internal/models"
	"github.com/mcdev12/quizhub/go/internal/quiz/room"
	"github.com/mcdev12/quizhub/go/internal/quiz/timer"
)

var (
	ErrDuplicateRoom = errors.New("room already exists")
	ErrRoomNotFound  = errors.New("room not found")
	ErrEmptyGame     = errors.New("game has no questions")
)

// RemovalListener is notified after a room has been removed.
type RemovalListener interface {
	OnRoomRemoved(roomID string)
}

// RemovalListenerFunc adapts a function to RemovalListener.
type RemovalListenerFunc func(roomID string)

func (f RemovalListenerFunc) OnRoomRemoved(roomID string) {
	f(roomID)
}

// TimerFactory builds the countdown owned by a new room.
type TimerFactory func(roomID string) *timer.Timer

// Manager is the process-wide registry of active rooms.
type Manager struct {
	clock    clockwork.Clock
	newTimer TimerFactory

	mu        sync.RWMutex
	rooms     map[string]*room.Room
	listeners []RemovalListener
}

func New(clock clockwork.Clock, newTimer TimerFactory) *Manager {
	return &Manager{
		clock:    clock,
		newTimer: newTimer,
		rooms:    make(map[string]*room.Room),
	}
}

// Subscribe registers l for room removal notifications.
func (m *Manager) Subscribe(l RemovalListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// CreateRoom registers a new room playing game.
func (m *Manager) CreateRoom(roomID string, game *models.Game) (*room.Room, error) {
	if game != nil && len(game.Questions) == 0 {
		return nil, fmt.Errorf("create room %s: %w", roomID, ErrEmptyGame)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[roomID]; exists {
		return nil, fmt.Errorf("create room %s: %w", roomID, ErrDuplicateRoom)
	}

	var t *timer.Timer
	if m.newTimer != nil {
		t = m.newTimer(roomID)
	}
	r := room.New(roomID, game, t, m.clock.Now())
	m.rooms[roomID] = r

	log.Info().
		Str("room_id", roomID).
		Int("total_rooms", len(m.rooms)).
		Msg("room created")

	return r, nil
}

func (m *Manager) GetRoom(roomID string) (*room.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// RoomExists reports whether roomID is registered.
func (m *Manager) RoomExists(roomID string) bool {
	_, err := m.GetRoom(roomID)
	return err == nil
}

// RemoveRoom unregisters a room, stops its timer and notifies listeners.
// Removing an unknown room is a no-op.
func (m *Manager) RemoveRoom(roomID string) bool {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	if ok {
		delete(m.rooms, roomID)
	}
	listeners := append([]RemovalListener(nil), m.listeners...)
	m.mu.Unlock()

	if !ok {
		log.Debug().Str("room_id", roomID).Msg("remove of unknown room ignored")
		return false
	}

	if t := r.Timer(); t != nil {
		t.Stop()
	}
	for _, l := range listeners {
		l.OnRoomRemoved(roomID)
	}

	log.Info().Str("room_id", roomID).Msg("room removed")
	return true
}

// Rooms returns the active rooms ordered by id.
func (m *Manager) Rooms() []*room.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*room.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// NewRoomID picks an unused four digit room id.
func (m *Manager) NewRoomID() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.rooms) >= 9000 {
		return "", errors.New("no room id available")
	}
	for {
		id := fmt.Sprintf("%04d", 1000+rand.IntN(9000))
		if _, taken := m.rooms[id]; !taken {
			return id, nil
		}
	}
}
