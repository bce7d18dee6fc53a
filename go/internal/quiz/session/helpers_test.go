package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizhub/go/internal/catalog"
	"github.com/mcdev12/quizhub/go/internal/models"
	"github.com/mcdev12/quizhub/go/internal/quiz/events"
	"github.com/mcdev12/quizhub/go/internal/quiz/gateway"
	"github.com/mcdev12/quizhub/go/internal/quiz/manager"
	"github.com/mcdev12/quizhub/go/internal/quiz/timer"
)

type sentEvent struct {
	roomID    string
	userID    string
	eventType gateway.EventType
	payload   any
}

type fakeBroadcaster struct {
	mu           sync.Mutex
	sent         []sentEvent
	history      map[string][]models.ChatMessage
	disconnected []string
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{history: make(map[string][]models.ChatMessage)}
}

func (f *fakeBroadcaster) record(e sentEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
}

func (f *fakeBroadcaster) EmitToRoom(roomID string, eventType gateway.EventType, payload any) {
	f.record(sentEvent{roomID: roomID, eventType: eventType, payload: payload})
}

func (f *fakeBroadcaster) EmitToUser(roomID, userID string, eventType gateway.EventType, payload any) {
	f.record(sentEvent{roomID: roomID, userID: userID, eventType: eventType, payload: payload})
}

func (f *fakeBroadcaster) EmitStateChange(roomID string, change gateway.StateChange) {
	f.record(sentEvent{roomID: roomID, eventType: gateway.EventTypeStateChange, payload: change})
}

func (f *fakeBroadcaster) EmitChatMessage(roomID string, msg models.ChatMessage) {
	f.mu.Lock()
	f.history[roomID] = append(f.history[roomID], msg)
	f.mu.Unlock()
	f.record(sentEvent{roomID: roomID, eventType: gateway.EventTypeChat, payload: msg})
}

func (f *fakeBroadcaster) History(roomID string) []models.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ChatMessage(nil), f.history[roomID]...)
}

func (f *fakeBroadcaster) Disconnect(_, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, userID)
}

func (f *fakeBroadcaster) events() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEvent(nil), f.sent...)
}

func (f *fakeBroadcaster) states() []string {
	var out []string
	for _, e := range f.events() {
		if change, ok := e.payload.(gateway.StateChange); ok {
			out = append(out, change.State)
		}
	}
	return out
}

func (f *fakeBroadcaster) lastState() (gateway.StateChange, bool) {
	sent := f.events()
	for i := len(sent) - 1; i >= 0; i-- {
		if change, ok := sent[i].payload.(gateway.StateChange); ok {
			return change, true
		}
	}
	return gateway.StateChange{}, false
}

func (f *fakeBroadcaster) last(userID string, eventType gateway.EventType) (any, bool) {
	sent := f.events()
	for i := len(sent) - 1; i >= 0; i-- {
		if sent[i].eventType == eventType && sent[i].userID == userID {
			return sent[i].payload, true
		}
	}
	return nil, false
}

func (f *fakeBroadcaster) lastError(userID string) string {
	payload, ok := f.last(userID, gateway.EventTypeError)
	if !ok {
		return ""
	}
	return payload.(gateway.ErrorPayload).Message
}

func (f *fakeBroadcaster) wasDisconnected(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.disconnected {
		if id == userID {
			return true
		}
	}
	return false
}

type fakeEvents struct {
	mu      sync.Mutex
	emitted []events.EventType
	onEmit  func(events.EventType)
}

func (f *fakeEvents) Emit(eventType events.EventType, _ string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, eventType)
	if f.onEmit != nil {
		f.onEmit(eventType)
	}
}

func (f *fakeEvents) types() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.EventType(nil), f.emitted...)
}

type fakeRecorder struct {
	mu      sync.Mutex
	results []models.GameResult
}

func (f *fakeRecorder) Record(_ context.Context, result models.GameResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

type fakeGames map[string]*models.Game

func (f fakeGames) GetGame(_ context.Context, id string) (*models.Game, error) {
	g, ok := f[id]
	if !ok {
		return nil, catalog.ErrGameNotFound
	}
	return g, nil
}

type nopTicks struct{}

func (nopTicks) EmitTimeTick(string, timer.Tick) {}

func testGame() *models.Game {
	return &models.Game{
		ID:       "capitals",
		Title:    "Capitals",
		Duration: 20,
		Questions: []models.Question{
			{
				Type:   models.QuestionTypeQCM,
				Text:   "Capital of France?",
				Points: 10,
				Choices: []models.Choice{
					{Text: "Paris", IsCorrect: models.Bool(true)},
					{Text: "Lyon", IsCorrect: models.Bool(false)},
					{Text: "Nice", IsCorrect: models.Bool(false)},
				},
			},
			{Type: models.QuestionTypeQRL, Text: "Describe Rome.", Points: 20},
		},
	}
}

type harness struct {
	clock    *clockwork.FakeClock
	bc       *fakeBroadcaster
	events   *fakeEvents
	recorder *fakeRecorder
	manager  *manager.Manager
	svc      *Service
	ctrl     *Controller
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.StartDelay = 0
	return cfg
}

func newManager(t *testing.T, clock clockwork.Clock) *manager.Manager {
	return manager.New(clock, func(roomID string) *timer.Timer {
		tm := timer.New(context.Background(), roomID, clock, nopTicks{}, timer.DefaultConfig())
		t.Cleanup(tm.Stop)
		return tm
	})
}

// newHarness builds a controller that is driven synchronously by the test.
func newHarness(t *testing.T, game *models.Game, cfg Config) *harness {
	t.Helper()

	h := &harness{
		clock:    clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		bc:       newFakeBroadcaster(),
		events:   &fakeEvents{},
		recorder: &fakeRecorder{},
	}
	h.manager = newManager(t, h.clock)
	h.svc = NewService(Deps{
		Manager:     h.manager,
		Broadcaster: h.bc,
		Games:       fakeGames{game.ID: game},
		Events:      h.events,
		Recorder:    h.recorder,
		Clock:       h.clock,
	}, cfg)

	r, err := h.manager.CreateRoom("1234", game)
	require.NoError(t, err)
	h.ctrl = newController(r, h.svc)
	return h
}

func (h *harness) send(userID string, msg gateway.ClientMessage) {
	h.ctrl.handle(command{kind: commandAction, userID: userID, msg: msg})
}

func (h *harness) host() {
	h.send("host", gateway.ClientMessage{Action: gateway.ActionHost})
}

func (h *harness) join(userID, name string) {
	h.send(userID, gateway.ClientMessage{Action: gateway.ActionJoin, Name: name})
}

func (h *harness) lobby(players map[string]string) {
	h.host()
	for id, name := range players {
		h.join(id, name)
	}
}
