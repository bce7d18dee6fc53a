package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// errStopped is the cancellation cause used by Stop. It ends a tick loop
// quietly; any other cause is recorded and reported through Err.
var errStopped = errors.New("timer stopped")

// Tick is the payload emitted after every countdown step.
type Tick struct {
	Seconds   int  `json:"seconds"`
	TimeInit  int  `json:"timeInit"`
	PanicMode bool `json:"panicMode"`
	Pause     bool `json:"pause"`
}

// Emitter receives every tick of a room's countdown.
type Emitter interface {
	EmitTimeTick(roomID string, tick Tick)
}

// Expiry is delivered on the Expirations channel when a countdown reaches zero.
// Generation identifies the Start or Restart call that produced it so that
// consumers can discard expiries from loops that were superseded.
type Expiry struct {
	RoomID     string
	Generation uint64
}

// Config holds the tick intervals of a timer.
type Config struct {
	Interval      time.Duration
	PanicInterval time.Duration
}

// DefaultConfig returns one tick per second, four per second in panic mode.
func DefaultConfig() Config {
	return Config{
		Interval:      time.Second,
		PanicInterval: 250 * time.Millisecond,
	}
}

// Timer is a pausable second-granularity countdown owned by a single room.
// At most one tick loop is active at any time.
type Timer struct {
	roomID  string
	clock   clockwork.Clock
	emitter Emitter
	config  Config

	// parent bounds every tick loop the timer launches
	parent context.Context

	mu         sync.Mutex
	seconds    int
	initial    int
	paused     bool
	panicMode  bool
	generation uint64
	cancel     context.CancelCauseFunc
	err        error

	expired chan Expiry
}

// New creates an idle timer for roomID.
func New(ctx context.Context, roomID string, clock clockwork.Clock, emitter Emitter, config Config) *Timer {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.PanicInterval <= 0 {
		config.PanicInterval = DefaultConfig().PanicInterval
	}
	return &Timer{
		roomID:  roomID,
		clock:   clock,
		emitter: emitter,
		config:  config,
		parent:  ctx,
		expired: make(chan Expiry, 8),
	}
}

// Expirations returns the channel on which countdown completions are delivered.
func (t *Timer) Expirations() <-chan Expiry {
	return t.expired
}

// Start cancels any running loop and counts down from seconds.
func (t *Timer) Start(seconds int) uint64 {
	if seconds < 0 {
		seconds = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.seconds = seconds
	t.initial = seconds
	t.paused = false
	t.panicMode = false
	t.err = nil
	return t.launchLocked()
}

// Restart resumes counting from the current remaining seconds. It does nothing
// if a loop is already running.
func (t *Timer) Restart() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return t.generation
	}
	return t.launchLocked()
}

// Stop cancels the running loop, if any. The remaining seconds are kept.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// Reset sets the remaining seconds to zero without emitting a tick.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seconds = 0
}

// Toggle flips the paused flag and emits the current value immediately.
func (t *Timer) Toggle() bool {
	t.mu.Lock()
	t.paused = !t.paused
	paused := t.paused
	tick := t.tickLocked()
	t.mu.Unlock()

	t.emitter.EmitTimeTick(t.roomID, tick)
	return paused
}

// StartPanic switches the loop to the panic interval. Each tick still counts
// one second. It returns false if panic mode was already on.
func (t *Timer) StartPanic() bool {
	t.mu.Lock()
	if t.panicMode {
		t.mu.Unlock()
		return false
	}
	t.panicMode = true
	tick := t.tickLocked()
	t.mu.Unlock()

	t.emitter.EmitTimeTick(t.roomID, tick)
	return true
}

func (t *Timer) Seconds() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seconds
}

func (t *Timer) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

func (t *Timer) PanicMode() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.panicMode
}

// Running reports whether a tick loop is active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Generation returns the identifier of the most recently launched loop.
func (t *Timer) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// Err returns the cause of the last unexpected loop interruption.
func (t *Timer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Timer) stopLocked() {
	if t.cancel != nil {
		t.cancel(errStopped)
		t.cancel = nil
	}
}

func (t *Timer) launchLocked() uint64 {
	t.generation++
	ctx, cancel := context.WithCancelCause(t.parent)
	t.cancel = cancel
	go t.run(ctx, t.generation)
	return t.generation
}

func (t *Timer) tickLocked() Tick {
	return Tick{
		Seconds:   t.seconds,
		TimeInit:  t.initial,
		PanicMode: t.panicMode,
		Pause:     t.paused,
	}
}

func (t *Timer) intervalLocked() time.Duration {
	if t.panicMode {
		return t.config.PanicInterval
	}
	return t.config.Interval
}

func (t *Timer) run(ctx context.Context, gen uint64) {
	err := t.loop(ctx, gen)
	if err == nil || errors.Is(err, errStopped) {
		return
	}

	t.mu.Lock()
	if gen == t.generation {
		t.err = err
		t.cancel = nil
	}
	t.mu.Unlock()

	event := log.Error()
	if errors.Is(err, context.Canceled) {
		event = log.Debug()
	}
	event.
		Err(err).
		Str("room_id", t.roomID).
		Uint64("generation", gen).
		Msg("timer loop interrupted")
}

// loop emits the current value, expires at zero, otherwise waits one interval
// and counts down unless paused.
func (t *Timer) loop(ctx context.Context, gen uint64) error {
	for {
		t.mu.Lock()
		if err := context.Cause(ctx); err != nil {
			t.mu.Unlock()
			return err
		}
		if gen != t.generation {
			t.mu.Unlock()
			return nil
		}
		tick := t.tickLocked()
		interval := t.intervalLocked()
		t.mu.Unlock()

		t.emitter.EmitTimeTick(t.roomID, tick)

		if tick.Seconds == 0 {
			return t.expire(ctx, gen)
		}

		wait := t.clock.NewTimer(interval)
		select {
		case <-ctx.Done():
			stopAndDrainTimer(wait)
			return context.Cause(ctx)
		case <-wait.Chan():
		}

		t.mu.Lock()
		if err := context.Cause(ctx); err != nil {
			t.mu.Unlock()
			return err
		}
		if !t.paused && t.seconds > 0 {
			t.seconds--
		}
		t.mu.Unlock()
	}
}

func (t *Timer) expire(ctx context.Context, gen uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := context.Cause(ctx); err != nil {
		return err
	}
	if gen != t.generation {
		return nil
	}
	// The loop is finished; release its context without recording a cause.
	t.cancel(errStopped)
	t.cancel = nil

	select {
	case t.expired <- Expiry{RoomID: t.roomID, Generation: gen}:
	default:
		log.Warn().Str("room_id", t.roomID).Uint64("generation", gen).Msg("expiry channel full, dropping expiry")
	}

	log.Debug().Str("room_id", t.roomID).Uint64("generation", gen).Msg("timer expired")
	return nil
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
