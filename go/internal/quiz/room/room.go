package room

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mcdev12/quizhub/go/internal/models"
	"github.com/mcdev12/quizhub/go/internal/quiz/timer"
)

// HostName is the reserved name of the room host. The host never scores.
const HostName = "organisateur"

// Room is one isolated game session. Game logic runs on a single controller
// goroutine; the lock only guards reads made from other goroutines.
type Room struct {
	id        string
	game      *models.Game
	timer     *timer.Timer
	createdAt time.Time

	mu          sync.RWMutex
	state       State
	locked      bool
	bannedNames map[string]struct{}
	users       *Registry
	activeUsers map[string]struct{}
	sequencer   *Sequencer
}

// New creates a room for game. A nil game leaves the room in StateNotStarted
// until AttachGame is called.
func New(id string, game *models.Game, t *timer.Timer, createdAt time.Time) *Room {
	r := &Room{
		id:          id,
		timer:       t,
		createdAt:   createdAt,
		state:       StateNotStarted,
		bannedNames: make(map[string]struct{}),
		users:       NewRegistry(),
		activeUsers: make(map[string]struct{}),
	}
	r.AttachGame(game)
	return r
}

// AttachGame binds a game definition to a room that has none yet.
func (r *Room) AttachGame(game *models.Game) bool {
	if game == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateNotStarted {
		return false
	}
	r.game = game
	r.sequencer = NewSequencer(game.Questions)
	r.state = StateWait
	return true
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) Game() *models.Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.game
}

func (r *Room) Timer() *timer.Timer {
	return r.timer
}

func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

func (r *Room) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// StartGame moves a waiting room straight to its first question. From any
// other state it returns the current state unchanged.
func (r *Room) StartGame() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateWait {
		r.state = StateAskingQuestion
	}
	return r.state
}

// Transition moves the room to to if the edge is legal. The returned state is
// the room's state after the call.
func (r *Room) Transition(to State) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !CanTransition(r.state, to) {
		return r.state, false
	}
	r.state = to
	return r.state, true
}

// AddUser inserts u as an active user. Name uniqueness and bans are checked
// by the caller.
func (r *Room) AddUser(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users.Add(u)
	r.activeUsers[u.ID] = struct{}{}
}

// RemoveUser deactivates a user. In the lobby the user record is dropped too;
// once the game started it is kept for the scoreboard.
func (r *Room) RemoveUser(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.activeUsers, id)
	if r.state == StateWait {
		r.users.Remove(id)
	}
}

// BanUser bans name for the rest of the room's life and returns the id of the
// user carrying it, if any. Outside the lobby it does nothing.
func (r *Room) BanUser(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateWait {
		return "", false
	}
	r.bannedNames[normalizeName(name)] = struct{}{}
	if u, ok := r.users.ByName(name); ok {
		return u.ID, true
	}
	return "", false
}

func (r *Room) IsBanned(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bannedNames[normalizeName(name)]
	return ok
}

func (r *Room) UserExists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users.ByName(name)
	return ok
}

func (r *Room) IsHost(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users.Get(id)
	return ok && u.Name == HostName
}

func (r *Room) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.activeUsers[id]
	return ok
}

// User returns a copy of the user record.
func (r *Room) User(id string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users.Get(id)
	if !ok {
		return User{}, false
	}
	return u.clone(), true
}

// Players returns copies of every non-host user record, ordered by name.
func (r *Room) Players() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []User
	for _, u := range r.users.All() {
		if u.Name == HostName {
			continue
		}
		out = append(out, u.clone())
	}
	return out
}

// ActivePlayers returns copies of the connected non-host users, ordered by name.
func (r *Room) ActivePlayers() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []User
	for _, u := range r.users.All() {
		if _, ok := r.activeUsers[u.ID]; !ok || u.Name == HostName {
			continue
		}
		out = append(out, u.clone())
	}
	return out
}

func (r *Room) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeUsers)
}

// IsAbandoned reports whether at most one connection remains.
func (r *Room) IsAbandoned() bool {
	return r.ActiveCount() <= 1
}

func (r *Room) Locked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.locked
}

// ToggleLock flips the lock flag and returns the new value.
func (r *Room) ToggleLock() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = !r.locked
	return r.locked
}

func (r *Room) CurrentQuestion(withAnswers bool) models.Question {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sequencer.CurrentQuestion(withAnswers)
}

func (r *Room) AdvanceQuestion() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sequencer.Advance()
}

func (r *Room) QuestionIndex() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.sequencer == nil {
		return 0
	}
	return r.sequencer.Index()
}

func (r *Room) QuestionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.sequencer == nil {
		return 0
	}
	return r.sequencer.Len()
}

func (r *Room) IsLastQuestion() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sequencer.IsLast()
}

func (r *Room) Submit(id string, choices []bool, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users.Submit(id, choices, at)
}

func (r *Room) SubmitText(id, text string, at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users.SubmitText(id, text, at)
}

func (r *Room) IsCorrect(id string, correct []bool) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users.IsCorrect(id, correct)
}

func (r *Room) AwardScore(id string, points float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users.AwardScore(id, points)
}

func (r *Room) AwardBonus(id string, points float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users.AwardBonus(id, points)
}

func (r *Room) ResetAnswers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users.ResetAnswers()
}

// AllAnswered reports whether every connected player answered the current
// question. A room without connected players never counts as answered.
func (r *Room) AllAnswered() bool {
	players := r.ActivePlayers()
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if !p.HasAnswered() {
			return false
		}
	}
	return true
}

// Histogram counts, for each choice of the current QCM question, how many
// players selected it.
func (r *Room) Histogram() []int {
	q := r.CurrentQuestion(false)
	counts := make([]int, len(q.Choices))
	for _, p := range r.Players() {
		for i, picked := range p.CurrentChoice {
			if picked && i < len(counts) {
				counts[i]++
			}
		}
	}
	return counts
}

// FinalScores returns the leaderboard ordered by score, then by name.
func (r *Room) FinalScores() []models.FinalScore {
	players := r.Players()
	scores := make([]models.FinalScore, 0, len(players))
	for _, p := range players {
		scores = append(scores, models.FinalScore{
			Name:       p.Name,
			Score:      p.Score,
			BonusCount: p.BonusCount,
		})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Name < scores[j].Name
	})
	return scores
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
