package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizhub/go/internal/models"
)

func testGame() *models.Game {
	return &models.Game{
		ID:       "g1",
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
				},
			},
			{
				Type:   models.QuestionTypeQRL,
				Text:   "Describe Rome.",
				Points: 20,
			},
		},
	}
}

func newTestRoom() *Room {
	return New("R1", testGame(), nil, time.Unix(0, 0))
}

func TestRoom_NewWithoutGame(t *testing.T) {
	r := New("R1", nil, nil, time.Now())
	assert.Equal(t, StateNotStarted, r.State())
	assert.Equal(t, StateNotStarted, r.StartGame())

	require.True(t, r.AttachGame(testGame()))
	assert.Equal(t, StateWait, r.State())
	assert.False(t, r.AttachGame(testGame()), "a game is attached only once")
}

func TestRoom_StartGameScenario(t *testing.T) {
	r := newTestRoom()

	assert.Equal(t, StateAskingQuestion, r.StartGame())
	assert.Equal(t, 0, r.QuestionIndex())

	assert.Equal(t, 1, r.AdvanceQuestion())
	assert.Equal(t, 1, r.AdvanceQuestion())
	assert.Equal(t, 1, r.QuestionIndex())
}

func TestRoom_StartGameOutsideWaitIsNoop(t *testing.T) {
	for _, state := range []State{StateStarting, StateAskingQuestion, StateShowResults, StateGameOver} {
		t.Run(state.String(), func(t *testing.T) {
			r := newTestRoom()
			r.state = state
			assert.Equal(t, state, r.StartGame())
			assert.Equal(t, state, r.State())
		})
	}
}

func TestRoom_Transition(t *testing.T) {
	r := newTestRoom()

	state, ok := r.Transition(StateAskingQuestion)
	assert.False(t, ok)
	assert.Equal(t, StateWait, state)

	for _, next := range []State{StateStarting, StateAskingQuestion, StateWaitingResults, StateShowResults, StateAskingQuestion, StateWaitingResults, StateLastQuestion, StateShowFinalResults, StateGameOver} {
		state, ok = r.Transition(next)
		require.True(t, ok, "transition to %s", next)
		assert.Equal(t, next, state)
	}

	_, ok = r.Transition(StateWait)
	assert.False(t, ok, "game over is terminal")
	_, ok = r.Transition(StateGameOver)
	assert.False(t, ok)
}

func TestRoom_AnyStateCanEndTheGame(t *testing.T) {
	r := newTestRoom()
	r.StartGame()

	state, ok := r.Transition(StateGameOver)
	assert.True(t, ok)
	assert.Equal(t, StateGameOver, state)
}

func TestRoom_RemoveUserInLobbyDropsRecord(t *testing.T) {
	r := newTestRoom()
	r.AddUser(User{ID: "u1", Name: "Alice"})

	r.RemoveUser("u1")

	_, ok := r.User("u1")
	assert.False(t, ok)
	assert.False(t, r.IsActive("u1"))
	assert.False(t, r.UserExists("alice"))
}

func TestRoom_RemoveUserMidGameKeepsScore(t *testing.T) {
	r := newTestRoom()
	r.AddUser(User{ID: "u1", Name: "Alice"})
	r.StartGame()
	r.AwardScore("u1", 10)

	r.RemoveUser("u1")

	u, ok := r.User("u1")
	require.True(t, ok)
	assert.Equal(t, 10.0, u.Score)
	assert.False(t, r.IsActive("u1"))
}

func TestRoom_BanUser(t *testing.T) {
	r := newTestRoom()
	r.AddUser(User{ID: "u1", Name: "Alice"})

	id, ok := r.BanUser("ALICE")
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
	assert.True(t, r.IsBanned("alice"))

	id, ok = r.BanUser("Nobody")
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.True(t, r.IsBanned("nobody"), "absent names are still banned")
}

func TestRoom_BanUserOutsideWaitIsNoop(t *testing.T) {
	r := newTestRoom()
	r.AddUser(User{ID: "u1", Name: "Alice"})
	r.StartGame()

	id, ok := r.BanUser("Alice")
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.False(t, r.IsBanned("Alice"))
	assert.Empty(t, r.bannedNames)
}

func TestRoom_IsHost(t *testing.T) {
	r := newTestRoom()
	r.AddUser(User{ID: "h", Name: HostName})
	r.AddUser(User{ID: "u1", Name: "Alice"})

	assert.True(t, r.IsHost("h"))
	assert.False(t, r.IsHost("u1"))
	assert.False(t, r.IsHost("missing"))
}

func TestRoom_LockAndAbandon(t *testing.T) {
	r := newTestRoom()
	assert.False(t, r.Locked())
	assert.True(t, r.ToggleLock())
	assert.False(t, r.ToggleLock())

	assert.True(t, r.IsAbandoned())
	r.AddUser(User{ID: "h", Name: HostName})
	assert.True(t, r.IsAbandoned())
	r.AddUser(User{ID: "u1", Name: "Alice"})
	assert.False(t, r.IsAbandoned())
}

func TestRoom_AllAnsweredIgnoresHostAndDeparted(t *testing.T) {
	r := newTestRoom()
	r.AddUser(User{ID: "h", Name: HostName})
	r.AddUser(User{ID: "u1", Name: "Alice"})
	r.AddUser(User{ID: "u2", Name: "Bob"})
	r.StartGame()

	assert.False(t, r.AllAnswered())
	r.Submit("u1", []bool{true, false}, time.Now())
	assert.False(t, r.AllAnswered())

	r.RemoveUser("u2")
	assert.True(t, r.AllAnswered())

	r.ResetAnswers()
	assert.False(t, r.AllAnswered())
}

func TestRoom_HistogramAndFinalScores(t *testing.T) {
	r := newTestRoom()
	r.AddUser(User{ID: "h", Name: HostName})
	r.AddUser(User{ID: "u1", Name: "Bob"})
	r.AddUser(User{ID: "u2", Name: "Alice"})
	r.AddUser(User{ID: "u3", Name: "Carol"})
	r.StartGame()

	r.Submit("u1", []bool{true, false}, time.Now())
	r.Submit("u2", []bool{true, true}, time.Now())
	assert.Equal(t, []int{2, 1}, r.Histogram())

	r.AwardScore("u1", 10)
	r.AwardScore("u2", 10)
	r.AwardBonus("u3", 10)

	scores := r.FinalScores()
	require.Len(t, scores, 3)
	assert.Equal(t, "Carol", scores[0].Name)
	assert.Equal(t, 1, scores[0].BonusCount)
	assert.Equal(t, "Alice", scores[1].Name, "ties are ordered by name")
	assert.Equal(t, "Bob", scores[2].Name)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateWaitingResults, StateLastQuestion))
	assert.False(t, CanTransition(StateLastQuestion, StateAskingQuestion))
	assert.False(t, CanTransition(StateNotStarted, StateWait))
	assert.True(t, CanTransition(StateNotStarted, StateGameOver))
	assert.Equal(t, "ASKING_QUESTION", StateAskingQuestion.String())
}
