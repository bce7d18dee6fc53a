package room

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_IsCorrect(t *testing.T) {
	correct := []bool{true, false}

	tests := []struct {
		name   string
		submit []bool
		want   bool
	}{
		{name: "exact match", submit: []bool{true, false}, want: true},
		{name: "swapped", submit: []bool{false, true}, want: false},
		{name: "extra selection", submit: []bool{true, true}, want: false},
		{name: "too short", submit: []bool{true}, want: false},
		{name: "longer with matching prefix", submit: []bool{true, false, true}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			reg.Add(User{ID: "u1", Name: "Alice"})
			require.True(t, reg.Submit("u1", tt.submit, time.Now()))
			assert.Equal(t, tt.want, reg.IsCorrect("u1", correct))
		})
	}
}

func TestRegistry_IsCorrectWithoutSubmission(t *testing.T) {
	reg := NewRegistry()
	reg.Add(User{ID: "u1", Name: "Alice"})

	assert.False(t, reg.IsCorrect("u1", []bool{true, false}))
	assert.False(t, reg.IsCorrect("missing", []bool{true, false}))
}

func TestRegistry_SubmitOverwrites(t *testing.T) {
	reg := NewRegistry()
	reg.Add(User{ID: "u1", Name: "Alice"})
	first := time.Unix(10, 0)
	second := time.Unix(20, 0)

	reg.Submit("u1", []bool{false, true}, first)
	reg.Submit("u1", []bool{true, false}, second)

	u, ok := reg.Get("u1")
	require.True(t, ok)
	assert.Equal(t, []bool{true, false}, u.CurrentChoice)
	assert.Equal(t, second, *u.AnswerTimestamp)
	assert.False(t, reg.Submit("missing", []bool{true}, first))
}

func TestRegistry_AwardBonus(t *testing.T) {
	reg := NewRegistry()
	reg.Add(User{ID: "u1", Name: "Alice"})

	reg.AwardBonus("u1", 10)

	u, _ := reg.Get("u1")
	assert.Equal(t, 1, u.BonusCount)
	assert.InDelta(t, 12.0, u.Score, 1e-9)

	reg.AwardScore("u1", 20)
	assert.InDelta(t, 32.0, u.Score, 1e-9)
	assert.Equal(t, 1, u.BonusCount)
}

func TestRegistry_ResetAnswers(t *testing.T) {
	reg := NewRegistry()
	reg.Add(User{ID: "u1", Name: "Alice"})
	reg.Add(User{ID: "u2", Name: "Bob"})
	reg.Submit("u1", []bool{true}, time.Now())
	reg.SubmitText("u2", "Rome is old", time.Now())

	reg.ResetAnswers()

	for _, u := range reg.All() {
		assert.Nil(t, u.CurrentChoice)
		assert.Empty(t, u.TextAnswer)
		assert.False(t, u.HasAnswered())
	}
}

func TestRegistry_ByNameIsCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	reg.Add(User{ID: "u1", Name: "Alice"})

	u, ok := reg.ByName("aLiCe")
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)

	u, ok = reg.ByName("  alice ")
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)

	_, ok = reg.ByName("Bob")
	assert.False(t, ok)
}
