package room

import (
	"sort"
	"strings"
	"time"
)

// BonusMultiplier is applied to the points of the unique fastest correct answer.
const BonusMultiplier = 1.2

// User is a participant of a room, scoped to one connection.
type User struct {
	ID         string
	Name       string
	Score      float64
	BonusCount int

	// CurrentChoice is nil until the user answers the current QCM question.
	CurrentChoice   []bool
	TextAnswer      string
	AnswerTimestamp *time.Time
}

// HasAnswered reports whether the user submitted an answer to the current question.
func (u *User) HasAnswered() bool {
	return u.AnswerTimestamp != nil
}

func (u *User) clone() User {
	out := *u
	if u.CurrentChoice != nil {
		out.CurrentChoice = append([]bool(nil), u.CurrentChoice...)
	}
	if u.AnswerTimestamp != nil {
		ts := *u.AnswerTimestamp
		out.AnswerTimestamp = &ts
	}
	return out
}

// Registry holds every user that ever joined a room, keyed by user id.
// It is not safe for concurrent use; Room serialises access to it.
type Registry struct {
	users map[string]*User
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]*User)}
}

// Add inserts or replaces the user with the same id.
func (r *Registry) Add(u User) {
	r.users[u.ID] = &u
}

func (r *Registry) Remove(id string) {
	delete(r.users, id)
}

func (r *Registry) Get(id string) (*User, bool) {
	u, ok := r.users[id]
	return u, ok
}

// ByName finds a user by name, ignoring case and surrounding whitespace.
func (r *Registry) ByName(name string) (*User, bool) {
	name = strings.TrimSpace(name)
	for _, u := range r.users {
		if strings.EqualFold(u.Name, name) {
			return u, true
		}
	}
	return nil, false
}

func (r *Registry) Len() int {
	return len(r.users)
}

// All returns the users ordered by name.
func (r *Registry) All() []*User {
	out := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Submit records a QCM answer. Unknown ids are ignored.
func (r *Registry) Submit(id string, choices []bool, at time.Time) bool {
	u, ok := r.users[id]
	if !ok {
		return false
	}
	u.CurrentChoice = append([]bool(nil), choices...)
	u.AnswerTimestamp = &at
	return true
}

// SubmitText records a QRL answer. Unknown ids are ignored.
func (r *Registry) SubmitText(id, text string, at time.Time) bool {
	u, ok := r.users[id]
	if !ok {
		return false
	}
	u.TextAnswer = text
	u.AnswerTimestamp = &at
	return true
}

// IsCorrect compares the user's choice with correct, element by element over
// the length of correct. An absent or shorter choice is never correct.
func (r *Registry) IsCorrect(id string, correct []bool) bool {
	u, ok := r.users[id]
	if !ok || u.CurrentChoice == nil || len(u.CurrentChoice) < len(correct) {
		return false
	}
	for i, want := range correct {
		if u.CurrentChoice[i] != want {
			return false
		}
	}
	return true
}

func (r *Registry) AwardScore(id string, points float64) {
	if u, ok := r.users[id]; ok {
		u.Score += points
	}
}

// AwardBonus credits points with the bonus multiplier and counts the bonus.
func (r *Registry) AwardBonus(id string, points float64) {
	if u, ok := r.users[id]; ok {
		u.Score += points * BonusMultiplier
		u.BonusCount++
	}
}

// ResetAnswers clears every user's answer before a new question.
func (r *Registry) ResetAnswers() {
	for _, u := range r.users {
		u.CurrentChoice = nil
		u.TextAnswer = ""
		u.AnswerTimestamp = nil
	}
}
