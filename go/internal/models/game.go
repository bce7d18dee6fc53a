package models

import "time"

// QuestionType defines how a question is answered and scored.
type QuestionType string

const (
	QuestionTypeQCM QuestionType = "QCM" // multiple choice, scored automatically
	QuestionTypeQRL QuestionType = "QRL" // free text, graded by the host
)

// Choice is a single option of a QCM question. IsCorrect is nil once the
// question has been redacted for players.
type Choice struct {
	Text      string `json:"text" yaml:"text"`
	IsCorrect *bool  `json:"isCorrect,omitempty" yaml:"isCorrect,omitempty"`
}

// Question is one step of a game.
type Question struct {
	Type    QuestionType `json:"type" yaml:"type"`
	Text    string       `json:"text" yaml:"text"`
	Points  int          `json:"points" yaml:"points"`
	Choices []Choice     `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// Game is an immutable game definition loaded from the catalog.
type Game struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title" yaml:"title"`
	Description  string     `json:"description,omitempty" yaml:"description,omitempty"`
	Duration     int        `json:"duration" yaml:"duration"` // seconds allowed per QCM question
	Questions    []Question `json:"questions" yaml:"questions"`
	LastModified time.Time  `json:"lastModification,omitempty" yaml:"lastModification,omitempty"`
}

// CorrectVector returns the correctness flag of every choice, in order.
func (q Question) CorrectVector() []bool {
	vector := make([]bool, len(q.Choices))
	for i, c := range q.Choices {
		vector[i] = c.IsCorrect != nil && *c.IsCorrect
	}
	return vector
}

// Redacted returns a copy of the question with every correctness flag removed.
func (q Question) Redacted() Question {
	out := q
	if q.Choices == nil {
		return out
	}
	out.Choices = make([]Choice, len(q.Choices))
	for i, c := range q.Choices {
		out.Choices[i] = Choice{Text: c.Text}
	}
	return out
}

// Clone returns a deep copy of the question.
func (q Question) Clone() Question {
	out := q
	if q.Choices == nil {
		return out
	}
	out.Choices = make([]Choice, len(q.Choices))
	for i, c := range q.Choices {
		out.Choices[i] = Choice{Text: c.Text}
		if c.IsCorrect != nil {
			v := *c.IsCorrect
			out.Choices[i].IsCorrect = &v
		}
	}
	return out
}

// Bool returns a pointer to v, handy when building choices by hand.
func Bool(v bool) *bool {
	return &v
}

// Clone returns a deep copy of the game.
func (g Game) Clone() Game {
	out := g
	out.Questions = make([]Question, len(g.Questions))
	for i, q := range g.Questions {
		out.Questions[i] = q.Clone()
	}
	return out
}

// GameSummary is the catalog listing view of a game.
type GameSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Duration      int       `json:"duration"`
	QuestionCount int       `json:"questionCount"`
	LastModified  time.Time `json:"lastModification"`
}

// Summary returns the listing view of g.
func (g Game) Summary() GameSummary {
	return GameSummary{
		ID:            g.ID,
		Title:         g.Title,
		Description:   g.Description,
		Duration:      g.Duration,
		QuestionCount: len(g.Questions),
		LastModified:  g.LastModified,
	}
}
