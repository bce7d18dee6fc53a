package room

import "github.com/mcdev12/quizhub/go/internal/models"

// Sequencer walks the ordered questions of a game. The index never leaves
// [0, len(questions)).
type Sequencer struct {
	questions []models.Question
	index     int
}

// NewSequencer copies questions; the caller keeps ownership of its slice.
func NewSequencer(questions []models.Question) *Sequencer {
	qs := make([]models.Question, len(questions))
	for i, q := range questions {
		qs[i] = q.Clone()
	}
	return &Sequencer{questions: qs}
}

// CurrentQuestion returns a copy of the current question. Unless withAnswers
// is set the correctness flags of QCM choices are removed.
func (s *Sequencer) CurrentQuestion(withAnswers bool) models.Question {
	q := s.questions[s.index]
	if withAnswers {
		return q.Clone()
	}
	return q.Redacted()
}

// Advance moves to the next question, staying on the last one.
func (s *Sequencer) Advance() int {
	if s.index < len(s.questions)-1 {
		s.index++
	}
	return s.index
}

func (s *Sequencer) Index() int {
	return s.index
}

func (s *Sequencer) Len() int {
	return len(s.questions)
}

func (s *Sequencer) IsLast() bool {
	return s.index == len(s.questions)-1
}
