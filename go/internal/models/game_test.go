package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuestion_CorrectVector(t *testing.T) {
	q := Question{
		Type: QuestionTypeQCM,
		Choices: []Choice{
			{Text: "a", IsCorrect: Bool(true)},
			{Text: "b"},
			{Text: "c", IsCorrect: Bool(false)},
		},
	}

	assert.Equal(t, []bool{true, false, false}, q.CorrectVector())
	assert.Equal(t, []bool{false, false, false}, q.Redacted().CorrectVector())
}

func TestQuestion_RedactedLeavesOriginal(t *testing.T) {
	q := Question{Choices: []Choice{{Text: "a", IsCorrect: Bool(true)}}}

	r := q.Redacted()

	assert.Nil(t, r.Choices[0].IsCorrect)
	assert.True(t, *q.Choices[0].IsCorrect)
}

func TestQuestion_FreeTextHasNoChoices(t *testing.T) {
	q := Question{Type: QuestionTypeQRL, Text: "why?"}

	assert.Nil(t, q.Redacted().Choices)
	assert.Nil(t, q.Clone().Choices)
	assert.Empty(t, q.CorrectVector())
}
