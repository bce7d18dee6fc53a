package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/quizhub/go/internal/models"
)

func validGame() *models.Game {
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
				},
			},
			{Type: models.QuestionTypeQRL, Text: "Describe Rome.", Points: 50},
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(g *models.Game)
		wantErr bool
	}{
		{name: "valid", mutate: func(g *models.Game) {}},
		{name: "missing title", mutate: func(g *models.Game) { g.Title = " " }, wantErr: true},
		{name: "zero duration", mutate: func(g *models.Game) { g.Duration = 0 }, wantErr: true},
		{name: "no questions", mutate: func(g *models.Game) { g.Questions = nil }, wantErr: true},
		{name: "points not a multiple of ten", mutate: func(g *models.Game) { g.Questions[0].Points = 15 }, wantErr: true},
		{name: "points too high", mutate: func(g *models.Game) { g.Questions[0].Points = 110 }, wantErr: true},
		{name: "single choice", mutate: func(g *models.Game) { g.Questions[0].Choices = g.Questions[0].Choices[:1] }, wantErr: true},
		{name: "all correct", mutate: func(g *models.Game) { g.Questions[0].Choices[1].IsCorrect = models.Bool(true) }, wantErr: true},
		{name: "too many choices", mutate: func(g *models.Game) {
			for i := 0; i < 3; i++ {
				g.Questions[0].Choices = append(g.Questions[0].Choices, models.Choice{Text: "x"})
			}
		}, wantErr: true},
		{name: "free text with choices", mutate: func(g *models.Game) {
			g.Questions[1].Choices = []models.Choice{{Text: "a"}}
		}, wantErr: true},
		{name: "unknown type", mutate: func(g *models.Game) { g.Questions[1].Type = "XYZ" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGame()
			tt.mutate(g)
			err := Validate(g)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidGame)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	g := validGame()
	g.Title = ""
	g.Questions[0].Points = 7

	err := Validate(g)

	assert.ErrorContains(t, err, "title is required")
	assert.ErrorContains(t, err, "question 1")
}
