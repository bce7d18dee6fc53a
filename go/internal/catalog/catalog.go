package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/quizhub/go/internal/models"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrInvalidGame  = errors.New("invalid game")
)

// Store is a read-only source of game definitions.
type Store interface {
	GetGame(ctx context.Context, id string) (*models.Game, error)
	ListGames(ctx context.Context) ([]models.GameSummary, error)
}

const (
	minChoices = 2
	maxChoices = 4
	pointsStep = 10
	maxPoints  = 100
)

// Validate checks that game can be played. Every problem found is reported.
func Validate(game *models.Game) error {
	var errs []error
	if strings.TrimSpace(game.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(game.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if game.Duration <= 0 {
		errs = append(errs, fmt.Errorf("duration must be positive, got %d", game.Duration))
	}
	if len(game.Questions) == 0 {
		errs = append(errs, errors.New("at least one question is required"))
	}
	for i, q := range game.Questions {
		if err := validateQuestion(q); err != nil {
			errs = append(errs, fmt.Errorf("question %d: %w", i+1, err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q: %w", ErrInvalidGame, game.ID, errors.Join(errs...))
}

func validateQuestion(q models.Question) error {
	var errs []error
	if strings.TrimSpace(q.Text) == "" {
		errs = append(errs, errors.New("text is required"))
	}
	if q.Points <= 0 || q.Points > maxPoints || q.Points%pointsStep != 0 {
		errs = append(errs, fmt.Errorf("points must be a multiple of %d between %d and %d, got %d", pointsStep, pointsStep, maxPoints, q.Points))
	}

	switch q.Type {
	case models.QuestionTypeQCM:
		if n := len(q.Choices); n < minChoices || n > maxChoices {
			errs = append(errs, fmt.Errorf("expected %d to %d choices, got %d", minChoices, maxChoices, n))
		}
		var correct, wrong int
		for _, isCorrect := range q.CorrectVector() {
			if isCorrect {
				correct++
			} else {
				wrong++
			}
		}
		if correct == 0 || wrong == 0 {
			errs = append(errs, errors.New("needs at least one correct and one wrong choice"))
		}
		for j, c := range q.Choices {
			if strings.TrimSpace(c.Text) == "" {
				errs = append(errs, fmt.Errorf("choice %d has no text", j+1))
			}
		}
	case models.QuestionTypeQRL:
		if len(q.Choices) > 0 {
			errs = append(errs, errors.New("free text questions carry no choices"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown question type %q", q.Type))
	}

	return errors.Join(errs...)
}
