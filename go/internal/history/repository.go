package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizhub/go/internal/models"
	"github.com/mcdev12/quizhub/go/internal/sqlutil"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	InsertGameHistory(ctx context.Context, arg InsertGameHistoryParams) error
	InsertHistoryPlayer(ctx context.Context, arg InsertHistoryPlayerParams) error
	ListRecentHistory(ctx context.Context, limit int32) ([]GameHistory, error)
}

// Repository persists finished games.
type Repository struct {
	db      sqlutil.TxBeginner
	queries *Queries
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		db:      db,
		queries: New(db),
	}
}

// Record stores result and its leaderboard in one transaction.
func (r *Repository) Record(ctx context.Context, result models.GameResult) error {
	id := uuid.New()
	err := sqlutil.Run(ctx, r.db, r.queries.WithTx, func(q *Queries) error {
		return insertResult(ctx, q, id, result)
	})
	if err != nil {
		return fmt.Errorf("failed to record game history: %w", err)
	}

	log.Info().
		Str("room_id", result.RoomID).
		Str("game_id", result.GameID).
		Str("history_id", id.String()).
		Int("players", len(result.Scores)).
		Msg("game history recorded")
	return nil
}

// Recent returns the latest finished games, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.GameResult, error) {
	rows, err := r.queries.ListRecentHistory(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list game history: %w", err)
	}

	results := make([]models.GameResult, 0, len(rows))
	for _, row := range rows {
		result, err := rowToResult(row)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func insertResult(ctx context.Context, q Querier, id uuid.UUID, result models.GameResult) error {
	scores, err := sqlutil.ToNullRawMessage(result.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}

	if err := q.InsertGameHistory(ctx, InsertGameHistoryParams{
		ID:        id,
		RoomID:    result.RoomID,
		GameID:    result.GameID,
		GameTitle: result.GameTitle,
		StartedAt: sqlutil.ToSqlTime(result.StartedAt),
		EndedAt:   result.EndedAt,
		Scores:    scores,
	}); err != nil {
		return fmt.Errorf("insert game history: %w", err)
	}

	for i, s := range result.Scores {
		if err := q.InsertHistoryPlayer(ctx, InsertHistoryPlayerParams{
			HistoryID:  id,
			Rank:       int32(i + 1),
			Name:       s.Name,
			Score:      s.Score,
			BonusCount: int32(s.BonusCount),
		}); err != nil {
			return fmt.Errorf("insert history player %s: %w", s.Name, err)
		}
	}
	return nil
}

func rowToResult(row GameHistory) (models.GameResult, error) {
	result := models.GameResult{
		RoomID:    row.RoomID,
		GameID:    row.GameID,
		GameTitle: row.GameTitle,
		StartedAt: sqlutil.FromSqlTime(row.StartedAt),
		EndedAt:   row.EndedAt,
	}
	if err := sqlutil.FromNullRawMessage(row.Scores, &result.Scores); err != nil {
		return models.GameResult{}, fmt.Errorf("decode scores of %s: %w", row.ID, err)
	}
	return result, nil
}
