package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mcdev12/quizhub/go/internal/models"
)

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	getGameSQL = `
		SELECT id, title, description, duration_sec, questions, updated_at
		FROM games
		WHERE id = $1`

	listGamesSQL = `
		SELECT id, title, description, duration_sec, jsonb_array_length(questions), updated_at
		FROM games
		ORDER BY title`

	upsertGameSQL = `
		INSERT INTO games (id, title, description, duration_sec, questions, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			duration_sec = EXCLUDED.duration_sec,
			questions = EXCLUDED.questions,
			updated_at = now()`
)

// PostgresStore reads games from the games table and caches full definitions
// until they are invalidated.
type PostgresStore struct {
	db Querier

	mu    sync.RWMutex
	cache map[string]models.Game
}

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db, cache: make(map[string]models.Game)}
}

func (s *PostgresStore) GetGame(ctx context.Context, id string) (*models.Game, error) {
	s.mu.RLock()
	cached, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		clone := cached.Clone()
		return &clone, nil
	}

	game, err := scanGame(s.db.QueryRow(ctx, getGameSQL, id))
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}
	if err := Validate(game); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[id] = game.Clone()
	s.mu.Unlock()

	return game, nil
}

func (s *PostgresStore) ListGames(ctx context.Context) ([]models.GameSummary, error) {
	rows, err := s.db.Query(ctx, listGamesSQL)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []models.GameSummary
	for rows.Next() {
		var g models.GameSummary
		if err := rows.Scan(&g.ID, &g.Title, &g.Description, &g.Duration, &g.QuestionCount, &g.LastModified); err != nil {
			return nil, fmt.Errorf("scan game summary: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return out, nil
}

// SaveGame validates and upserts game. Used by the import command.
func (s *PostgresStore) SaveGame(ctx context.Context, game *models.Game) error {
	if err := Validate(game); err != nil {
		return err
	}
	questions, err := json.Marshal(game.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	if _, err := s.db.Exec(ctx, upsertGameSQL, game.ID, game.Title, game.Description, game.Duration, questions); err != nil {
		return fmt.Errorf("save game %s: %w", game.ID, err)
	}
	s.Invalidate(game.ID)
	return nil
}

// Invalidate drops a cached game. An empty id clears the whole cache.
func (s *PostgresStore) Invalidate(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.cache = make(map[string]models.Game)
		return
	}
	delete(s.cache, id)
}

func scanGame(row pgx.Row) (*models.Game, error) {
	var (
		game      models.Game
		questions []byte
	)
	err := row.Scan(&game.ID, &game.Title, &game.Description, &game.Duration, &questions, &game.LastModified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &game.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return &game, nil
}
