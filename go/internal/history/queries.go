package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// GameHistory is a row of game_history.
type GameHistory struct {
	ID        uuid.UUID
	RoomID    string
	GameID    string
	GameTitle string
	StartedAt sql.NullTime
	EndedAt   time.Time
	Scores    pqtype.NullRawMessage
}

const insertGameHistory = `
INSERT INTO game_history (id, room_id, game_id, game_title, started_at, ended_at, scores)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type InsertGameHistoryParams struct {
	ID        uuid.UUID
	RoomID    string
	GameID    string
	GameTitle string
	StartedAt sql.NullTime
	EndedAt   time.Time
	Scores    pqtype.NullRawMessage
}

func (q *Queries) InsertGameHistory(ctx context.Context, arg InsertGameHistoryParams) error {
	_, err := q.db.ExecContext(ctx, insertGameHistory,
		arg.ID,
		arg.RoomID,
		arg.GameID,
		arg.GameTitle,
		arg.StartedAt,
		arg.EndedAt,
		arg.Scores,
	)
	return err
}

const insertHistoryPlayer = `
INSERT INTO game_history_players (history_id, rank, name, score, bonus_count)
VALUES ($1, $2, $3, $4, $5)
`

type InsertHistoryPlayerParams struct {
	HistoryID  uuid.UUID
	Rank       int32
	Name       string
	Score      float64
	BonusCount int32
}

func (q *Queries) InsertHistoryPlayer(ctx context.Context, arg InsertHistoryPlayerParams) error {
	_, err := q.db.ExecContext(ctx, insertHistoryPlayer,
		arg.HistoryID,
		arg.Rank,
		arg.Name,
		arg.Score,
		arg.BonusCount,
	)
	return err
}

const listRecentHistory = `
SELECT id, room_id, game_id, game_title, started_at, ended_at, scores
FROM game_history
ORDER BY ended_at DESC
LIMIT $1
`

func (q *Queries) ListRecentHistory(ctx context.Context, limit int32) ([]GameHistory, error) {
	rows, err := q.db.QueryContext(ctx, listRecentHistory, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []GameHistory
	for rows.Next() {
		var i GameHistory
		if err := rows.Scan(
			&i.ID,
			&i.RoomID,
			&i.GameID,
			&i.GameTitle,
			&i.StartedAt,
			&i.EndedAt,
			&i.Scores,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
