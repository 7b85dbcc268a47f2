package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizzler-live/internal/domain"
)

// ResultsArchive persists final scoreboards as JSONB rows keyed by room code.
type ResultsArchive struct {
	pool *pgxpool.Pool
}

func NewResultsArchive(pool *pgxpool.Pool) *ResultsArchive {
	return &ResultsArchive{pool: pool}
}

func (a *ResultsArchive) Archive(ctx context.Context, board domain.Scoreboard) error {
	data, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("marshal scoreboard: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO room_results (code, data, closed_at)
		 VALUES ($1, $2::jsonb, $3)
		 ON CONFLICT (code) DO UPDATE SET data = EXCLUDED.data, closed_at = EXCLUDED.closed_at`,
		board.RoomCode, data, board.ClosedAt)
	if err != nil {
		return fmt.Errorf("archive scoreboard: %w", err)
	}
	return nil
}

func (a *ResultsArchive) LoadScoreboard(ctx context.Context, code string) (domain.Scoreboard, error) {
	var raw []byte
	err := a.pool.QueryRow(ctx, `SELECT data FROM room_results WHERE code=$1`, code).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Scoreboard{}, domain.ErrResultsNotFound
	}
	if err != nil {
		return domain.Scoreboard{}, fmt.Errorf("load scoreboard: %w", err)
	}
	var board domain.Scoreboard
	if err := json.Unmarshal(raw, &board); err != nil {
		return domain.Scoreboard{}, fmt.Errorf("unmarshal scoreboard: %w", err)
	}
	return board, nil
}
