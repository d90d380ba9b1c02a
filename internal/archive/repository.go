package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const schema = `
	CREATE TABLE IF NOT EXISTS chess_train_games (
		id BIGSERIAL PRIMARY KEY,
		session_uuid TEXT NOT NULL UNIQUE,
		player_side TEXT NOT NULL,
		preset TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL,
		result_method TEXT NOT NULL DEFAULT '',
		opening TEXT NOT NULL DEFAULT '',
		start_fen TEXT NOT NULL,
		moves_uci JSONB NOT NULL,
		moves_san JSONB NOT NULL,
		pgn TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0
	)`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// OpenPostgres opens databaseURL with the pq driver, pings it and creates the
// games table when missing.
func OpenPostgres(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

func (r *repository) InsertGame(ctx context.Context, game *Game) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil chess game payload")
	}

	movesUCI, err := json.Marshal(nonNil(game.MovesUCI))
	if err != nil {
		return 0, fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(nonNil(game.MovesSAN))
	if err != nil {
		return 0, fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO chess_train_games (
			session_uuid,
			player_side,
			preset,
			result,
			result_method,
			opening,
			start_fen,
			moves_uci,
			moves_san,
			pgn,
			started_at,
			ended_at,
			duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9::jsonb, $10, $11, $12, $13)
		ON CONFLICT (session_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		game.SessionUUID,
		game.PlayerSide,
		game.Preset,
		game.Result,
		game.ResultMethod,
		game.Opening,
		game.StartFEN,
		movesUCI,
		movesSAN,
		game.PGN,
		game.StartedAt,
		game.EndedAt,
		game.Duration().Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert chess game: %w", err)
	}
	return id.Int64, nil
}

const selectColumns = `
		SELECT
			id,
			session_uuid,
			player_side,
			preset,
			result,
			result_method,
			opening,
			start_fen,
			moves_uci,
			moves_san,
			pgn,
			started_at,
			ended_at
		FROM chess_train_games`

func (r *repository) GetRecentGames(ctx context.Context, limit int) ([]*Game, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+`
		ORDER BY ended_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select chess games: %w", err)
	}
	defer rows.Close()

	games := make([]*Game, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chess games: %w", err)
	}
	return games, nil
}

func (r *repository) GetGameBySession(ctx context.Context, sessionUUID string) (*Game, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+`
		WHERE session_uuid = $1`, sessionUUID)
	game, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGameNotFound
	}
	return game, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(s scanner) (*Game, error) {
	var (
		game         Game
		movesUCIJSON []byte
		movesSANJSON []byte
	)
	if err := s.Scan(
		&game.ID,
		&game.SessionUUID,
		&game.PlayerSide,
		&game.Preset,
		&game.Result,
		&game.ResultMethod,
		&game.Opening,
		&game.StartFEN,
		&movesUCIJSON,
		&movesSANJSON,
		&game.PGN,
		&game.StartedAt,
		&game.EndedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan chess game: %w", err)
	}
	if err := json.Unmarshal(movesUCIJSON, &game.MovesUCI); err != nil {
		return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
	}
	if err := json.Unmarshal(movesSANJSON, &game.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	return &game, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
