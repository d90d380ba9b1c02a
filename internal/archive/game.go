// Package archive stores finished games.
package archive

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateGame = errors.New("chess game already exists")
	ErrGameNotFound  = errors.New("chess game not found")
)

type Game struct {
	ID           int64
	SessionUUID  string
	PlayerSide   string
	Preset       string
	Result       string
	ResultMethod string
	Opening      string
	StartFEN     string
	MovesUCI     []string
	MovesSAN     []string
	PGN          string
	StartedAt    time.Time
	EndedAt      time.Time
}

func (g *Game) Duration() time.Duration {
	if g.StartedAt.IsZero() || g.EndedAt.Before(g.StartedAt) {
		return 0
	}
	return g.EndedAt.Sub(g.StartedAt)
}

type Repository interface {
	InsertGame(ctx context.Context, game *Game) (int64, error)
	GetRecentGames(ctx context.Context, limit int) ([]*Game, error)
	GetGameBySession(ctx context.Context, sessionUUID string) (*Game, error)
}
