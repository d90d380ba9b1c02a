package archive

import (
	"context"
	"sort"
	"sync"
)

// memrepo keeps games in process memory when no database is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID    int64
	games     []*Game
	bySession map[string]*Game
}

func NewMemoryRepository() Repository {
	return &memrepo{bySession: make(map[string]*Game)}
}

func (m *memrepo) InsertGame(ctx context.Context, game *Game) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bySession[game.SessionUUID]; exists {
		return 0, ErrDuplicateGame
	}

	m.nextID++
	copy := cloneGame(game)
	copy.ID = m.nextID

	m.games = append(m.games, copy)
	m.bySession[game.SessionUUID] = copy
	return copy.ID, nil
}

func (m *memrepo) GetRecentGames(ctx context.Context, limit int) ([]*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.games) == 0 {
		return []*Game{}, nil
	}
	items := make([]*Game, 0, len(m.games))
	for _, g := range m.games {
		items = append(items, cloneGame(g))
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GetGameBySession(ctx context.Context, sessionUUID string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.bySession[sessionUUID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return cloneGame(g), nil
}

func cloneGame(g *Game) *Game {
	dup := *g
	dup.MovesUCI = append([]string(nil), g.MovesUCI...)
	dup.MovesSAN = append([]string(nil), g.MovesSAN...)
	return &dup
}
