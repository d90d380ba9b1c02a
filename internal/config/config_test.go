package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/park285/chess-train/internal/chess"
	"github.com/park285/chess-train/internal/chess/uci"
	"github.com/park285/chess-train/internal/position"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"STOCKFISH_PATH", "CHESS_TRAIN_LOG_FILE", "CHESS_TRAIN_PRESET", "CHESS_TRAIN_SHOW_SCORE", "REDIS_URL", "DATABASE_URL"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "stockfish", cfg.Engine.Path)
	require.Equal(t, chess.SearchLimits{Time: time.Second}, cfg.SearchLimits())
	require.Empty(t, cfg.EngineOptions())
	require.Equal(t, 0.99, cfg.Score.MateSaturation)
	require.Equal(t, 2*time.Second, cfg.Engine.TimeoutGrace.Duration())
	_, fixed := cfg.PlayerSide()
	require.False(t, fixed)
	require.Empty(t, cfg.Game.ExportFile)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
player:
  side: BLACK
game:
  show_score: true
  export_file: games.txt
engine:
  path: /opt/stockfish
  options:
    Threads: 4
    Ponder: false
    EvalFile: nn.nnue
  limits:
    time: 0.5
    depth: 14
  timeout_grace: 750ms
score:
  mate_saturation: 0.95
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	side, fixed := cfg.PlayerSide()
	require.True(t, fixed)
	require.Equal(t, position.Black, side)
	require.True(t, cfg.Game.ShowScore)
	require.Equal(t, "games.txt", cfg.Game.ExportFile)
	require.Equal(t, chess.SearchLimits{Time: 500 * time.Millisecond, Depth: 14}, cfg.SearchLimits())
	require.Equal(t, 750*time.Millisecond, cfg.Engine.TimeoutGrace.Duration())
	require.Equal(t, 0.95, cfg.Score.MateSaturation)

	opts := cfg.EngineOptions()
	require.Equal(t, uci.IntOption(4), opts["Threads"])
	require.Equal(t, uci.BoolOption(false), opts["Ponder"])
	require.Equal(t, uci.StringOption("nn.nnue"), opts["EvalFile"])
}

func TestPresetFillsUnsetFields(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
engine:
  preset: level4
  options:
    Skill Level: 9
  limits:
    depth: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, chess.SearchLimits{Time: 140 * time.Millisecond, Depth: 3}, cfg.SearchLimits())
	opts := cfg.EngineOptions()
	require.Equal(t, uci.IntOption(9), opts["Skill Level"])
	require.Equal(t, uci.IntOption(32), opts["Hash"])
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STOCKFISH_PATH", "/usr/games/stockfish")
	t.Setenv("CHESS_TRAIN_LOG_FILE", "/tmp/train.txt")
	t.Setenv("CHESS_TRAIN_SHOW_SCORE", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("DATABASE_URL", "postgres://localhost/chess")

	cfg, err := Load(writeConfig(t, "engine:\n  path: ignored\n"))
	require.NoError(t, err)
	require.Equal(t, "/usr/games/stockfish", cfg.Engine.Path)
	require.Equal(t, "/tmp/train.txt", cfg.Game.ExportFile)
	require.True(t, cfg.Game.ShowScore)
	require.Equal(t, "redis://localhost:6379/1", cfg.Snapshot.RedisURL)
	require.Equal(t, "postgres://localhost/chess", cfg.Archive.DatabaseURL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"side":       "player:\n  side: purple\n",
		"negative":   "engine:\n  limits:\n    depth: -1\n",
		"option":     "engine:\n  options:\n    Hash: [1, 2]\n",
		"skill":      "engine:\n  options:\n    Skill Level: 40\n",
		"saturation": "score:\n  mate_saturation: 0.4\n",
		"preset":     "engine:\n  preset: level99\n",
		"unknown":    "engine:\n  pth: stockfish\n",
		"time":       "engine:\n  limits:\n    time: soon\n",
	}
	for name, body := range cases {
		_, err := Load(writeConfig(t, body))
		require.Error(t, err, name)
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
