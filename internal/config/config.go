package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/park285/chess-train/internal/chess"
	"github.com/park285/chess-train/internal/chess/uci"
	"github.com/park285/chess-train/internal/position"
)

const (
	defaultEnginePath   = "stockfish"
	defaultSnapshotDir  = "."
	defaultTimeoutGrace = 2 * time.Second
)

// Seconds decodes either a number of seconds or a Go duration string.
type Seconds time.Duration

func (s *Seconds) UnmarshalYAML(node *yaml.Node) error {
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*s = Seconds(time.Duration(f * float64(time.Second)))
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %q is neither seconds nor a duration", node.Line, raw)
	}
	*s = Seconds(d)
	return nil
}

func (s Seconds) Duration() time.Duration { return time.Duration(s) }

type PlayerConfig struct {
	// Side is white, black or random. Empty means random.
	Side string `yaml:"side"`
}

type GameConfig struct {
	ShowScore bool `yaml:"show_score"`
	// ExportFile receives the transcript. Empty disables it.
	ExportFile  string `yaml:"export_file"`
	SnapshotDir string `yaml:"snapshot_dir"`
	BoardDir    string `yaml:"board_dir"`
}

type LimitsConfig struct {
	Time  Seconds `yaml:"time"`
	Depth int     `yaml:"depth"`
	Nodes int     `yaml:"nodes"`
	Mate  int     `yaml:"mate"`
}

type EngineConfig struct {
	Path         string         `yaml:"path"`
	Args         []string       `yaml:"args"`
	Preset       string         `yaml:"preset"`
	Options      map[string]any `yaml:"options"`
	Limits       LimitsConfig   `yaml:"limits"`
	TimeoutGrace Seconds        `yaml:"timeout_grace"`

	options uci.Options
}

type ScoreConfig struct {
	MateSaturation float64 `yaml:"mate_saturation"`
}

type SnapshotConfig struct {
	RedisURL string `yaml:"redis_url"`
}

type ArchiveConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

type AppConfig struct {
	Player   PlayerConfig   `yaml:"player"`
	Game     GameConfig     `yaml:"game"`
	Engine   EngineConfig   `yaml:"engine"`
	Score    ScoreConfig    `yaml:"score"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

func defaults() *AppConfig {
	return &AppConfig{
		Game:   GameConfig{SnapshotDir: defaultSnapshotDir},
		Engine: EngineConfig{Path: defaultEnginePath, TimeoutGrace: Seconds(defaultTimeoutGrace)},
		Score:  ScoreConfig{MateSaturation: chess.DefaultMateSaturation},
	}
}

// Load reads the YAML file at path, if any, then applies environment
// overrides and validates the result.
func Load(path string) (*AppConfig, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(raw []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("STOCKFISH_PATH")); v != "" {
		cfg.Engine.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_TRAIN_LOG_FILE")); v != "" {
		cfg.Game.ExportFile = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_TRAIN_PRESET")); v != "" {
		cfg.Engine.Preset = v
	}
	if v := strings.TrimSpace(os.Getenv("CHESS_TRAIN_SHOW_SCORE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Game.ShowScore = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.Snapshot.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Archive.DatabaseURL = v
	}
}

func (c *AppConfig) validate() error {
	if _, _, err := c.side(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Engine.Path) == "" {
		return errors.New("engine.path is required")
	}
	if c.Engine.Preset != "" {
		preset, err := chess.GetPreset(c.Engine.Preset)
		if err != nil {
			return err
		}
		if err := chess.ValidatePreset(preset); err != nil {
			return fmt.Errorf("preset %s: %w", preset.Name, err)
		}
	}
	if _, err := chess.NormalizeLimits(c.explicitLimits()); err != nil {
		return fmt.Errorf("engine.limits: %w", err)
	}
	if c.Engine.TimeoutGrace < 0 {
		return fmt.Errorf("engine.timeout_grace must be >= 0")
	}

	opts := make(uci.Options, len(c.Engine.Options))
	for name, raw := range c.Engine.Options {
		v, err := uci.ParseOptionValue(raw)
		if err != nil {
			return fmt.Errorf("engine.options[%s]: %w", name, err)
		}
		opts[name] = v
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("engine.options: %w", err)
	}
	c.Engine.options = opts

	if s := c.Score.MateSaturation; !(s > 0.5 && s <= 1) {
		return fmt.Errorf("score.mate_saturation: %w: %v", chess.ErrInvalidSaturation, s)
	}
	return nil
}

func (c *AppConfig) side() (position.Side, bool, error) {
	switch strings.ToLower(strings.TrimSpace(c.Player.Side)) {
	case "", "random":
		return position.White, false, nil
	}
	s, err := position.ParseSide(c.Player.Side)
	if err != nil {
		return position.White, false, fmt.Errorf("player.side: %w", err)
	}
	return s, true, nil
}

// PlayerSide returns the configured side; ok is false when it is random.
func (c *AppConfig) PlayerSide() (side position.Side, ok bool) {
	side, ok, _ = c.side()
	return side, ok
}

func (c *AppConfig) explicitLimits() chess.SearchLimits {
	return chess.SearchLimits{
		Time:  c.Engine.Limits.Time.Duration(),
		Depth: c.Engine.Limits.Depth,
		Nodes: c.Engine.Limits.Nodes,
		Mate:  c.Engine.Limits.Mate,
	}
}

func (c *AppConfig) preset() (chess.DifficultyPreset, bool) {
	if c.Engine.Preset == "" {
		return chess.DifficultyPreset{}, false
	}
	p, err := chess.GetPreset(c.Engine.Preset)
	return p, err == nil
}

// SearchLimits returns the explicit limits with unset fields taken from the
// preset, defaulting to one second per move.
func (c *AppConfig) SearchLimits() chess.SearchLimits {
	limits := c.explicitLimits()
	if p, ok := c.preset(); ok {
		limits = limits.Merge(p.Limits())
	}
	normalized, err := chess.NormalizeLimits(limits)
	if err != nil {
		return chess.SearchLimits{Time: chess.DefaultMoveTime}
	}
	return normalized
}

// EngineOptions returns the preset options overridden by explicit ones.
func (c *AppConfig) EngineOptions() uci.Options {
	base := uci.Options{}
	if p, ok := c.preset(); ok {
		base = p.Options()
	}
	return base.Merge(c.Engine.options)
}
