package chessbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/chess-train/internal/archive"
	"github.com/park285/chess-train/internal/board"
	corechess "github.com/park285/chess-train/internal/chess"
	"github.com/park285/chess-train/internal/config"
	"github.com/park285/chess-train/internal/position"
	"github.com/park285/chess-train/internal/transcript"
)

const dialTimeout = 5 * time.Second

// Deps is everything a trainer session needs besides the terminal.
type Deps struct {
	Engine    *corechess.Engine
	Recorder  *transcript.Recorder
	Snapshots transcript.SnapshotStore
	Archive   archive.Repository
	Renderer  *board.Renderer

	closers []func() error
}

// New builds the stores first and the engine last, so a failing store never
// leaves an engine process behind.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (_ *Deps, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	deps := &Deps{Renderer: board.NewRenderer()}
	defer func() {
		if err != nil {
			_ = deps.Close()
		}
	}()

	// Transcript (optional)
	deps.Recorder, err = transcript.Open(cfg.Game.ExportFile)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	deps.closers = append(deps.closers, deps.Recorder.Close)

	// Snapshots: Redis when configured, files otherwise
	if strings.TrimSpace(cfg.Snapshot.RedisURL) != "" {
		dctx, cancel := context.WithTimeout(ctx, dialTimeout)
		var rdb *redis.Client
		rdb, err = transcript.DialRedis(dctx, cfg.Snapshot.RedisURL)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("init snapshot store: %w", err)
		}
		deps.closers = append(deps.closers, rdb.Close)
		deps.Snapshots = transcript.NewRedisStore(rdb)
		logger.Info("snapshot_store", zap.String("kind", "redis"))
	} else {
		deps.Snapshots = transcript.NewFileStore(cfg.Game.SnapshotDir)
		logger.Info("snapshot_store", zap.String("kind", "file"), zap.String("dir", cfg.Game.SnapshotDir))
	}

	// Archive: PostgreSQL when configured, in-process otherwise
	if strings.TrimSpace(cfg.Archive.DatabaseURL) != "" {
		dctx, cancel := context.WithTimeout(ctx, dialTimeout)
		db, derr := archive.OpenPostgres(dctx, cfg.Archive.DatabaseURL)
		cancel()
		if derr != nil {
			err = fmt.Errorf("init archive: %w", derr)
			return nil, err
		}
		deps.closers = append(deps.closers, db.Close)
		deps.Archive = archive.NewRepository(db)
	} else {
		deps.Archive = archive.NewMemoryRepository()
	}

	// Engine
	deps.Engine, err = corechess.NewEngine(ctx, corechess.EngineConfig{
		BinaryPath:   cfg.Engine.Path,
		Args:         cfg.Engine.Args,
		Options:      cfg.EngineOptions(),
		TimeoutGrace: cfg.Engine.TimeoutGrace.Duration(),
		Logger:       logger.Named("engine"),
	})
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	deps.closers = append(deps.closers, deps.Engine.Close)
	return deps, nil
}

// Resume restores a saved position by file path or Redis key.
func (d *Deps) Resume(ctx context.Context, name string) (*position.Store, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("empty snapshot name")
	}
	pos, err := d.Snapshots.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return position.FromFEN(pos.FEN)
}

// Close releases everything New opened, newest first.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
