package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/park285/chess-train/internal/chessbuilder"
	appcfg "github.com/park285/chess-train/internal/config"
	"github.com/park285/chess-train/internal/msgcat"
	"github.com/park285/chess-train/internal/obslog"
	"github.com/park285/chess-train/internal/position"
	"github.com/park285/chess-train/internal/service/trainer"
)

func main() {
	configFile := flag.String("configFile", "", "path to the YAML settings file")
	resumeGame := flag.String("resumeGame", "", "snapshot to resume: a file path, or a key when a Redis URL is configured")
	messages := flag.String("messages", "", "directory with YAML message overrides")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	if err := run(*configFile, *resumeGame, *messages); err != nil {
		obslog.L().Error("chess_train_failed", zap.Error(err))
		obslog.Sync()
		fmt.Fprintf(os.Stderr, "chess-train: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, resumeGame, messages string) error {
	logger := obslog.L()

	cfg, err := appcfg.Load(configFile)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	catalog, err := msgcat.New(messages)
	if err != nil {
		return fmt.Errorf("messages: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := chessbuilder.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := deps.Close(); cerr != nil {
			logger.Warn("shutdown_close_failed", zap.Error(cerr))
		}
	}()

	var store *position.Store
	if resumeGame != "" {
		if store, err = deps.Resume(ctx, resumeGame); err != nil {
			return fmt.Errorf("resume %s: %w", resumeGame, err)
		}
	}

	side, fixed := cfg.PlayerSide()
	side = chooseSide(side, fixed, store)
	if store != nil && side != store.Turn() {
		logger.Warn("resume_side_differs", zap.String("player_side", side.String()), zap.String("to_move", store.Turn().String()))
	}
	coord, err := trainer.New(trainer.Config{
		PlayerSide:     side,
		Preset:         cfg.Engine.Preset,
		Limits:         cfg.SearchLimits(),
		Options:        cfg.EngineOptions(),
		ShowScore:      cfg.Game.ShowScore,
		MateSaturation: cfg.Score.MateSaturation,
		BoardDir:       cfg.Game.BoardDir,
		ResumedFrom:    resumeGame,
	}, trainer.Deps{
		Engine:    deps.Engine,
		Store:     store,
		Recorder:  deps.Recorder,
		Snapshots: deps.Snapshots,
		Archive:   deps.Archive,
		Exporter:  deps.Renderer,
		Catalog:   catalog,
		Logger:    logger.Named("trainer"),
	})
	if err != nil {
		return err
	}

	state, err := coord.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted", zap.String("state", state.String()))
		return nil
	}
	return err
}

// chooseSide keeps a configured side. Without one, a resumed game goes on with
// the side to move, because games are only saved on the player's turn, and a
// new game picks at random.
func chooseSide(side position.Side, fixed bool, resumed *position.Store) position.Side {
	switch {
	case fixed:
		return side
	case resumed != nil:
		return resumed.Turn()
	default:
		return randomSide()
	}
}

func randomSide() position.Side {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil || n.Int64() == 0 {
		return position.White
	}
	return position.Black
}
