package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/park285/chess-train/internal/chess"
	"github.com/park285/chess-train/internal/chessbuilder"
	appcfg "github.com/park285/chess-train/internal/config"
	"github.com/park285/chess-train/internal/position"
	"github.com/park285/chess-train/internal/transcript"
)

// enginecheck starts the configured engine and stores once and reports what
// they answer, without starting a game.
func main() {
	configFile := flag.String("configFile", "", "path to the YAML settings file")
	fen := flag.String("fen", "", "position to check instead of the start position")
	recent := flag.Int("recent", 0, "list this many recently archived games")
	session := flag.String("session", "", "print the archived PGN of this session id")
	flag.Parse()

	cfg, err := appcfg.Load(*configFile)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deps, err := chessbuilder.New(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("init error: %v", err)
	}
	defer deps.Close()
	log.Printf("engine ok: path=%s options=%v", cfg.Engine.Path, cfg.EngineOptions().Names())

	if *recent > 0 {
		games, err := deps.Archive.GetRecentGames(ctx, *recent)
		if err != nil {
			log.Fatalf("archive error: %v", err)
		}
		log.Printf("archive ok: %d game(s)", len(games))
		for _, g := range games {
			log.Printf("  %s %s %s plies=%d took=%s", g.SessionUUID, g.Result, g.Opening, len(g.MovesUCI), g.Duration().Round(time.Second))
		}
	}
	if *session != "" {
		g, err := deps.Archive.GetGameBySession(ctx, *session)
		if err != nil {
			log.Fatalf("archive error: %v", err)
		}
		log.Printf("archived game %s:\n%s", g.SessionUUID, g.PGN)
	}

	store := position.New()
	if *fen != "" {
		if store, err = position.FromFEN(*fen); err != nil {
			log.Fatalf("fen error: %v", err)
		}
	}
	pos := store.Current()

	limits := cfg.SearchLimits()
	goCmd, err := limits.GoCommand()
	if err != nil {
		log.Fatalf("limits error: %v", err)
	}
	log.Printf("search: %s", goCmd)

	started := time.Now()
	move, err := deps.Engine.RequestMove(ctx, pos, limits, nil)
	if err != nil {
		log.Printf("move error: %v", err)
		return
	}
	log.Printf("bestmove ok: %s (%s)", move, time.Since(started).Round(time.Millisecond))

	score, err := deps.Engine.RequestEvaluation(ctx, pos, limits)
	if err != nil {
		log.Printf("evaluation error: %v", err)
		return
	}
	prob, err := chess.SaturatedEstimate(score, pos.Turn, cfg.Score.MateSaturation)
	if err != nil {
		log.Printf("probability error: %v", err)
		return
	}
	log.Printf("evaluation ok: cp=%d mate=%d white=%.3f black=%.3f", score.CP, score.Mate, prob.White, prob.Black)

	key, err := deps.Snapshots.Save(ctx, "enginecheck"+transcript.SnapshotExt, pos)
	if err != nil {
		log.Printf("snapshot error: %v", err)
		return
	}
	log.Printf("snapshot ok: %s", key)
}
