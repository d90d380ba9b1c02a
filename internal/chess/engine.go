package chess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-train/internal/chess/uci"
	"github.com/park285/chess-train/internal/position"
)

var (
	ErrEngineUnavailable = errors.New("chess engine unavailable")
	ErrEngineTimeout     = errors.New("chess engine timeout")
)

// EngineUnavailableError reports a failed engine request. It matches
// ErrEngineUnavailable, and ErrEngineTimeout when the search ran out of time.
type EngineUnavailableError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *EngineUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("chess engine unavailable during %s", e.Op)
	}
	return fmt.Sprintf("chess engine unavailable during %s: %v", e.Op, e.Err)
}

func (e *EngineUnavailableError) Unwrap() error { return e.Err }

func (e *EngineUnavailableError) Is(target error) bool {
	if target == ErrEngineUnavailable {
		return true
	}
	return e.Timeout && target == ErrEngineTimeout
}

func mapEngineError(op string, err error) error {
	if err == nil {
		return &EngineUnavailableError{Op: op}
	}
	var unavailable *EngineUnavailableError
	if errors.As(err, &unavailable) {
		return err
	}
	timeout := errors.Is(err, context.DeadlineExceeded) || engineTimeoutMessage(err)
	return &EngineUnavailableError{Op: op, Timeout: timeout, Err: err}
}

func engineTimeoutMessage(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout")
}

type Score = uci.Score

type EngineConfig struct {
	BinaryPath string
	Args       []string
	Env        []string
	// Options are applied at startup and again after every restart.
	Options      uci.Options
	TimeoutGrace time.Duration
	Stderr       io.Writer
	Logger       *zap.Logger
}

// Engine owns one engine process. A request that fails tears the process
// down; the next request starts a fresh one. Positions are always sent in
// full, so nothing is lost across a restart.
type Engine struct {
	cfg    EngineConfig
	base   context.Context
	logger *zap.Logger

	mu      sync.Mutex
	session *uci.Session
	closed  bool
}

// NewEngine starts the process and completes the handshake. ctx bounds the
// lifetime of every process the engine starts.
func NewEngine(ctx context.Context, cfg EngineConfig) (*Engine, error) {
	if strings.TrimSpace(cfg.BinaryPath) == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{cfg: cfg, base: ctx, logger: logger}
	if _, err := e.ensureSession(); err != nil {
		return nil, mapEngineError("start", err)
	}
	return e, nil
}

func (e *Engine) ensureSession() (*uci.Session, error) {
	if e.closed {
		return nil, uci.ErrSessionClosed
	}
	if e.session != nil {
		return e.session, nil
	}
	session, err := uci.NewSession(e.base, uci.Config{
		BinaryPath:   e.cfg.BinaryPath,
		Args:         e.cfg.Args,
		Env:          e.cfg.Env,
		Stderr:       e.cfg.Stderr,
		Options:      e.cfg.Options,
		TimeoutGrace: e.cfg.TimeoutGrace,
		Logger:       e.logger,
	})
	if err != nil {
		return nil, err
	}
	e.session = session
	return session, nil
}

// discard kills the current process after a failure.
func (e *Engine) discard(op string, cause error) {
	if e.session == nil {
		return
	}
	e.logger.Warn("discarding engine process",
		zap.String("op", op),
		zap.Error(cause),
	)
	_ = e.session.Close()
	e.session = nil
}

func (e *Engine) search(ctx context.Context, op string, pos position.Position, limits SearchLimits, opts uci.Options) (uci.SearchResponse, error) {
	limits, err := NormalizeLimits(limits)
	if err != nil {
		return uci.SearchResponse{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.ensureSession()
	if err != nil {
		return uci.SearchResponse{}, mapEngineError(op, err)
	}
	if len(opts) > 0 {
		if err := opts.Validate(); err != nil {
			return uci.SearchResponse{}, err
		}
		if err := session.SetOptions(ctx, e.cfg.Options.Merge(opts)); err != nil {
			e.discard(op, err)
			return uci.SearchResponse{}, mapEngineError(op, err)
		}
	}

	start := time.Now()
	resp, err := session.Search(ctx, uci.SearchRequest{FEN: pos.FEN, Limits: limits.toUCI()})
	if err != nil {
		e.discard(op, err)
		return uci.SearchResponse{}, mapEngineError(op, err)
	}
	e.logger.Debug("engine search finished",
		zap.String("op", op),
		zap.String("fen", pos.FEN),
		zap.String("bestmove", resp.BestMove),
		zap.Int("depth", resp.Depth),
		zap.Int("score_cp", resp.Score.Centipawns()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

// RequestMove asks for the engine's move in pos. Options that differ from the
// ones the process already has are sent before the search.
func (e *Engine) RequestMove(ctx context.Context, pos position.Position, limits SearchLimits, opts uci.Options) (string, error) {
	resp, err := e.search(ctx, "move", pos, limits, opts)
	if err != nil {
		return "", err
	}
	return resp.BestMove, nil
}

// RequestEvaluation returns the last score the engine reported while
// searching pos, relative to the side to move.
func (e *Engine) RequestEvaluation(ctx context.Context, pos position.Position, limits SearchLimits) (Score, error) {
	resp, err := e.search(ctx, "evaluation", pos, limits, nil)
	if err != nil {
		return Score{}, err
	}
	if !resp.Score.Set {
		return Score{}, &NoEvaluationError{Reason: "engine reported no score"}
	}
	return resp.Score, nil
}

// NewGame tells the engine the next positions belong to a fresh game.
func (e *Engine) NewGame(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	session, err := e.ensureSession()
	if err != nil {
		return mapEngineError("new game", err)
	}
	if err := session.NewGame(ctx); err != nil {
		e.discard("new game", err)
		return mapEngineError("new game", err)
	}
	return nil
}

// Close stops the engine process. Later requests fail; repeated calls are no-ops.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	return err
}
