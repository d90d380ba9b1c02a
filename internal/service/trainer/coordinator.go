package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/chess-train/internal/archive"
	"github.com/park285/chess-train/internal/board"
	"github.com/park285/chess-train/internal/chess"
	"github.com/park285/chess-train/internal/chess/uci"
	"github.com/park285/chess-train/internal/msgcat"
	"github.com/park285/chess-train/internal/position"
	"github.com/park285/chess-train/internal/transcript"
)

// Engine is the subset of *chess.Engine the turn loop needs.
type Engine interface {
	RequestMove(ctx context.Context, pos position.Position, limits chess.SearchLimits, opts uci.Options) (string, error)
	RequestEvaluation(ctx context.Context, pos position.Position, limits chess.SearchLimits) (chess.Score, error)
	NewGame(ctx context.Context) error
	Close() error
}

type BoardExporter interface {
	Export(ctx context.Context, path string, b *nchess.Board, opts board.Options) error
}

type Config struct {
	PlayerSide position.Side
	Preset     string
	// Limits bound the engine's own moves and score evaluations.
	Limits chess.SearchLimits
	// HintLimits bound "bestmove" requests made on the human's behalf.
	HintLimits     chess.SearchLimits
	Options        uci.Options
	ShowScore      bool
	MateSaturation float64
	BoardDir       string
	SessionID      string
	// ResumedFrom names the snapshot the store was seeded from, if any.
	ResumedFrom string
}

type Deps struct {
	Engine    Engine
	Store     *position.Store
	Recorder  *transcript.Recorder
	Snapshots transcript.SnapshotStore
	Archive   archive.Repository
	Exporter  BoardExporter
	Catalog   *msgcat.Catalog
	In        io.Reader
	Out       io.Writer
	Logger    *zap.Logger
	Now       func() time.Time
}

// Coordinator runs one game between the human and the engine.
type Coordinator struct {
	cfg       Config
	engine    Engine
	store     *position.Store
	recorder  *transcript.Recorder
	snapshots transcript.SnapshotStore
	archive   archive.Repository
	exporter  BoardExporter
	console   *console
	input     *lineReader
	logger    *zap.Logger
	now       func() time.Time

	state     State
	startFEN  string
	startedAt time.Time
	lastMove  string
}

func New(cfg Config, deps Deps) (*Coordinator, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("chess engine is required")
	}
	limits, err := chess.NormalizeLimits(cfg.Limits)
	if err != nil {
		return nil, fmt.Errorf("engine limits: %w", err)
	}
	cfg.Limits = limits
	if cfg.HintLimits.IsZero() {
		cfg.HintLimits = chess.SearchLimits{Time: chess.DefaultMoveTime}
	}
	if cfg.HintLimits, err = chess.NormalizeLimits(cfg.HintLimits); err != nil {
		return nil, fmt.Errorf("hint limits: %w", err)
	}
	if cfg.MateSaturation == 0 {
		cfg.MateSaturation = chess.DefaultMateSaturation
	}
	if s := cfg.MateSaturation; !(s > 0.5 && s <= 1) {
		return nil, fmt.Errorf("%w: %v", chess.ErrInvalidSaturation, s)
	}
	if strings.TrimSpace(cfg.SessionID) == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.BoardDir == "" {
		cfg.BoardDir = "."
	}

	if deps.Store == nil {
		deps.Store = position.New()
	}
	if deps.Snapshots == nil {
		deps.Snapshots = transcript.NewFileStore(".")
	}
	if deps.Catalog == nil {
		deps.Catalog = msgcat.Default()
	}
	if deps.In == nil {
		deps.In = os.Stdin
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Coordinator{
		cfg:       cfg,
		engine:    deps.Engine,
		store:     deps.Store,
		recorder:  deps.Recorder,
		snapshots: deps.Snapshots,
		archive:   deps.Archive,
		exporter:  deps.Exporter,
		console:   newConsole(deps.Out, deps.Catalog),
		input:     newLineReader(deps.In),
		logger:    deps.Logger.With(zap.String("session", cfg.SessionID)),
		now:       deps.Now,
		state:     AwaitingHumanInput,
		startFEN:  deps.Store.Current().FEN,
	}, nil
}

func (c *Coordinator) State() State { return c.state }

func (c *Coordinator) SessionID() string { return c.cfg.SessionID }

// Run drives the game until it ends, is saved, or is abandoned. The engine is
// closed on every return path.
func (c *Coordinator) Run(ctx context.Context) (State, error) {
	defer c.shutdown()

	if err := c.begin(ctx); err != nil {
		c.state = Aborted
		return c.state, err
	}

	for !c.state.Done() {
		var err error
		switch c.state {
		case AwaitingHumanInput:
			err = c.humanTurn(ctx)
		case AwaitingEngineMove:
			err = c.engineTurn(ctx)
		}
		if err != nil {
			c.state = Aborted
			c.logger.Error("session_failed", zap.Error(err))
			return c.state, err
		}
	}
	c.logger.Info("session_finished",
		zap.String("state", c.state.String()),
		zap.Int("plies", len(c.store.History())),
	)
	return c.state, nil
}

func (c *Coordinator) shutdown() {
	c.input.close()
	if err := c.engine.Close(); err != nil {
		c.logger.Warn("engine_close_failed", zap.Error(err))
	}
}

func (c *Coordinator) begin(ctx context.Context) error {
	c.startedAt = c.now()
	header := transcript.Header{
		SessionID:  c.cfg.SessionID,
		StartedAt:  c.startedAt,
		PlayerSide: c.cfg.PlayerSide,
		Preset:     c.cfg.Preset,
		Limits:     c.cfg.Limits,
	}
	if c.cfg.ResumedFrom != "" {
		header.ResumedFrom = c.startFEN
		c.console.say(c.console.good, "game.resumed", map[string]any{
			"Source": c.cfg.ResumedFrom,
			"Turn":   c.store.Turn().String(),
		})
	}
	c.persistTranscript("header", c.recorder.WriteHeader(header))

	// A failed reset is not fatal; the next request restarts the process.
	if err := c.engine.NewGame(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn("engine_new_game_failed", zap.Error(err))
	}

	c.logger.Info("session_started",
		zap.String("player_side", c.cfg.PlayerSide.String()),
		zap.String("preset", c.cfg.Preset),
		zap.String("fen", c.startFEN),
	)
	c.console.say(c.console.plain, "game.start", map[string]any{"Side": c.cfg.PlayerSide.String()})
	c.showBoard()

	if terminal, outcome := c.store.IsTerminal(); terminal {
		return c.finish(ctx, outcome)
	}
	c.reportScore(ctx)
	c.state = c.nextState()
	return nil
}

func (c *Coordinator) nextState() State {
	if c.store.Turn() == c.cfg.PlayerSide {
		return AwaitingHumanInput
	}
	return AwaitingEngineMove
}

func (c *Coordinator) humanTurn(ctx context.Context) error {
	c.console.ask("prompt.move")
	line, err := c.input.readLine(ctx)
	if errors.Is(err, io.EOF) {
		c.abort("input_closed")
		return nil
	}
	var cmd command
	if err == nil {
		cmd, err = parseCommand(line)
	}
	if errors.Is(err, ErrMalformedInput) {
		c.logger.Debug("input_rejected", zap.String("input", line), zap.Error(err))
		c.console.say(c.console.warn, "input.malformed", nil)
		return nil
	}
	if err != nil {
		return err
	}

	switch cmd.kind {
	case cmdEmpty:
	case cmdHelp:
		c.console.say(c.console.plain, "help", nil)
	case cmdMove:
		applied, err := c.store.Apply(cmd.arg)
		if errors.Is(err, position.ErrIllegalMove) {
			c.logger.Debug("illegal_move", zap.String("move", cmd.arg))
			c.console.say(c.console.warn, "input.illegal", nil)
			return nil
		}
		if err != nil {
			return err
		}
		return c.afterPly(ctx, applied)
	case cmdBestMove:
		move, ok, err := c.obtainEngineMove(ctx, "hint", c.cfg.HintLimits, nil)
		if err != nil || !ok {
			return err
		}
		c.console.say(c.console.engine, "engine.hint", map[string]any{"Move": move})
		applied, err := c.store.Apply(move)
		if err != nil {
			return err
		}
		return c.afterPly(ctx, applied)
	case cmdSave:
		return c.save(ctx, cmd.arg)
	case cmdUndo:
		c.undo(ctx)
	case cmdBoard:
		c.showBoard()
	case cmdExport:
		c.export(ctx, cmd.arg)
	case cmdQuit:
		c.abort("quit")
	}
	return nil
}

func (c *Coordinator) engineTurn(ctx context.Context) error {
	move, ok, err := c.obtainEngineMove(ctx, "move", c.cfg.Limits, c.cfg.Options)
	if err != nil || !ok {
		return err
	}
	c.console.say(c.console.engine, "engine.plays", map[string]any{"Move": move})
	applied, err := c.store.Apply(move)
	if err != nil {
		return err
	}
	return c.afterPly(ctx, applied)
}

// obtainEngineMove asks the engine for a move until it answers with a legal
// one or the user gives up. ok is false once the session has been aborted.
func (c *Coordinator) obtainEngineMove(ctx context.Context, op string, limits chess.SearchLimits, opts uci.Options) (string, bool, error) {
	for {
		started := c.now()
		move, err := c.engine.RequestMove(ctx, c.store.Current(), limits, opts)
		if err == nil && !c.store.IsLegal(move) {
			err = &chess.EngineUnavailableError{Op: op, Err: fmt.Errorf("engine proposed illegal move %q", move)}
		}
		if err == nil {
			c.logger.Info("engine_move",
				zap.String("op", op),
				zap.String("move", move),
				zap.Duration("took", c.now().Sub(started)),
			)
			return move, true, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		if !errors.Is(err, chess.ErrEngineUnavailable) {
			return "", false, err
		}

		c.logger.Warn("engine_unavailable",
			zap.String("op", op),
			zap.Bool("timeout", errors.Is(err, chess.ErrEngineTimeout)),
			zap.Error(err),
		)
		c.console.say(c.console.fail, "engine.failed", map[string]any{"Error": err.Error()})
		retry, err := c.askRetry(ctx)
		if err != nil {
			return "", false, err
		}
		if !retry {
			c.abort("engine_unavailable")
			return "", false, nil
		}
	}
}

func (c *Coordinator) askRetry(ctx context.Context) (bool, error) {
	for {
		line, err := c.readAnswer(ctx, "prompt.engine_failure")
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "r", "retry":
			return true, nil
		case "a", "abort":
			return false, nil
		}
		c.console.say(c.console.warn, "engine.choice_invalid", nil)
	}
}

// readAnswer prompts with key and reads the reply, asking again after an
// over-long line.
func (c *Coordinator) readAnswer(ctx context.Context, key string) (string, error) {
	for {
		c.console.ask(key)
		line, err := c.input.readLine(ctx)
		if !errors.Is(err, ErrMalformedInput) {
			return line, err
		}
		c.logger.Debug("input_rejected", zap.Error(err))
		c.console.say(c.console.warn, "input.too_long", nil)
	}
}

func (c *Coordinator) afterPly(ctx context.Context, applied position.Applied) error {
	c.lastMove = applied.UCI
	c.showBoard()

	terminal, outcome := c.store.IsTerminal()
	annotation := ""
	if !terminal {
		annotation = c.reportScore(ctx)
	}
	c.persistTranscript("move", c.recorder.AppendMove(applied, annotation))
	c.logger.Debug("ply_applied",
		zap.String("move", applied.UCI),
		zap.String("san", applied.SAN),
		zap.String("mover", applied.Mover.String()),
	)

	if terminal {
		return c.finish(ctx, outcome)
	}
	c.state = c.nextState()
	return nil
}

// reportScore prints the win chances of the current position and returns the
// transcript annotation for them. Evaluation failures are shown and skipped.
func (c *Coordinator) reportScore(ctx context.Context) string {
	if !c.cfg.ShowScore {
		return ""
	}
	turn := c.store.Turn()
	score, err := c.engine.RequestEvaluation(ctx, c.store.Current(), c.cfg.Limits)
	if err == nil {
		var prob chess.Probability
		if prob, err = chess.SaturatedEstimate(score, turn, c.cfg.MateSaturation); err == nil {
			c.logger.Debug("score",
				zap.Int("cp", score.CP),
				zap.Int("mate", score.Mate),
				zap.Float64("player_win", prob.For(c.cfg.PlayerSide)),
			)
			if score.IsMate {
				mating, n := turn, score.Mate
				if n <= 0 {
					mating, n = turn.Other(), -n
				}
				c.console.say(c.console.engine, "score.mate", map[string]any{"Mate": n, "Side": mating.String()})
			}
			c.console.say(c.console.plain, "score.line", map[string]any{"White": prob.White * 100, "Black": prob.Black * 100})
			return fmt.Sprintf("White %.1f%% Black %.1f%%", prob.White*100, prob.Black*100)
		}
	}
	c.logger.Warn("evaluation_failed", zap.Error(err))
	c.console.say(c.console.warn, "score.unavailable", map[string]any{"Error": err.Error()})
	return ""
}

func (c *Coordinator) save(ctx context.Context, name string) error {
	for {
		target, err := c.snapshots.Save(ctx, name, c.store.Current())
		if err == nil {
			c.logger.Info("session_saved", zap.String("target", target))
			c.console.say(c.console.good, "save.done", map[string]any{"Target": target})
			c.state = Saved
			return nil
		}
		if !errors.Is(err, transcript.ErrPersistence) {
			return err
		}
		c.logger.Warn("save_failed", zap.Error(err))
		c.console.say(c.console.fail, "save.failed", map[string]any{"Error": err.Error()})

		line, err := c.readAnswer(ctx, "prompt.save_path")
		if errors.Is(err, io.EOF) {
			c.abort("input_closed")
			return nil
		}
		if err != nil {
			return err
		}
		name = strings.TrimSpace(line)
		if name == "" {
			return nil
		}
	}
}

// undo takes back plies until the human is to move again, which is normally
// the engine's reply plus the human's own move.
func (c *Coordinator) undo(ctx context.Context) {
	taken := 0
	for len(c.store.History()) > 0 {
		if err := c.store.Undo(); err != nil {
			break
		}
		taken++
		if c.store.Turn() == c.cfg.PlayerSide {
			break
		}
	}
	if taken == 0 {
		c.console.say(c.console.warn, "undo.nothing", nil)
		return
	}

	c.lastMove = ""
	if history := c.store.History(); len(history) > 0 {
		c.lastMove = history[len(history)-1]
	}
	c.persistTranscript("takeback", c.recorder.AppendComment(fmt.Sprintf("takeback %d", taken)))
	c.logger.Info("undo", zap.Int("plies", taken))
	c.console.say(c.console.good, "undo.done", map[string]any{"Plies": taken})
	c.showBoard()
	c.reportScore(ctx)
	c.state = c.nextState()
}

func (c *Coordinator) export(ctx context.Context, path string) {
	if c.exporter == nil {
		c.console.say(c.console.warn, "export.failed", map[string]any{"Error": "board export is disabled"})
		return
	}
	if path == "" {
		path = filepath.Join(c.cfg.BoardDir, board.DefaultExportName(c.now()))
	}
	opts := board.Options{
		Perspective: c.cfg.PlayerSide,
		LastMove:    c.lastMove,
		Caption:     fmt.Sprintf("%s to move", c.store.Turn()),
	}
	if err := c.exporter.Export(ctx, path, c.store.Board(), opts); err != nil {
		c.logger.Warn("export_failed", zap.String("path", path), zap.Error(err))
		c.console.say(c.console.fail, "export.failed", map[string]any{"Error": err.Error()})
		return
	}
	c.console.say(c.console.good, "export.done", map[string]any{"Path": path})
}

func (c *Coordinator) finish(ctx context.Context, outcome position.Outcome) error {
	opening := openingLabel(c.store.Opening())

	c.console.say(c.console.good, "game.over", nil)
	c.console.say(c.console.good, "game.result", map[string]any{"Result": outcome.Result})
	if outcome.Method != "" {
		c.console.say(c.console.plain, "game.method", map[string]any{"Method": outcome.Method})
	}
	if opening != "" {
		c.console.say(c.console.plain, "game.opening", map[string]any{"Opening": opening})
	}
	c.persistTranscript("result", c.recorder.WriteResult(outcome, opening))
	c.archiveGame(ctx, outcome, opening)

	c.logger.Info("game_over",
		zap.String("result", outcome.Result),
		zap.String("method", outcome.Method),
		zap.String("opening", opening),
	)
	c.state = Terminal
	return nil
}

func (c *Coordinator) archiveGame(ctx context.Context, outcome position.Outcome, opening string) {
	if c.archive == nil {
		return
	}
	game := &archive.Game{
		SessionUUID:  c.cfg.SessionID,
		PlayerSide:   c.cfg.PlayerSide.String(),
		Preset:       c.cfg.Preset,
		Result:       outcome.Result,
		ResultMethod: outcome.Method,
		Opening:      opening,
		StartFEN:     c.startFEN,
		MovesUCI:     c.store.History(),
		MovesSAN:     c.store.SAN(),
		StartedAt:    c.startedAt,
		EndedAt:      c.now(),
	}
	game.PGN = archive.BuildPGN(game)

	id, err := c.archive.InsertGame(ctx, game)
	if errors.Is(err, archive.ErrDuplicateGame) {
		c.logger.Info("game_already_archived", zap.String("session", c.cfg.SessionID))
		return
	}
	if err != nil {
		c.logger.Warn("archive_failed", zap.Error(err))
		c.console.say(c.console.warn, "game.archive_failed", map[string]any{"Error": err.Error()})
		return
	}
	c.logger.Info("game_archived", zap.Int64("game_id", id))
}

func (c *Coordinator) abort(reason string) {
	c.logger.Info("session_aborted", zap.String("reason", reason))
	c.console.say(c.console.warn, "game.aborted", nil)
	c.state = Aborted
}

func (c *Coordinator) showBoard() {
	c.console.raw(c.store.Render(c.cfg.PlayerSide))
}

// persistTranscript reports a failed transcript write. The game goes on; the
// live position is never tied to the transcript file.
func (c *Coordinator) persistTranscript(op string, err error) {
	if err == nil {
		return
	}
	c.logger.Warn("transcript_write_failed", zap.String("op", op), zap.Error(err))
	c.console.say(c.console.warn, "game.transcript_failed", map[string]any{"Error": err.Error()})
}

func openingLabel(code, title string) string {
	switch {
	case code == "" && title == "":
		return ""
	case code == "":
		return title
	case title == "":
		return code
	default:
		return code + " " + title
	}
}
