package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadyTimeout  = 4 * time.Second
	defaultTimeoutGrace  = 2 * time.Second
	quitGracePeriod      = 500 * time.Millisecond
	newGameRetryAttempts = 3
	newGameRetryDelay    = 150 * time.Millisecond
	mateValue            = 30000
)

var (
	ErrEngineExited  = errors.New("engine process exited")
	ErrNoBestMove    = errors.New("engine returned no move")
	ErrNoLimits      = errors.New("no search limits specified")
	ErrSessionClosed = errors.New("engine session closed")
)

type Config struct {
	BinaryPath string
	Args       []string
	Env        []string
	Stderr     io.Writer
	Options    Options
	// TimeoutGrace is added on top of the limit-derived search deadline.
	TimeoutGrace time.Duration
	Logger       *zap.Logger
}

type Limits struct {
	MoveTime time.Duration
	Depth    int
	Nodes    int
	Mate     int
}

// Score is the engine's last reported evaluation, relative to side to move.
type Score struct {
	CP     int
	Mate   int
	IsMate bool
	Set    bool
}

// Centipawns folds a mate score into a large signed value.
func (s Score) Centipawns() int {
	if !s.IsMate {
		return s.CP
	}
	if s.Mate > 0 {
		return mateValue - s.Mate
	}
	return -mateValue - s.Mate
}

type Session struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	grace   time.Duration
	logger  *zap.Logger
	applied Options

	mu        sync.Mutex
	search    sync.Mutex
	closeOnce sync.Once
	closed    bool
}

func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	if strings.TrimSpace(cfg.BinaryPath) == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, cfg.BinaryPath, cfg.Args...)
	if len(cfg.Env) > 0 {
		cmd.Env = cfg.Env
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if cfg.Stderr != nil {
		cmd.Stderr = cfg.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	grace := cfg.TimeoutGrace
	if grace <= 0 {
		grace = defaultTimeoutGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  bufio.NewReader(stdoutPipe),
		grace:   grace,
		logger:  logger,
		applied: Options{},
	}

	if err := s.initialize(ctx, cfg.Options); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

type SearchRequest struct {
	FEN    string
	Moves  []string
	Limits Limits
}

type SearchResponse struct {
	BestMove  string
	Ponder    string
	Score     Score
	Depth     int
	Principal []string
}

func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.search.Lock()
	defer s.search.Unlock()

	goCmd, err := GoCommand(req.Limits)
	if err != nil {
		return SearchResponse{}, err
	}

	positionCmd := buildPositionCommand(req.FEN, req.Moves)
	if err := s.send(positionCmd); err != nil {
		return SearchResponse{}, fmt.Errorf("send position: %w", err)
	}
	if err := s.send(goCmd + "\n"); err != nil {
		return SearchResponse{}, fmt.Errorf("send go: %w", err)
	}

	deadline := computeSearchTimeout(req.Limits, s.grace)
	searchCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var resp SearchResponse
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			s.logger.Warn("uci read failed",
				zap.String("position", strings.TrimSpace(positionCmd)),
				zap.String("go", goCmd),
				zap.Duration("deadline", deadline),
				zap.Error(err),
			)
			return SearchResponse{}, fmt.Errorf("read line: %w", err)
		}
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "info "):
			info, ok := parseInfo(line)
			if !ok {
				continue
			}
			if info.score.Set {
				resp.Score = info.score
			}
			if info.depth > 0 {
				resp.Depth = info.depth
			}
			if len(info.pv) > 0 {
				resp.Principal = info.pv
			}
		case strings.HasPrefix(line, "bestmove"):
			parts := strings.Fields(line)
			if len(parts) < 2 || parts[1] == "(none)" || parts[1] == "0000" {
				return resp, ErrNoBestMove
			}
			resp.BestMove = strings.ToLower(parts[1])
			if len(parts) >= 4 && parts[2] == "ponder" {
				resp.Ponder = strings.ToLower(parts[3])
			}
			return resp, nil
		}
	}
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(strings.TrimSpace(fen))
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

// GoCommand renders the go line sent for l. Sub-millisecond move times are
// rounded up to one millisecond.
func GoCommand(l Limits) (string, error) {
	tokens, err := buildGoTokens(l)
	if err != nil {
		return "", err
	}
	return strings.Join(tokens, " "), nil
}

func buildGoTokens(l Limits) ([]string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTime > 0 {
		ms := l.MoveTime.Milliseconds()
		if ms <= 0 {
			ms = 1
		}
		args = append(args, "movetime", strconv.FormatInt(ms, 10))
	}
	if l.Nodes > 0 {
		args = append(args, "nodes", strconv.Itoa(l.Nodes))
	}
	if l.Mate > 0 {
		args = append(args, "mate", strconv.Itoa(l.Mate))
	}
	if len(args) == 1 {
		return nil, ErrNoLimits
	}
	return args, nil
}

func computeSearchTimeout(l Limits, grace time.Duration) time.Duration {
	if l.MoveTime > 0 {
		return l.MoveTime*3 + grace
	}
	if l.Depth > 0 || l.Mate > 0 {
		plies := l.Depth
		if l.Mate*2 > plies {
			plies = l.Mate * 2
		}
		base := time.Duration(plies) * 300 * time.Millisecond
		if base < 6*time.Second {
			base = 6 * time.Second
		}
		if base > 20*time.Second {
			base = 20 * time.Second
		}
		return base + grace
	}
	return 6*time.Second + grace
}

type infoLine struct {
	depth   int
	multipv int
	score   Score
	pv      []string
}

func parseInfo(line string) (infoLine, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return infoLine{}, false
	}
	info := infoLine{multipv: 1}

	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "string":
			return infoLine{}, false
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					info.depth = v
				}
				i++
			}
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					info.multipv = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				kind := parts[i+1]
				val := parts[i+2]
				switch kind {
				case "cp":
					if v, err := strconv.Atoi(val); err == nil {
						info.score = Score{CP: v, Set: true}
					}
				case "mate":
					if v, err := strconv.Atoi(val); err == nil {
						info.score = Score{Mate: v, IsMate: true, Set: true}
					}
				}
				i += 2
			}
		case "pv":
			info.pv = append([]string(nil), parts[i+1:]...)
			i = len(parts)
		}
	}

	// only the principal line feeds the reported score
	if info.multipv != 1 {
		return infoLine{}, false
	}
	return info, true
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) NewGame(ctx context.Context) error {
	if err := s.send("ucinewgame\n"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}

	for attempt := 1; attempt <= newGameRetryAttempts; attempt++ {
		err := s.EnsureReady(ctx)
		if err == nil {
			return nil
		}
		if attempt == newGameRetryAttempts {
			return err
		}
		s.logger.Warn("uci ensure ready retry after ucinewgame",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", newGameRetryAttempts),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
	return nil
}

// SetOptions sends setoption for every entry that differs from what the
// engine already has, then waits for readyok.
func (s *Session) SetOptions(ctx context.Context, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	names := changed(s.applied, opts)
	if len(names) == 0 {
		return nil
	}
	for _, name := range names {
		if err := s.send(formatSetOption(name, opts[name])); err != nil {
			return fmt.Errorf("apply option %s: %w", name, err)
		}
		s.applied[name] = opts[name]
	}
	return s.EnsureReady(ctx)
}

func formatSetOption(name string, v OptionValue) string {
	return fmt.Sprintf("setoption name %s value %s\n", name, v.String())
}

// Close stops the engine process. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		if s.stdin != nil {
			_, _ = io.WriteString(s.stdin, "quit\n")
			s.stdin.Close()
		}
		s.mu.Unlock()

		if s.cmd == nil || s.cmd.Process == nil {
			return
		}
		done := make(chan error, 1)
		go func() { done <- s.cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(quitGracePeriod):
			if kerr := s.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
				err = fmt.Errorf("kill engine: %w", kerr)
			}
			<-done
		}
	})
	return err
}

func (s *Session) initialize(ctx context.Context, opts Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}

	for _, name := range opts.Names() {
		if err := s.send(formatSetOption(name, opts[name])); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
		s.applied[name] = opts[name]
	}

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := s.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if errors.Is(res.err, io.EOF) {
			return res.line, ErrEngineExited
		}
		return res.line, res.err
	}
}
