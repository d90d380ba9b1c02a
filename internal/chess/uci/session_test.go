package uci

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/park285/chess-train/internal/chess/uci/ucitest"
)

func TestMain(m *testing.M) {
	ucitest.MaybeRun()
	os.Exit(m.Run())
}

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func startFake(t *testing.T, mode string) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), Config{
		BinaryPath:   os.Args[0],
		Env:          ucitest.Env(mode),
		TimeoutGrace: 300 * time.Millisecond,
		Options:      Options{"Skill Level": IntOption(5)},
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSearchReturnsBestMoveAndPrincipalScore(t *testing.T) {
	s := startFake(t, ucitest.ModeNormal)
	resp, err := s.Search(context.Background(), SearchRequest{FEN: startFEN, Limits: Limits{MoveTime: 50 * time.Millisecond}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.BestMove != "a2a3" {
		t.Fatalf("expected a2a3, got %q", resp.BestMove)
	}
	if !resp.Score.Set || resp.Score.IsMate || resp.Score.CP != 42 {
		t.Fatalf("expected cp 42 from multipv 1, got %+v", resp.Score)
	}
	if resp.Depth != 8 {
		t.Fatalf("expected depth 8, got %d", resp.Depth)
	}
}

func TestSearchAfterMovesUsesUpdatedPosition(t *testing.T) {
	s := startFake(t, ucitest.ModeNormal)
	resp, err := s.Search(context.Background(), SearchRequest{
		FEN:    startFEN,
		Moves:  []string{"e2e4"},
		Limits: Limits{Depth: 3},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.BestMove != "a7a5" && resp.BestMove != "a7a6" {
		t.Fatalf("expected a black pawn move, got %q", resp.BestMove)
	}
}

func TestSearchMateScore(t *testing.T) {
	s := startFake(t, ucitest.ModeMate)
	resp, err := s.Search(context.Background(), SearchRequest{FEN: startFEN, Limits: Limits{Mate: 3}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !resp.Score.IsMate || resp.Score.Mate != 3 {
		t.Fatalf("expected mate 3, got %+v", resp.Score)
	}
	if resp.Score.Centipawns() != mateValue-3 {
		t.Fatalf("unexpected folded score %d", resp.Score.Centipawns())
	}
}

func TestSearchTimesOutWhenEngineHangs(t *testing.T) {
	s := startFake(t, ucitest.ModeHang)
	started := time.Now()
	_, err := s.Search(context.Background(), SearchRequest{FEN: startFEN, Limits: Limits{MoveTime: 10 * time.Millisecond}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestSearchReportsEngineExit(t *testing.T) {
	s := startFake(t, ucitest.ModeCrash)
	_, err := s.Search(context.Background(), SearchRequest{FEN: startFEN, Limits: Limits{MoveTime: 10 * time.Millisecond}})
	if !errors.Is(err, ErrEngineExited) {
		t.Fatalf("expected ErrEngineExited, got %v", err)
	}
}

func TestSearchNoBestMove(t *testing.T) {
	s := startFake(t, ucitest.ModeNoMove)
	_, err := s.Search(context.Background(), SearchRequest{FEN: startFEN, Limits: Limits{Nodes: 100}})
	if !errors.Is(err, ErrNoBestMove) {
		t.Fatalf("expected ErrNoBestMove, got %v", err)
	}
}

func TestSetOptionsAndNewGame(t *testing.T) {
	s := startFake(t, ucitest.ModeNormal)
	ctx := context.Background()
	if err := s.SetOptions(ctx, Options{"Skill Level": IntOption(5)}); err != nil {
		t.Fatalf("SetOptions unchanged: %v", err)
	}
	if err := s.SetOptions(ctx, Options{"Skill Level": IntOption(12), "Ponder": BoolOption(false)}); err != nil {
		t.Fatalf("SetOptions: %v", err)
	}
	if v := s.applied["Skill Level"]; v != IntOption(12) {
		t.Fatalf("applied option not tracked: %v", v)
	}
	if err := s.NewGame(ctx); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if err := s.SetOptions(ctx, Options{"Skill Level": IntOption(99)}); err == nil {
		t.Fatalf("expected validation error for skill level 99")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := startFake(t, ucitest.ModeNormal)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	_, err := s.Search(context.Background(), SearchRequest{FEN: startFEN, Limits: Limits{Depth: 1}})
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after Close, got %v", err)
	}
}

func TestNewSessionRequiresBinary(t *testing.T) {
	if _, err := NewSession(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty binary path")
	}
	if _, err := NewSession(context.Background(), Config{BinaryPath: "/nonexistent/stockfish"}); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}

func TestBuildGoTokens(t *testing.T) {
	got, err := buildGoTokens(Limits{MoveTime: 1500 * time.Millisecond, Depth: 10, Nodes: 2000, Mate: 2})
	if err != nil {
		t.Fatalf("buildGoTokens: %v", err)
	}
	want := "go depth 10 movetime 1500 nodes 2000 mate 2"
	if strings.Join(got, " ") != want {
		t.Fatalf("got %q want %q", strings.Join(got, " "), want)
	}
	if _, err := buildGoTokens(Limits{}); !errors.Is(err, ErrNoLimits) {
		t.Fatalf("expected ErrNoLimits, got %v", err)
	}
	cmd, err := GoCommand(Limits{MoveTime: 400 * time.Microsecond})
	if err != nil || cmd != "go movetime 1" {
		t.Fatalf("sub-millisecond move time: %q %v", cmd, err)
	}
}

func TestBuildPositionCommand(t *testing.T) {
	if got := buildPositionCommand("", nil); got != "position startpos\n" {
		t.Fatalf("unexpected startpos command %q", got)
	}
	got := buildPositionCommand(startFEN, []string{"e2e4", "e7e5"})
	want := "position fen " + startFEN + " moves e2e4 e7e5\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestComputeSearchTimeout(t *testing.T) {
	grace := time.Second
	cases := []struct {
		limits Limits
		want   time.Duration
	}{
		{Limits{MoveTime: time.Second}, 4 * time.Second},
		{Limits{Depth: 10}, 7 * time.Second},
		{Limits{Depth: 50}, 16 * time.Second},
		{Limits{Depth: 200}, 21 * time.Second},
		{Limits{Nodes: 1000}, 7 * time.Second},
	}
	for _, tc := range cases {
		if got := computeSearchTimeout(tc.limits, grace); got != tc.want {
			t.Fatalf("limits %+v: got %v want %v", tc.limits, got, tc.want)
		}
	}
}

func TestParseInfo(t *testing.T) {
	info, ok := parseInfo("info depth 20 seldepth 28 multipv 1 score cp -35 nodes 1 pv e7e5 g1f3")
	if !ok || info.depth != 20 || info.score.CP != -35 || len(info.pv) != 2 {
		t.Fatalf("unexpected info %+v ok=%v", info, ok)
	}
	info, ok = parseInfo("info depth 9 score mate -2 pv h7h8")
	if !ok || !info.score.IsMate || info.score.Mate != -2 {
		t.Fatalf("unexpected mate info %+v", info)
	}
	if _, ok := parseInfo("info depth 5 multipv 3 score cp 10"); ok {
		t.Fatalf("secondary multipv lines must be ignored")
	}
	if _, ok := parseInfo("info string NNUE enabled"); ok {
		t.Fatalf("info string lines must be ignored")
	}
}

func TestOptionsValidateAndChanged(t *testing.T) {
	if err := (Options{"Hash": IntOption(0)}).Validate(); err == nil {
		t.Fatalf("expected hash error")
	}
	if err := (Options{"Bad\nName": BoolOption(true)}).Validate(); err == nil {
		t.Fatalf("expected line break error")
	}
	if err := (Options{"Eval value File": StringOption("x")}).Validate(); err == nil {
		t.Fatalf("expected ambiguous name error")
	}
	if err := (Options{"ValueFile": StringOption("x")}).Validate(); err != nil {
		t.Fatalf("ValueFile: %v", err)
	}
	prev := Options{"Hash": IntOption(16), "Threads": IntOption(1)}
	next := Options{"Hash": IntOption(16), "Threads": IntOption(2), "UCI_Elo": IntOption(1500)}
	got := changed(prev, next)
	if strings.Join(got, ",") != "Threads,UCI_Elo" {
		t.Fatalf("unexpected changed set %v", got)
	}
}

func TestParseOptionValue(t *testing.T) {
	v, err := ParseOptionValue(8)
	if err != nil || v.String() != "8" || v.Kind() != OptionInt {
		t.Fatalf("int option: %v %v", v, err)
	}
	v, err = ParseOptionValue(true)
	if err != nil || v.String() != "true" {
		t.Fatalf("bool option: %v %v", v, err)
	}
	if _, err := ParseOptionValue(1.5); err == nil {
		t.Fatalf("expected error for fractional value")
	}
	if _, err := ParseOptionValue(1e19); err == nil {
		t.Fatalf("expected error for value above int64 range")
	}
	if _, err := ParseOptionValue(-1e19); err == nil {
		t.Fatalf("expected error for value below int64 range")
	}
	if v, err := ParseOptionValue(float64(64)); err != nil || v.String() != "64" {
		t.Fatalf("whole float option: %v %v", v, err)
	}
	if _, err := ParseOptionValue([]string{"x"}); err == nil {
		t.Fatalf("expected error for list value")
	}
}
