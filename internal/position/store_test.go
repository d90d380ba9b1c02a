package position

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyLegalMoveAdvancesTurn(t *testing.T) {
	s := New()
	applied, err := s.Apply("e2e4")
	require.NoError(t, err)
	require.Equal(t, "e4", applied.SAN)
	require.Equal(t, "1. e4", applied.Movetext())
	require.Equal(t, Black, s.Turn())
	require.Len(t, s.History(), 1)

	applied, err = s.Apply("e7e5")
	require.NoError(t, err)
	require.Equal(t, "1... e5", applied.Movetext())
	require.Equal(t, White, s.Current().Turn)
	require.Equal(t, 2, s.Current().Ply)
}

func TestApplyIllegalMoveLeavesPositionUnchanged(t *testing.T) {
	for _, mv := range []string{"e2e1", "e2e5", "a1a8", "e7e5", "g1g3"} {
		s := New()
		before := s.Current()
		_, err := s.Apply(mv)
		require.Error(t, err, mv)
		require.True(t, errors.Is(err, ErrIllegalMove), mv)
		var illegal *IllegalMoveError
		require.True(t, errors.As(err, &illegal))
		require.Equal(t, mv, illegal.Move)
		require.Equal(t, before, s.Current())
		require.Empty(t, s.History())
	}
}

func TestLegalMovesStartPosition(t *testing.T) {
	s := New()
	moves := s.LegalMoves()
	require.Len(t, moves, 20)
	require.Contains(t, moves, "g1f3")
	require.NotContains(t, moves, "e2e1")
}

func TestUndoReplaysHistory(t *testing.T) {
	s := New()
	start := s.Current()
	_, err := s.Apply("d2d4")
	require.NoError(t, err)
	afterFirst := s.Current()
	_, err = s.Apply("g8f6")
	require.NoError(t, err)

	require.NoError(t, s.Undo())
	require.Equal(t, afterFirst, s.Current())
	require.NoError(t, s.Undo())
	require.Equal(t, start, s.Current())
	require.ErrorIs(t, s.Undo(), ErrNothingToUndo)
}

func TestIsTerminalCheckmate(t *testing.T) {
	s := New()
	for _, mv := range []string{"f2f3", "e7e5", "g2g4"} {
		_, err := s.Apply(mv)
		require.NoError(t, err)
	}
	done, _ := s.IsTerminal()
	require.False(t, done)

	_, err := s.Apply("d8h4")
	require.NoError(t, err)
	done, outcome := s.IsTerminal()
	require.True(t, done)
	require.Equal(t, "0-1", outcome.Result)
	require.Equal(t, "checkmate", outcome.Method)
}

func TestIsTerminalStalemateFromFEN(t *testing.T) {
	s, err := FromFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	require.NoError(t, err)
	done, outcome := s.IsTerminal()
	require.True(t, done)
	require.Equal(t, "1/2-1/2", outcome.Result)
	require.Equal(t, "stalemate", outcome.Method)
}

func TestFromFENRejectsGarbage(t *testing.T) {
	_, err := FromFEN("not a position")
	require.ErrorIs(t, err, ErrInvalidFEN)
	_, err = FromFEN("   ")
	require.ErrorIs(t, err, ErrInvalidFEN)
}

func TestFromFENKeepsCounters(t *testing.T) {
	fen := "r3k2r/8/8/8/8/8/8/R3K2R w Kq - 17 42"
	s, err := FromFEN(fen)
	require.NoError(t, err)
	require.Equal(t, fen, s.Current().FEN)
	require.Contains(t, s.LegalMoves(), "e1g1")
	require.NotContains(t, s.LegalMoves(), "e1c1")
}

func TestRenderPerspective(t *testing.T) {
	s := New()
	white := strings.Split(strings.TrimRight(s.Render(White), "\n"), "\n")
	require.Len(t, white, 12)
	require.Equal(t, "  a b c d e f g h", white[0])
	require.True(t, strings.HasPrefix(white[2], "8|♜"))
	require.True(t, strings.HasPrefix(white[9], "1|♖"))
	require.Equal(t, "4|                |4", white[6])

	black := strings.Split(strings.TrimRight(s.Render(Black), "\n"), "\n")
	require.Equal(t, "  h g f e d c b a", black[0])
	require.True(t, strings.HasPrefix(black[2], "1|♖"))
	require.True(t, strings.HasPrefix(black[9], "8|♜"))
}

func TestOpeningName(t *testing.T) {
	s := New()
	code, _ := s.Opening()
	require.Empty(t, code)
	for _, mv := range []string{"e2e4", "c7c5"} {
		_, err := s.Apply(mv)
		require.NoError(t, err)
	}
	code, title := s.Opening()
	require.True(t, strings.HasPrefix(code, "B"), code)
	require.Contains(t, title, "Sicilian")
}

func TestIsCoordinateMove(t *testing.T) {
	require.True(t, IsCoordinateMove("e2e4"))
	require.True(t, IsCoordinateMove("e7e8q"))
	require.False(t, IsCoordinateMove("e7e8k"))
	require.False(t, IsCoordinateMove("Nf3"))
	require.False(t, IsCoordinateMove("e2e"))
}
