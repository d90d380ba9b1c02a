package chess

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/park285/chess-train/internal/position"
)

func TestEstimateZeroIsEven(t *testing.T) {
	p := Estimate(0, position.White)
	require.Equal(t, 0.5, p.White)
	require.Equal(t, 0.5, p.Black)
	require.Equal(t, Estimate(0, position.Black), p)
}

func TestEstimateSumsToOne(t *testing.T) {
	for _, cp := range []int{-2500, -400, -35, 1, 35, 400, 2500} {
		for _, side := range []position.Side{position.White, position.Black} {
			p := Estimate(cp, side)
			require.InDelta(t, 1.0, p.White+p.Black, 1e-12)
			require.Greater(t, p.White, 0.0)
			require.Less(t, p.White, 1.0)
		}
	}
}

func TestEstimateFavoursRelativeSide(t *testing.T) {
	white := Estimate(400, position.White)
	require.InDelta(t, 10.0/11.0, white.White, 1e-12)

	black := Estimate(400, position.Black)
	require.InDelta(t, white.White, black.Black, 1e-12)
	require.InDelta(t, white.Black, black.White, 1e-12)

	losing := Estimate(-400, position.White)
	require.InDelta(t, white.Black, losing.White, 1e-12)
}

func TestEstimateMonotone(t *testing.T) {
	prev := 0.0
	for cp := -1000; cp <= 1000; cp += 50 {
		p := Estimate(cp, position.White).White
		require.Greater(t, p, prev)
		prev = p
	}
}

func TestEstimateScoreMate(t *testing.T) {
	_, err := EstimateScore(Score{Mate: 3, IsMate: true, Set: true}, position.White)
	var noEval *NoEvaluationError
	require.True(t, errors.As(err, &noEval))
	require.Equal(t, 3, noEval.Mate)

	_, err = EstimateScore(Score{}, position.White)
	require.True(t, errors.As(err, &noEval))
}

func TestSaturatedEstimate(t *testing.T) {
	p, err := SaturatedEstimate(Score{Mate: 3, IsMate: true, Set: true}, position.White, DefaultMateSaturation)
	require.NoError(t, err)
	require.Equal(t, 0.99, p.White)
	require.InDelta(t, 0.01, p.Black, 1e-12)

	p, err = SaturatedEstimate(Score{Mate: -2, IsMate: true, Set: true}, position.Black, 0.95)
	require.NoError(t, err)
	require.InDelta(t, 0.05, p.Black, 1e-12)
	require.Equal(t, 0.95, p.White)

	p, err = SaturatedEstimate(Score{CP: 0, Set: true}, position.Black, 0.99)
	require.NoError(t, err)
	require.Equal(t, 0.5, p.White)

	_, err = SaturatedEstimate(Score{CP: 10, Set: true}, position.White, 0.5)
	require.ErrorIs(t, err, ErrInvalidSaturation)
	_, err = SaturatedEstimate(Score{CP: 10, Set: true}, position.White, 1.2)
	require.ErrorIs(t, err, ErrInvalidSaturation)
}

func TestNormalizeLimits(t *testing.T) {
	l, err := NormalizeLimits(SearchLimits{})
	require.NoError(t, err)
	require.Equal(t, DefaultMoveTime, l.Time)

	l, err = NormalizeLimits(SearchLimits{Depth: 12})
	require.NoError(t, err)
	require.Zero(t, l.Time)
	require.Equal(t, 12, l.Depth)

	_, err = NormalizeLimits(SearchLimits{Nodes: -5})
	require.ErrorIs(t, err, ErrInvalidLimits)
}

func TestLimitsFieldsAndGoCommand(t *testing.T) {
	l := SearchLimits{Time: 1500 * time.Millisecond, Mate: 2}
	require.Equal(t, []LimitField{{Key: "time", Value: "1.5"}, {Key: "mate", Value: "2"}}, l.Fields())

	cmd, err := l.GoCommand()
	require.NoError(t, err)
	require.Equal(t, "go movetime 1500 mate 2", cmd)

	cmd, err = SearchLimits{Time: 500 * time.Microsecond}.GoCommand()
	require.NoError(t, err)
	require.Equal(t, "go movetime 1", cmd)

	_, err = SearchLimits{}.GoCommand()
	require.ErrorIs(t, err, ErrInvalidLimits)

	merged := SearchLimits{Depth: 3}.Merge(SearchLimits{Time: time.Second, Depth: 9})
	require.Equal(t, SearchLimits{Time: time.Second, Depth: 3}, merged)
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		p, err := GetPreset(name)
		require.NoError(t, err)
		require.NoError(t, ValidatePreset(p), name)
		require.False(t, p.Limits().IsZero(), name)
		require.NoError(t, p.Options().Validate(), name)
	}

	p, err := GetPreset("Intermediate")
	require.NoError(t, err)
	require.Equal(t, "level5", p.Name)
	require.NotContains(t, p.Options(), "UCI_Elo")

	p, err = GetPreset("level7")
	require.NoError(t, err)
	require.Contains(t, p.Options(), "UCI_LimitStrength")

	_, err = GetPreset("grandmaster")
	require.Error(t, err)
	require.Error(t, ValidatePreset(DifficultyPreset{Name: "x", Threads: 1, HashMB: 1, Elo: 800}))
}
