package chess

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/park285/chess-train/internal/chess/uci"
)

// DefaultMoveTime applies when no search bound is configured.
const DefaultMoveTime = time.Second

var ErrInvalidLimits = errors.New("invalid search limits")

// SearchLimits bounds one engine search. Zero fields are unset.
type SearchLimits struct {
	Time  time.Duration
	Depth int
	Nodes int
	Mate  int
}

func (l SearchLimits) IsZero() bool {
	return l.Time == 0 && l.Depth == 0 && l.Nodes == 0 && l.Mate == 0
}

// NormalizeLimits rejects negative bounds and falls back to DefaultMoveTime
// when nothing is set.
func NormalizeLimits(l SearchLimits) (SearchLimits, error) {
	switch {
	case l.Time < 0:
		return SearchLimits{}, fmt.Errorf("%w: time must be >= 0: %v", ErrInvalidLimits, l.Time)
	case l.Depth < 0:
		return SearchLimits{}, fmt.Errorf("%w: depth must be >= 0: %d", ErrInvalidLimits, l.Depth)
	case l.Nodes < 0:
		return SearchLimits{}, fmt.Errorf("%w: nodes must be >= 0: %d", ErrInvalidLimits, l.Nodes)
	case l.Mate < 0:
		return SearchLimits{}, fmt.Errorf("%w: mate must be >= 0: %d", ErrInvalidLimits, l.Mate)
	}
	if l.IsZero() {
		l.Time = DefaultMoveTime
	}
	return l, nil
}

// Merge fills unset fields of l from fallback.
func (l SearchLimits) Merge(fallback SearchLimits) SearchLimits {
	if l.Time == 0 {
		l.Time = fallback.Time
	}
	if l.Depth == 0 {
		l.Depth = fallback.Depth
	}
	if l.Nodes == 0 {
		l.Nodes = fallback.Nodes
	}
	if l.Mate == 0 {
		l.Mate = fallback.Mate
	}
	return l
}

func (l SearchLimits) toUCI() uci.Limits {
	return uci.Limits{
		MoveTime: l.Time,
		Depth:    l.Depth,
		Nodes:    l.Nodes,
		Mate:     l.Mate,
	}
}

// LimitField is one set bound, in header order.
type LimitField struct {
	Key   string
	Value string
}

// Fields lists the set bounds as key/value text. Time is written in seconds.
func (l SearchLimits) Fields() []LimitField {
	var out []LimitField
	if l.Time > 0 {
		out = append(out, LimitField{Key: "time", Value: strconv.FormatFloat(l.Time.Seconds(), 'f', -1, 64)})
	}
	if l.Depth > 0 {
		out = append(out, LimitField{Key: "depth", Value: strconv.Itoa(l.Depth)})
	}
	if l.Nodes > 0 {
		out = append(out, LimitField{Key: "nodes", Value: strconv.Itoa(l.Nodes)})
	}
	if l.Mate > 0 {
		out = append(out, LimitField{Key: "mate", Value: strconv.Itoa(l.Mate)})
	}
	return out
}

// GoCommand is the go line the engine session sends for l.
func (l SearchLimits) GoCommand() (string, error) {
	cmd, err := uci.GoCommand(l.toUCI())
	if errors.Is(err, uci.ErrNoLimits) {
		return "", fmt.Errorf("%w: no bound set", ErrInvalidLimits)
	}
	return cmd, err
}
