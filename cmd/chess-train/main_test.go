package main

import (
	"testing"

	"github.com/park285/chess-train/internal/position"
)

func TestChooseSide(t *testing.T) {
	resumed, err := position.FromFEN("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}

	if got := chooseSide(position.White, true, resumed); got != position.White {
		t.Fatalf("configured side must win, got %s", got)
	}
	for i := 0; i < 20; i++ {
		if got := chooseSide(position.White, false, resumed); got != position.Black {
			t.Fatalf("resumed game must keep the side to move, got %s", got)
		}
	}
	got := chooseSide(position.White, false, nil)
	if got != position.White && got != position.Black {
		t.Fatalf("unexpected side %v", got)
	}
}
