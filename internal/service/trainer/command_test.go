package trainer

import (
	"errors"
	"testing"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		kind commandKind
		arg  string
	}{
		{"e2e4", cmdMove, "e2e4"},
		{"  E7E8Q ", cmdMove, "e7e8q"},
		{"", cmdEmpty, ""},
		{"help", cmdHelp, ""},
		{"!help", cmdBestMove, ""},
		{"bestMove", cmdBestMove, ""},
		{"hint", cmdBestMove, ""},
		{"saveState", cmdSave, ""},
		{"saveState Games/My Game.fen", cmdSave, "Games/My Game.fen"},
		{"undo", cmdUndo, ""},
		{"board", cmdBoard, ""},
		{"export /tmp/B.png", cmdExport, "/tmp/B.png"},
		{"quit", cmdQuit, ""},
		{"exit", cmdQuit, ""},
	}
	for _, tc := range cases {
		got, err := parseCommand(tc.in)
		if err != nil {
			t.Fatalf("parseCommand(%q): %v", tc.in, err)
		}
		if got.kind != tc.kind || got.arg != tc.arg {
			t.Fatalf("parseCommand(%q) = %+v, want kind %d arg %q", tc.in, got, tc.kind, tc.arg)
		}
	}
}

func TestParseCommandRejects(t *testing.T) {
	for _, in := range []string{"hello", "e2e9", "e2e4 e7e5", "undo now", "e2-e4", "Nf3"} {
		_, err := parseCommand(in)
		if !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("parseCommand(%q) error = %v, want ErrMalformedInput", in, err)
		}
		var malformed *MalformedInputError
		if !errors.As(err, &malformed) || malformed.Input != in {
			t.Fatalf("parseCommand(%q) lost the input: %v", in, err)
		}
	}
}

func TestStateString(t *testing.T) {
	if Saved.String() != "saved" || !Saved.Done() || AwaitingEngineMove.Done() {
		t.Fatalf("unexpected state helpers")
	}
	if State(42).String() != "state(42)" {
		t.Fatalf("unexpected unknown state text %q", State(42).String())
	}
}
