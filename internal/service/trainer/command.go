package trainer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/chess-train/internal/position"
)

// State is where the turn loop stands.
type State int

const (
	AwaitingHumanInput State = iota
	AwaitingEngineMove
	Terminal
	Saved
	Aborted
)

func (s State) String() string {
	switch s {
	case AwaitingHumanInput:
		return "awaiting_human_input"
	case AwaitingEngineMove:
		return "awaiting_engine_move"
	case Terminal:
		return "terminal"
	case Saved:
		return "saved"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Done reports whether the loop has stopped.
func (s State) Done() bool {
	return s == Terminal || s == Saved || s == Aborted
}

var ErrMalformedInput = errors.New("malformed input")

// MalformedInputError is input that is neither a command nor a coordinate move.
type MalformedInputError struct {
	Input string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input %q", e.Input)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

type commandKind int

const (
	cmdEmpty commandKind = iota
	cmdMove
	cmdHelp
	cmdBestMove
	cmdSave
	cmdUndo
	cmdBoard
	cmdExport
	cmdQuit
)

type command struct {
	kind commandKind
	arg  string
}

var commandWords = map[string]commandKind{
	"help":      cmdHelp,
	"bestmove":  cmdBestMove,
	"!help":     cmdBestMove,
	"hint":      cmdBestMove,
	"savestate": cmdSave,
	"undo":      cmdUndo,
	"board":     cmdBoard,
	"export":    cmdExport,
	"quit":      cmdQuit,
	"exit":      cmdQuit,
}

// parseCommand reads one line typed on the human's turn. Paths keep their case.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{kind: cmdEmpty}, nil
	}
	word := strings.ToLower(fields[0])
	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	if kind, ok := commandWords[word]; ok {
		switch kind {
		case cmdSave, cmdExport:
			return command{kind: kind, arg: arg}, nil
		default:
			if arg != "" {
				return command{}, &MalformedInputError{Input: line}
			}
			return command{kind: kind}, nil
		}
	}
	if len(fields) == 1 && position.IsCoordinateMove(word) {
		return command{kind: cmdMove, arg: word}, nil
	}
	return command{}, &MalformedInputError{Input: line}
}
