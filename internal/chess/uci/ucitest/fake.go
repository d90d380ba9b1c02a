// Package ucitest provides a scripted UCI engine for tests. A test binary
// calls MaybeRun from TestMain and then starts itself as the engine with Env.
package ucitest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// EnvMode selects the fake engine behaviour in the re-executed test binary.
const EnvMode = "CHESS_TRAIN_FAKE_UCI"

// EnvMarker names the file ModeCrashOnce uses to remember it already crashed.
const EnvMarker = "CHESS_TRAIN_FAKE_UCI_MARKER"

const (
	// ModeNormal answers every search with the first legal move in sorted order.
	ModeNormal = "normal"
	// ModeMate reports a mate-in-3 score before the move.
	ModeMate = "mate"
	// ModeHang never answers go.
	ModeHang = "hang"
	// ModeCrash exits as soon as a search starts.
	ModeCrash = "crash"
	// ModeNoMove answers every search with bestmove (none).
	ModeNoMove = "nomove"
	// ModeCrashOnce crashes on the first search of the first process and
	// behaves like ModeNormal afterwards.
	ModeCrashOnce = "crashonce"
	// ModeIllegal answers with a move that is never legal from the start position.
	ModeIllegal = "illegal"
)

// MaybeRun turns the current process into the fake engine when EnvMode is set.
func MaybeRun() {
	mode := os.Getenv(EnvMode)
	if mode == "" {
		return
	}
	if mode == ModeCrashOnce {
		mode = crashOnce(os.Getenv(EnvMarker))
	}
	os.Exit(Run(os.Stdin, os.Stdout, mode))
}

func crashOnce(marker string) string {
	if marker == "" {
		return ModeCrash
	}
	f, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return ModeNormal
	}
	f.Close()
	return ModeCrash
}

// Env returns the environment for starting the fake engine in mode.
func Env(mode string) []string {
	return append(os.Environ(), EnvMode+"="+mode)
}

// Run speaks UCI on r and w until quit or EOF and returns the exit code.
func Run(r io.Reader, w io.Writer, mode string) int {
	in := bufio.NewScanner(r)
	game := nchess.NewGame()

	reply := func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
	}

	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "uci":
			reply("id name chess-train fake")
			reply("id author tests")
			reply("option name Skill Level type spin default 20 min 0 max 20")
			reply("uciok")
		case "isready":
			reply("readyok")
		case "setoption", "ucinewgame":
		case "position":
			next, err := parsePosition(fields[1:])
			if err != nil {
				reply("info string %v", err)
				continue
			}
			game = next
		case "go":
			switch mode {
			case ModeHang:
				continue
			case ModeCrash:
				return 3
			case ModeNoMove:
				reply("info depth 1 score cp 0")
				reply("bestmove (none)")
				continue
			case ModeIllegal:
				reply("info depth 1 score cp 0")
				reply("bestmove e2e5")
				continue
			}
			move := firstLegal(game)
			if move == "" {
				reply("info depth 0 score mate 0")
				reply("bestmove (none)")
				continue
			}
			reply("info string searching")
			if mode == ModeMate {
				reply("info depth 12 seldepth 14 multipv 1 score mate 3 nodes 1200 pv %s", move)
			} else {
				reply("info depth 5 multipv 2 score cp -900 pv %s", move)
				reply("info depth 8 seldepth 10 multipv 1 score cp 42 nodes 5000 pv %s", move)
			}
			reply("bestmove %s", move)
		case "quit":
			return 0
		}
	}
	return 0
}

func parsePosition(args []string) (*nchess.Game, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("position needs arguments")
	}
	var game *nchess.Game
	rest := args[1:]
	switch args[0] {
	case "startpos":
		game = nchess.NewGame()
	case "fen":
		end := len(rest)
		for i, tok := range rest {
			if tok == "moves" {
				end = i
				break
			}
		}
		opt, err := nchess.FEN(strings.Join(rest[:end], " "))
		if err != nil {
			return nil, err
		}
		game = nchess.NewGame(opt)
		rest = rest[end:]
	default:
		return nil, fmt.Errorf("unknown position kind %q", args[0])
	}
	if len(rest) > 0 && rest[0] == "moves" {
		for _, mv := range rest[1:] {
			if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
				return nil, err
			}
		}
	}
	return game, nil
}

func firstLegal(game *nchess.Game) string {
	valid := game.Position().ValidMoves()
	if len(valid) == 0 {
		return ""
	}
	moves := make([]string, 0, len(valid))
	for _, mv := range valid {
		moves = append(moves, strings.ToLower(mv.String()))
	}
	sort.Strings(moves)
	return moves[0]
}
