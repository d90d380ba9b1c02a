package position

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrNothingToUndo = errors.New("no moves available to undo")
	ErrInvalidFEN    = errors.New("invalid position")
)

var uciPattern = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// IsCoordinateMove reports whether s is written in four-or-five character coordinate form.
func IsCoordinateMove(s string) bool {
	return uciPattern.MatchString(s)
}

// IllegalMoveError is returned by Apply when the move is not in the legal set.
type IllegalMoveError struct {
	Move string
	FEN  string
}

func (e *IllegalMoveError) Error() string {
	return fmt.Sprintf("illegal move %q in position %s", e.Move, e.FEN)
}

func (e *IllegalMoveError) Unwrap() error { return ErrIllegalMove }

// Side identifies the colour of a player.
type Side int

const (
	White Side = iota
	Black
)

func (s Side) Other() Side {
	if s == White {
		return Black
	}
	return White
}

func (s Side) String() string {
	if s == White {
		return "WHITE"
	}
	return "BLACK"
}

// ParseSide accepts white/black in any case, plus w/b.
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	default:
		return White, fmt.Errorf("unknown side %q", raw)
	}
}

func sideFrom(c nchess.Color) Side {
	if c == nchess.Black {
		return Black
	}
	return White
}

// Position is a detached snapshot of the board.
type Position struct {
	FEN  string
	Turn Side
	Ply  int
}

// Outcome describes whether and how a game ended.
type Outcome struct {
	Result string
	Method string
}

func (o Outcome) Ongoing() bool { return o.Result == "" || o.Result == "*" }

// Applied is the record of one ply that went through Apply.
type Applied struct {
	UCI        string
	SAN        string
	Mover      Side
	MoveNumber int
}

// Movetext renders the ply the way PGN numbers it: "1. e4" or "1... e5".
func (a Applied) Movetext() string {
	if a.Mover == White {
		return fmt.Sprintf("%d. %s", a.MoveNumber, a.SAN)
	}
	return fmt.Sprintf("%d... %s", a.MoveNumber, a.SAN)
}

// Store holds the live game and its history.
type Store struct {
	startFEN string
	game     *nchess.Game
	moves    []string
}

func New() *Store {
	game := nchess.NewGame()
	return &Store{startFEN: game.FEN(), game: game}
}

// FromFEN seeds a store from a persisted position.
func FromFEN(fen string) (*Store, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return nil, err
	}
	return &Store{startFEN: game.FEN(), game: game}, nil
}

func gameFromFEN(fen string) (*nchess.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, fmt.Errorf("%w: empty FEN", ErrInvalidFEN)
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return nchess.NewGame(opt), nil
}

func (s *Store) Current() Position {
	return Position{
		FEN:  s.game.FEN(),
		Turn: sideFrom(s.game.Position().Turn()),
		Ply:  len(s.moves),
	}
}

func (s *Store) Turn() Side { return sideFrom(s.game.Position().Turn()) }

// LegalMoves returns the legal moves of the current position in sorted coordinate form.
func (s *Store) LegalMoves() []string {
	valid := s.game.Position().ValidMoves()
	out := make([]string, 0, len(valid))
	for _, mv := range valid {
		out = append(out, strings.ToLower(mv.String()))
	}
	sort.Strings(out)
	return out
}

func (s *Store) IsLegal(move string) bool {
	move = strings.ToLower(strings.TrimSpace(move))
	for _, legal := range s.LegalMoves() {
		if legal == move {
			return true
		}
	}
	return false
}

// Apply plays move on the current position. The position is left untouched when
// the move is not legal.
func (s *Store) Apply(move string) (Applied, error) {
	move = strings.ToLower(strings.TrimSpace(move))
	before := s.game.Position()
	if !s.IsLegal(move) {
		return Applied{}, &IllegalMoveError{Move: move, FEN: before.String()}
	}
	if err := s.game.PushNotationMove(move, nchess.UCINotation{}, nil); err != nil {
		return Applied{}, &IllegalMoveError{Move: move, FEN: before.String()}
	}
	s.moves = append(s.moves, move)

	applied := Applied{
		UCI:        move,
		Mover:      sideFrom(before.Turn()),
		MoveNumber: moveNumber(before.String()),
	}
	if last := lastMove(s.game); last != nil {
		applied.SAN = nchess.AlgebraicNotation{}.Encode(before, last)
	}
	if applied.SAN == "" {
		applied.SAN = move
	}
	return applied, nil
}

// Undo drops the last ply by replaying the history from the starting position.
func (s *Store) Undo() error {
	if len(s.moves) == 0 {
		return ErrNothingToUndo
	}
	game, err := replay(s.startFEN, s.moves[:len(s.moves)-1])
	if err != nil {
		return err
	}
	s.game = game
	s.moves = s.moves[:len(s.moves)-1]
	return nil
}

func replay(startFEN string, moves []string) (*nchess.Game, error) {
	game, err := gameFromFEN(startFEN)
	if err != nil {
		return nil, err
	}
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", mv, err)
		}
	}
	return game, nil
}

// History returns the applied moves in coordinate form.
func (s *Store) History() []string {
	return append([]string(nil), s.moves...)
}

// IsTerminal reports whether the game is over and how.
func (s *Store) IsTerminal() (bool, Outcome) {
	outcome := s.game.Outcome()
	if outcome == nchess.NoOutcome {
		return false, Outcome{Result: "*", Method: "ongoing"}
	}
	return true, Outcome{
		Result: string(outcome),
		Method: methodName(s.game.Method()),
	}
}

func methodName(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient material"
	case nchess.FivefoldRepetition:
		return "fivefold repetition"
	case nchess.SeventyFiveMoveRule:
		return "seventy-five-move rule"
	case nchess.ThreefoldRepetition:
		return "threefold repetition"
	case nchess.FiftyMoveRule:
		return "fifty-move rule"
	default:
		return strings.ToLower(m.String())
	}
}

// Opening looks the played line up in the ECO book.
func (s *Store) Opening() (string, string) {
	if len(s.moves) == 0 || s.startFEN != nchess.NewGame().FEN() {
		return "", ""
	}
	book := opening.NewBookECO()
	if book == nil {
		return "", ""
	}
	if eco := book.Find(s.game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

// SAN returns the game so far in SAN, one entry per ply.
func (s *Store) SAN() []string {
	positions := s.game.Positions()
	moves := s.game.Moves()
	out := make([]string, len(moves))
	notation := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		if i < len(positions) {
			out[i] = notation.Encode(positions[i], mv)
		}
	}
	return out
}

// Board exposes the rules-library board for renderers.
func (s *Store) Board() *nchess.Board {
	return s.game.Position().Board()
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

// moveNumber reads the full-move counter, the sixth FEN field.
func moveNumber(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return 1
	}
	n := 0
	for _, r := range fields[5] {
		if r < '0' || r > '9' {
			return 1
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 1
	}
	return n
}
