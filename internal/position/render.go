package position

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var pieceGlyphs = map[nchess.Color]map[nchess.PieceType]string{
	nchess.White: {
		nchess.King:   "♔",
		nchess.Queen:  "♕",
		nchess.Rook:   "♖",
		nchess.Bishop: "♗",
		nchess.Knight: "♘",
		nchess.Pawn:   "♙",
	},
	nchess.Black: {
		nchess.King:   "♚",
		nchess.Queen:  "♛",
		nchess.Rook:   "♜",
		nchess.Bishop: "♝",
		nchess.Knight: "♞",
		nchess.Pawn:   "♟",
	},
}

// Render draws the board as text with the perspective's back rank at the bottom.
func (s *Store) Render(perspective Side) string {
	board := s.game.Position().Board()

	ranks := []nchess.Rank{nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5, nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1}
	files := []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
	header := "  a b c d e f g h"
	if perspective == Black {
		for i, j := 0, len(ranks)-1; i < j; i, j = i+1, j-1 {
			ranks[i], ranks[j] = ranks[j], ranks[i]
		}
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
		header = "  h g f e d c b a"
	}

	var b strings.Builder
	b.WriteString(header + "\n")
	b.WriteString(" +-----------------+\n")
	for _, rank := range ranks {
		label := rank.String()
		b.WriteString(label + "|")
		for _, file := range files {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				b.WriteString("  ")
				continue
			}
			b.WriteString(pieceGlyphs[piece.Color()][piece.Type()] + " ")
		}
		b.WriteString("|" + label + "\n")
	}
	b.WriteString(" +-----------------+\n")
	b.WriteString(header + "\n")
	return b.String()
}
