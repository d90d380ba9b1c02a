// Package board renders positions to PNG.
package board

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"os"
	"path/filepath"
	"time"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/chess-train/internal/position"
)

const (
	squareSize   = 56
	boardSquares = 8
	boardSize    = squareSize * boardSquares
	margin       = 24
	captionSize  = 28
)

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	backgroundColor     = color.RGBA{28, 31, 46, 255}
	lastMoveFill        = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	coordinateTextColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
	captionTextColor    = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
)

type Options struct {
	Perspective position.Side
	// LastMove is the previous ply in coordinate form; its squares are tinted.
	LastMove string
	Caption  string
}

type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

func (r *Renderer) RenderPNG(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}

	top := margin
	if opts.Caption != "" {
		top += captionSize
	}
	origin := image.Point{X: margin, Y: top}
	img := image.NewRGBA(image.Rect(0, 0, boardSize+margin*2, boardSize+top+margin))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	drawSquares(img, origin, opts.Perspective)
	if from, to, ok := parseMoveSquares(opts.LastMove); ok {
		drawSquareOverlay(img, squareRect(from, origin, opts.Perspective), lastMoveFill)
		drawSquareOverlay(img, squareRect(to, origin, opts.Perspective), lastMoveFill)
	}
	if err := drawPieces(img, board, origin, opts.Perspective); err != nil {
		return nil, err
	}
	drawCoordinates(img, origin, opts.Perspective)
	if opts.Caption != "" {
		drawer := &font.Drawer{Dst: img, Src: image.NewUniform(captionTextColor), Face: basicfont.Face7x13}
		drawer.Dot = fixed.P(margin, margin+captionSize/2)
		drawer.DrawString(opts.Caption)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DefaultExportName is the timestamped file name used when no path is given.
func DefaultExportName(now time.Time) string {
	return now.Format("chess-train-20060102-150405") + ".png"
}

// Export renders board and writes it to path.
func (r *Renderer) Export(ctx context.Context, path string, board *nchess.Board, opts Options) error {
	data, err := r.RenderPNG(ctx, board, opts)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write board image: %w", err)
	}
	return nil
}

// cell maps a square to its row and column on screen.
func cell(sq nchess.Square, perspective position.Side) (row, col int) {
	file, rank := int(sq.File()), int(sq.Rank())
	if perspective == position.Black {
		return rank, 7 - file
	}
	return 7 - rank, file
}

func squareRect(sq nchess.Square, origin image.Point, perspective position.Side) image.Rectangle {
	row, col := cell(sq, perspective)
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func allSquares() []nchess.Square {
	out := make([]nchess.Square, 0, 64)
	for r := nchess.Rank1; r <= nchess.Rank8; r++ {
		for f := nchess.FileA; f <= nchess.FileH; f++ {
			out = append(out, nchess.NewSquare(f, r))
		}
	}
	return out
}

func drawSquares(dst imagedraw.Image, origin image.Point, perspective position.Side) {
	for _, sq := range allSquares() {
		imagedraw.Draw(dst, squareRect(sq, origin, perspective), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
	}
}

func drawPieces(dst imagedraw.Image, board *nchess.Board, origin image.Point, perspective position.Side) error {
	for _, sq := range allSquares() {
		piece := board.Piece(sq)
		if piece == nchess.NoPiece {
			continue
		}
		img, err := renderPieceImage(piece, squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, squareRect(sq, origin, perspective), img, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawSquareOverlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawCoordinates(dst imagedraw.Image, origin image.Point, perspective position.Side) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(coordinateTextColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()

	for i := 0; i < boardSquares; i++ {
		file := nchess.File(i)
		rank := nchess.Rank(i)
		_, col := cell(nchess.NewSquare(file, nchess.Rank1), perspective)
		row, _ := cell(nchess.NewSquare(nchess.FileA, rank), perspective)

		fileCenter := origin.X + col*squareSize + squareSize/2
		drawCenteredText(drawer, file.String(), fileCenter, origin.Y+boardSize+ascent+4)

		rankBaseline := origin.Y + row*squareSize + squareSize/2 + ascent/2
		drawCenteredText(drawer, rank.String(), origin.X-margin/2, rankBaseline)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func parseMoveSquares(move string) (nchess.Square, nchess.Square, bool) {
	if !position.IsCoordinateMove(move) {
		return 0, 0, false
	}
	from := nchess.NewSquare(nchess.File(move[0]-'a'), nchess.Rank(move[1]-'1'))
	to := nchess.NewSquare(nchess.File(move[2]-'a'), nchess.Rank(move[3]-'1'))
	return from, to, true
}
