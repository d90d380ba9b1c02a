package board

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece outlines on a 45x45 canvas. %[1]s is the fill colour, %[2]s the stroke.
var pieceShapes = map[nchess.PieceType]string{
	nchess.Pawn: `<circle cx="22.5" cy="14" r="5.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<path d="M16 24 Q22.5 17 29 24 L31 33 L14 33 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="11" y="33" width="23" height="5" rx="1.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.Rook: `<path d="M11 9 L15 9 L15 12 L20 12 L20 9 L25 9 L25 12 L30 12 L30 9 L34 9 L34 15 L31 17 L31 30 L14 30 L14 17 L11 15 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="10" y="30" width="25" height="7" rx="1.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.Knight: `<path d="M14 37 L31 37 Q32 26 28 19 Q33 17 33 12 L29 10 L24 8 Q16 9 13 18 L11 24 Q12 27 15 26 L20 22 Q22 25 18 29 Q14 33 14 37 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="22" cy="14" r="1.4" fill="%[2]s"/>`,
	nchess.Bishop: `<circle cx="22.5" cy="8" r="2.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<ellipse cx="22.5" cy="20" rx="7" ry="9" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<path d="M20 16 L25 21" stroke="%[2]s" stroke-width="1.5"/>
<rect x="15" y="29" width="15" height="3" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="11" y="33" width="23" height="4" rx="1.5" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.Queen: `<path d="M9 14 L14 29 L31 29 L36 14 L29 24 L26 10 L22.5 23 L19 10 L16 24 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<circle cx="9" cy="12" r="2" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<circle cx="19" cy="8.5" r="2" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<circle cx="26" cy="8.5" r="2" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<circle cx="36" cy="12" r="2" fill="%[1]s" stroke="%[2]s" stroke-width="1.2"/>
<rect x="12" y="29" width="21" height="8" rx="2" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
	nchess.King: `<path d="M22.5 4 L22.5 12 M19 7.5 L26 7.5" stroke="%[2]s" stroke-width="2"/>
<path d="M22.5 13 Q31 12 33 19 Q34 25 29 30 L16 30 Q11 25 12 19 Q14 12 22.5 13 Z" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>
<rect x="12" y="30" width="21" height="7" rx="2" fill="%[1]s" stroke="%[2]s" stroke-width="1.5"/>`,
}

const (
	whitePieceFill   = "#f8f8f8"
	whitePieceStroke = "#1b1b1b"
	blackPieceFill   = "#2a2a2a"
	blackPieceStroke = "#0a0a0a"
)

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceSVG(piece nchess.Piece) (string, error) {
	shape, ok := pieceShapes[piece.Type()]
	if !ok {
		return "", fmt.Errorf("no shape for piece %v", piece)
	}
	fill, stroke := whitePieceFill, whitePieceStroke
	if piece.Color() == nchess.Black {
		fill, stroke = blackPieceFill, blackPieceStroke
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	b.WriteString(fmt.Sprintf(shape, fill, stroke))
	b.WriteString(`</svg>`)
	return b.String(), nil
}

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	svg, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
