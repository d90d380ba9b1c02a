package archive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const standardStartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

const (
	humanName  = "Human"
	engineName = "Engine"
)

// BuildPGN renders g as a PGN game. Games that started from a saved position
// carry SetUp and FEN tags and number their moves from that position.
func BuildPGN(g *Game) string {
	if g == nil {
		return ""
	}
	var b strings.Builder
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	white, black := humanName, engineName
	if strings.EqualFold(g.PlayerSide, "black") {
		white, black = engineName, humanName
	}
	result := g.Result
	if result == "" {
		result = "*"
	}

	b.WriteString("[Event \"chess-train\"]\n")
	b.WriteString("[Site \"local\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", white))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", black))
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n", result))
	startFEN := strings.TrimSpace(g.StartFEN)
	if startFEN != "" && startFEN != standardStartFEN {
		b.WriteString("[SetUp \"1\"]\n")
		b.WriteString(fmt.Sprintf("[FEN \"%s\"]\n", sanitizePGN(startFEN)))
	}
	if strings.TrimSpace(g.Opening) != "" {
		b.WriteString(fmt.Sprintf("[Opening \"%s\"]\n", sanitizePGN(g.Opening)))
	}
	if strings.TrimSpace(g.ResultMethod) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(g.ResultMethod))))
	}
	b.WriteString("\n")

	number, blackToMove := startCounters(startFEN)
	var tokens []string
	for i, san := range g.MovesSAN {
		san = strings.TrimSpace(san)
		switch {
		case !blackToMove:
			tokens = append(tokens, fmt.Sprintf("%d. %s", number, san))
		case i == 0:
			tokens = append(tokens, fmt.Sprintf("%d... %s", number, san))
		default:
			tokens = append(tokens, san)
		}
		if blackToMove {
			number++
		}
		blackToMove = !blackToMove
	}
	tokens = append(tokens, result)
	b.WriteString(strings.Join(tokens, " "))
	b.WriteString("\n")
	return b.String()
}

func startCounters(fen string) (int, bool) {
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return 1, false
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n <= 0 {
		n = 1
	}
	return n, fields[1] == "b"
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
