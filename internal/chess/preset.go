package chess

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/chess-train/internal/chess/uci"
)

// DifficultyPreset bundles default search limits and engine options.
type DifficultyPreset struct {
	Name           string
	SkillLevel     int
	Threads        int
	HashMB         int
	MoveTimeMillis int
	NodeCap        int
	DepthCap       int
	// Elo caps strength through UCI_LimitStrength; zero leaves it off.
	Elo int
}

const defaultThreads = 2
const forlv8 = 6

// Stockfish rejects UCI_Elo below this.
const minLimitedElo = 1320

var presetMu sync.RWMutex

var DefaultPresets = map[string]DifficultyPreset{
	"level1": {Name: "level1", SkillLevel: 0, Threads: 1, HashMB: 16, MoveTimeMillis: 20, DepthCap: 5},
	"level2": {Name: "level2", SkillLevel: 0, Threads: 1, HashMB: 16, MoveTimeMillis: 60, DepthCap: 6},
	"level3": {Name: "level3", SkillLevel: 1, Threads: defaultThreads, HashMB: 24, MoveTimeMillis: 80, DepthCap: 8},
	"level4": {Name: "level4", SkillLevel: 3, Threads: defaultThreads, HashMB: 32, MoveTimeMillis: 140, DepthCap: 10},
	"level5": {Name: "level5", SkillLevel: 7, Threads: defaultThreads, HashMB: 48, MoveTimeMillis: 200, DepthCap: 12},
	"level6": {Name: "level6", SkillLevel: 11, Threads: defaultThreads, HashMB: 64, MoveTimeMillis: 300, DepthCap: 16, Elo: 1400},
	"level7": {Name: "level7", SkillLevel: 16, Threads: defaultThreads, HashMB: 96, MoveTimeMillis: 500, DepthCap: 20, Elo: 1650},
	"level8": {Name: "level8", SkillLevel: 20, Threads: forlv8, HashMB: 128, MoveTimeMillis: 1000, DepthCap: 30},
}

func GetPreset(name string) (DifficultyPreset, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "beginner":
		name = "level1"
	case "intermediate":
		name = "level5"
	case "advanced":
		name = "level7"
	case "master":
		name = "level8"
	default:
		name = strings.ToLower(strings.TrimSpace(name))
	}
	presetMu.RLock()
	p, ok := DefaultPresets[name]
	presetMu.RUnlock()
	if ok {
		return p, nil
	}
	return DifficultyPreset{}, fmt.Errorf("unknown chess preset: %s", name)
}

// PresetNames lists the registered presets in order.
func PresetNames() []string {
	presetMu.RLock()
	defer presetMu.RUnlock()
	names := make([]string, 0, len(DefaultPresets))
	for name := range DefaultPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ValidatePreset(p DifficultyPreset) error {
	switch {
	case p.SkillLevel < 0 || p.SkillLevel > 20:
		return fmt.Errorf("skill level %d out of range 0-20", p.SkillLevel)
	case p.Threads <= 0:
		return fmt.Errorf("threads must be > 0: %d", p.Threads)
	case p.HashMB <= 0:
		return fmt.Errorf("hash size must be > 0: %d", p.HashMB)
	case p.MoveTimeMillis < 0:
		return fmt.Errorf("move time must be >= 0: %d", p.MoveTimeMillis)
	case p.NodeCap < 0:
		return fmt.Errorf("node cap must be >= 0: %d", p.NodeCap)
	case p.DepthCap < 0:
		return fmt.Errorf("depth cap must be >= 0: %d", p.DepthCap)
	case p.Elo != 0 && p.Elo < minLimitedElo:
		return fmt.Errorf("elo %d below engine minimum %d", p.Elo, minLimitedElo)
	}
	return nil
}

// Limits returns the preset's search bounds.
func (p DifficultyPreset) Limits() SearchLimits {
	return SearchLimits{
		Time:  time.Duration(p.MoveTimeMillis) * time.Millisecond,
		Depth: p.DepthCap,
		Nodes: p.NodeCap,
	}
}

// Options returns the engine options the preset sets.
func (p DifficultyPreset) Options() uci.Options {
	opts := uci.Options{
		"Skill Level": uci.IntOption(int64(p.SkillLevel)),
		"Threads":     uci.IntOption(int64(p.Threads)),
		"Hash":        uci.IntOption(int64(p.HashMB)),
	}
	if p.Elo > 0 {
		opts["UCI_LimitStrength"] = uci.BoolOption(true)
		opts["UCI_Elo"] = uci.IntOption(int64(p.Elo))
	}
	return opts
}
