// Package transcript records games as text and persists positions for resume.
package transcript

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/park285/chess-train/internal/chess"
	"github.com/park285/chess-train/internal/position"
)

var ErrPersistence = errors.New("persistence failed")

// PersistenceError wraps a failed transcript or snapshot write or read.
type PersistenceError struct {
	Op     string
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

const (
	timestampLayout = "2006-01-02T15:04:05.000000"
	ruleWidth       = 50
)

// Header opens one game in the transcript.
type Header struct {
	SessionID  string
	StartedAt  time.Time
	PlayerSide position.Side
	Preset     string
	Limits     chess.SearchLimits
	// ResumedFrom is the FEN a resumed game started from.
	ResumedFrom string
}

// Recorder appends game records to a file. Every line is synced before the
// call returns. A nil *Recorder accepts every call and writes nothing.
type Recorder struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// Open appends to path, creating it when missing. An empty path yields a nil
// recorder.
func Open(path string) (*Recorder, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &PersistenceError{Op: "open transcript", Target: path, Err: err}
	}
	return &Recorder{path: path, f: f}, nil
}

func (r *Recorder) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

func (r *Recorder) WriteHeader(h Header) error {
	if r == nil {
		return nil
	}
	started := h.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	var b strings.Builder
	b.WriteString(strings.Repeat("=", ruleWidth) + "\n")
	fmt.Fprintf(&b, "%s | CHESS TRAIN\n", started.Format(timestampLayout))
	b.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	if h.SessionID != "" {
		fmt.Fprintf(&b, "\tSession: %s\n", h.SessionID)
	}
	fmt.Fprintf(&b, "\tPlayer side: %s\n", h.PlayerSide)
	if h.Preset != "" {
		fmt.Fprintf(&b, "\tPreset: %s\n", h.Preset)
	}
	if h.ResumedFrom != "" {
		fmt.Fprintf(&b, "\tResumed from: %s\n", h.ResumedFrom)
	}
	b.WriteString("\tEngine Limits\n")
	for _, field := range h.Limits.Fields() {
		fmt.Fprintf(&b, "\t\t%s: %s\n", field.Key, field.Value)
	}
	b.WriteString(strings.Repeat("=", ruleWidth) + "\n")
	return r.write(b.String())
}

// AppendMove writes one ply in movetext form, with the annotation as a
// trailing comment when set.
func (r *Recorder) AppendMove(move position.Applied, annotation string) error {
	if r == nil {
		return nil
	}
	line := move.Movetext()
	if annotation = strings.TrimSpace(annotation); annotation != "" {
		line += " { " + strings.ReplaceAll(annotation, "}", ")") + " }"
	}
	return r.write(line + "\n")
}

// AppendComment writes a standalone movetext comment, used for takebacks.
func (r *Recorder) AppendComment(text string) error {
	if r == nil {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return r.write("{ " + strings.ReplaceAll(text, "}", ")") + " }\n")
}

// WriteResult closes the game record. opening is the ECO line, if known.
func (r *Recorder) WriteResult(outcome position.Outcome, opening string) error {
	if r == nil {
		return nil
	}
	var b strings.Builder
	if opening != "" {
		fmt.Fprintf(&b, "\tOpening: %s\n", opening)
	}
	if outcome.Method != "" && !outcome.Ongoing() {
		fmt.Fprintf(&b, "\tTermination: %s\n", outcome.Method)
	}
	fmt.Fprintf(&b, "Result: %s\n\n", outcome.Result)
	return r.write(b.String())
}

func (r *Recorder) write(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return &PersistenceError{Op: "write transcript", Target: r.path, Err: os.ErrClosed}
	}
	if _, err := r.f.WriteString(s); err != nil {
		return &PersistenceError{Op: "write transcript", Target: r.path, Err: err}
	}
	if err := r.f.Sync(); err != nil {
		return &PersistenceError{Op: "sync transcript", Target: r.path, Err: err}
	}
	return nil
}

func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
