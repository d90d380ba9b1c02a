package transcript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/park285/chess-train/internal/position"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

const snapshotNameLayout = "chess-train-20060102-150405"

// SnapshotExt is the extension of file snapshots.
const SnapshotExt = ".fen"

// SnapshotForResume encodes pos as a single FEN line.
func SnapshotForResume(pos position.Position) []byte {
	return []byte(strings.TrimSpace(pos.FEN) + "\n")
}

// RestoreFromSnapshot decodes a snapshot written by SnapshotForResume. Blank
// lines and lines starting with '#' are skipped.
func RestoreFromSnapshot(data []byte) (position.Position, error) {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		store, err := position.FromFEN(line)
		if err != nil {
			return position.Position{}, err
		}
		return store.Current(), nil
	}
	return position.Position{}, fmt.Errorf("%w: empty snapshot", position.ErrInvalidFEN)
}

// DefaultSnapshotName is the timestamped name used when no path is given.
func DefaultSnapshotName(now time.Time) string {
	return now.Format(snapshotNameLayout) + SnapshotExt
}

// SnapshotStore persists positions under a name.
type SnapshotStore interface {
	// Save stores pos under name, or a timestamped default name when name is
	// empty, and returns where it went.
	Save(ctx context.Context, name string, pos position.Position) (string, error)
	Load(ctx context.Context, name string) (position.Position, error)
}

// FileStore keeps one snapshot per file.
type FileStore struct {
	// Dir receives default-named snapshots; explicit names are used as given.
	Dir string
	Now func() time.Time
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir, Now: time.Now}
}

func (s *FileStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *FileStore) Save(_ context.Context, name string, pos position.Position) (string, error) {
	path := strings.TrimSpace(name)
	if path == "" {
		path = filepath.Join(s.Dir, DefaultSnapshotName(s.now()))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", &PersistenceError{Op: "save snapshot", Target: path, Err: err}
		}
	}
	if err := os.WriteFile(path, SnapshotForResume(pos), 0o644); err != nil {
		return "", &PersistenceError{Op: "save snapshot", Target: path, Err: err}
	}
	return path, nil
}

func (s *FileStore) Load(_ context.Context, name string) (position.Position, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return position.Position{}, &PersistenceError{Op: "load snapshot", Target: name, Err: ErrSnapshotNotFound}
	}
	if err != nil {
		return position.Position{}, &PersistenceError{Op: "load snapshot", Target: name, Err: err}
	}
	pos, err := RestoreFromSnapshot(data)
	if err != nil {
		return position.Position{}, &PersistenceError{Op: "load snapshot", Target: name, Err: err}
	}
	return pos, nil
}
