package transcript

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/chess-train/internal/position"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStoreSaveLoad(t *testing.T) {
	s, mr := newTestRedisStore(t)
	s.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local) }
	ctx := context.Background()

	store := position.New()
	if _, err := store.Apply("d2d4"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	pos := store.Current()

	name, err := s.Save(ctx, "", pos)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if name != "chess-train-20260102-030405" {
		t.Fatalf("unexpected default name %q", name)
	}
	key := "chess-train:snapshot:" + name
	if !mr.Exists(key) {
		t.Fatalf("expected key %s", key)
	}
	if ttl := mr.TTL(key); ttl != 30*24*time.Hour {
		t.Fatalf("expected 30 day ttl, got %v", ttl)
	}

	loaded, err := s.Load(ctx, name+".fen")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.FEN != pos.FEN || loaded.Turn != position.Black {
		t.Fatalf("round trip mismatch: %+v vs %+v", loaded, pos)
	}
}

func TestRedisStoreMissingAndCorrupt(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	if _, err := s.Load(ctx, "nope"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	if err := mr.Set("chess-train:snapshot:bad", "not a fen"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := s.Load(ctx, "bad")
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, position.ErrInvalidFEN) {
		t.Fatalf("expected persistence error wrapping invalid FEN, got %v", err)
	}
}

func TestRedisStoreSaveFailure(t *testing.T) {
	s, mr := newTestRedisStore(t)
	mr.SetError("READONLY replica")
	_, err := s.Save(context.Background(), "named", position.New().Current())
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestDialRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	rdb, err := DialRedis(context.Background(), "redis://"+mr.Addr()+"/2")
	if err != nil {
		t.Fatalf("DialRedis: %v", err)
	}
	defer rdb.Close()
	if rdb.Options().DB != 2 {
		t.Fatalf("expected db 2, got %d", rdb.Options().DB)
	}
	if _, err := DialRedis(context.Background(), "http://"+mr.Addr()); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := DialRedis(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
