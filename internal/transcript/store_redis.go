package transcript

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/chess-train/internal/position"
)

const (
	snapshotKeyPrefix = "chess-train:snapshot:"
	ttlSnapshot       = 30 * 24 * time.Hour
)

// RedisStore keeps snapshots as string values with a TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	Now func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttlSnapshot, Now: time.Now}
}

// DialRedis connects to a redis:// or rediss:// URL and pings it.
func DialRedis(ctx context.Context, raw string) (*redis.Client, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("redis url required")
	}
	opts, err := parseRedisURL(raw)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

func (s *RedisStore) key(name string) string {
	return snapshotKeyPrefix + strings.TrimSuffix(strings.TrimSpace(name), SnapshotExt)
}

func (s *RedisStore) Save(ctx context.Context, name string, pos position.Position) (string, error) {
	if strings.TrimSpace(name) == "" {
		now := time.Now
		if s.Now != nil {
			now = s.Now
		}
		name = DefaultSnapshotName(now())
	}
	name = strings.TrimSuffix(strings.TrimSpace(name), SnapshotExt)
	if err := s.rdb.Set(ctx, s.key(name), SnapshotForResume(pos), s.ttl).Err(); err != nil {
		return "", &PersistenceError{Op: "save snapshot", Target: s.key(name), Err: err}
	}
	return name, nil
}

func (s *RedisStore) Load(ctx context.Context, name string) (position.Position, error) {
	raw, err := s.rdb.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return position.Position{}, &PersistenceError{Op: "load snapshot", Target: s.key(name), Err: ErrSnapshotNotFound}
	}
	if err != nil {
		return position.Position{}, &PersistenceError{Op: "load snapshot", Target: s.key(name), Err: err}
	}
	pos, err := RestoreFromSnapshot(raw)
	if err != nil {
		return position.Position{}, &PersistenceError{Op: "load snapshot", Target: s.key(name), Err: err}
	}
	return pos, nil
}
