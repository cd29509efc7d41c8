package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const defaultRedisKey = "trend-engine:universe"

// RedisConfig configures the Redis snapshot store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisStore keeps windows as JSON members of a sorted set scored by start time
type RedisStore struct {
	client *goredis.Client
	key    string
}

// NewRedisStore connects to Redis and pings the server
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	key := cfg.Key
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{client: client, key: key}, nil
}

// Load reads all windows ordered by start
func (s *RedisStore) Load(ctx context.Context) ([]Snapshot, error) {
	members, err := s.client.ZRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange %s: %w", s.key, err)
	}
	snaps := make([]Snapshot, 0, len(members))
	for _, m := range members {
		var snap Snapshot
		if err := json.Unmarshal([]byte(m), &snap); err != nil {
			return nil, fmt.Errorf("redis decode universe window: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Save replaces the sorted set atomically
func (s *RedisStore) Save(ctx context.Context, snapshots []Snapshot) error {
	members := make([]*goredis.Z, 0, len(snapshots))
	for _, snap := range snapshots {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("redis encode universe window: %w", err)
		}
		members = append(members, &goredis.Z{Score: float64(toUnix(snap.Start)), Member: string(data)})
	}

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(members) > 0 {
			pipe.ZAdd(ctx, s.key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save universe: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
