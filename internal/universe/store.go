package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists precomputed universe snapshots
type Store interface {
	Load(ctx context.Context) ([]Snapshot, error)
	Save(ctx context.Context, snapshots []Snapshot) error
	Close() error
}

// Config selects and configures the snapshot store
type Config struct {
	Source        string `json:"source"` // "file", "sqlite", "redis" or "" for a static universe
	Path          string `json:"path"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	RedisKey      string `json:"redis_key"`
}

// Validate validates the universe configuration
func (c Config) Validate() error {
	switch c.Source {
	case "":
		return nil
	case "file", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("universe source %q requires a path", c.Source)
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("universe source redis requires redis_addr")
		}
	default:
		return fmt.Errorf("unknown universe source %q (use file, sqlite or redis)", c.Source)
	}
	return nil
}

// Open returns the store selected by cfg. A nil store with nil error means a
// static universe (every configured symbol always active).
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Source {
	case "":
		return nil, nil
	case "file":
		return NewFileStore(cfg.Path), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
	default:
		return nil, fmt.Errorf("unknown universe source %q", cfg.Source)
	}
}

// LoadPrepared loads snapshots from store and prepares them for lookup
func LoadPrepared(ctx context.Context, store Store) ([]Snapshot, error) {
	snaps, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Prepare(snaps)
}

type fileDocument struct {
	Windows []Snapshot `json:"windows"`
}

// FileStore keeps snapshots in a JSON document
type FileStore struct {
	path string
}

// NewFileStore creates a JSON file store
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads all windows from the JSON file
func (s *FileStore) Load(ctx context.Context) ([]Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file %s: %w", s.path, err)
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse universe file %s: %w", s.path, err)
	}
	return doc.Windows, nil
}

// Save writes all windows to the JSON file
func (s *FileStore) Save(ctx context.Context, snapshots []Snapshot) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(fileDocument{Windows: snapshots}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal universe: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}

// Close is a no-op for file stores
func (s *FileStore) Close() error { return nil }
