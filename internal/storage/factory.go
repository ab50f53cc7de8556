package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"engagement-engine/internal/config"
)

// New builds the backend named by cfg.Type. It does not call Init.
func New(cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "disk":
		return NewDiskStorage(cfg.DataDir, cfg.CacheSize), nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(cfg.DataDir, "chat.db")
		}
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrStorageInit, err)
			}
		}
		return NewSQLiteStorage(dsn), nil
	case "mysql":
		return NewMySQLStorage(cfg.DSN), nil
	case "redis":
		return NewRedisStorage(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix, cfg.Redis.TTL), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}
