package settings

import (
	"fmt"
	"strings"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// OpenOptions selects and configures a Backend.
type OpenOptions struct {
	Kind          string
	Dir           string
	RedisAddr     string
	RedisPassword string
	DatabaseURL   string
}

// Open builds the backend named by opts.Kind. An empty kind means file.
func Open(opts OpenOptions) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case BackendMemory:
		return NewMemoryBackend(), nil
	case "", BackendFile:
		b, err := NewFileBackend(opts.Dir)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendRedis:
		b, err := NewRedisBackend(opts.RedisAddr, opts.RedisPassword)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendPostgres:
		b, err := NewGormBackend(opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown settings backend %q", opts.Kind)
	}
}
