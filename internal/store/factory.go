package store

import (
	"errors"
	"strings"
)

const (
	EngineMemory   = "memory"
	EngineJSON     = "json"
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

type Options struct {
	Path string
	DSN  string
}

func NewByEngine(engine string, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineSQLite:
		return NewSQLiteStore(opts.Path)
	case EngineJSON:
		return NewJSONStore(opts.Path)
	case EngineMemory:
		return NewMemoryStore(), nil
	case EnginePostgres:
		if strings.TrimSpace(opts.DSN) == "" {
			return nil, errors.New("postgres store requires a dsn")
		}
		return NewPostgresStore(opts.DSN)
	default:
		return nil, errors.New("unsupported store engine: " + engine)
	}
}
