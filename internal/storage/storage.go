// Package storage persists clipboard history. The history store owns the
// entries in memory and hands the full ordered list to a Persister after
// every mutation.
package storage

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/types"
)

// Backend names accepted in configuration
const (
	BackendJSON = "json"
	BackendBolt = "bolt"
)

const formatVersion = 1

// Persister saves and restores the whole history at once
type Persister interface {
	// Load returns the persisted entries in display order. A missing store
	// yields no entries and no error.
	Load() ([]*types.Entry, error)

	// Save replaces the persisted history with entries
	Save(entries []*types.Entry) error

	Close() error
}

// StorageConfig holds configuration for persister initialization
type StorageConfig struct {
	Backend string
	// Path is the history file; when empty it is derived from DataDir
	Path    string
	DataDir string
	Logger  *zap.Logger
}

// DefaultPath returns the history location for backend under dataDir
func DefaultPath(backend, dataDir string) string {
	if backend == BackendBolt {
		return filepath.Join(dataDir, "history.db")
	}
	return filepath.Join(dataDir, "history.json")
}

// Open creates the persister selected by cfg.Backend
func Open(cfg StorageConfig) (Persister, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendJSON
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath(cfg.Backend, cfg.DataDir)
	}

	switch cfg.Backend {
	case BackendJSON:
		return NewJSONFile(cfg.Path, cfg.Logger), nil
	case BackendBolt:
		return NewBoltStorage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
