package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/types"
)

type historyDocument struct {
	Version int            `json:"version"`
	Entries []*types.Entry `json:"entries"`
}

// JSONFile keeps the history in a single JSON document that is rewritten
// wholesale on every save
type JSONFile struct {
	path   string
	logger *zap.Logger
}

// NewJSONFile returns a persister writing to path
func NewJSONFile(path string, logger *zap.Logger) *JSONFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONFile{path: path, logger: logger}
}

// Path returns the history file location
func (j *JSONFile) Path() string { return j.path }

func (j *JSONFile) Load() ([]*types.Entry, error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		j.logger.Debug("No history file yet", zap.String("path", j.path))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var doc historyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode history file %s: %w", j.path, err)
	}
	if doc.Version > formatVersion {
		return nil, fmt.Errorf("history file version %d is newer than supported version %d", doc.Version, formatVersion)
	}

	entries := doc.Entries[:0]
	for _, e := range doc.Entries {
		if e == nil || e.ID == "" {
			continue
		}
		entries = append(entries, e)
	}
	j.logger.Debug("Loaded history", zap.String("path", j.path), zap.Int("entries", len(entries)))
	return entries, nil
}

func (j *JSONFile) Save(entries []*types.Entry) error {
	if entries == nil {
		entries = []*types.Entry{}
	}
	data, err := json.Marshal(historyDocument{Version: formatVersion, Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return writeFileAtomic(j.path, data, 0600)
}

func (j *JSONFile) Close() error { return nil }

// writeFileAtomic writes data next to path and renames it into place so a
// crash never leaves a truncated document behind
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
