package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/types"
	"github.com/berrythewa/clipstack/pkg/compression"
)

const (
	historyBucket = "history"
	metaBucket    = "meta"
	versionKey    = "version"
)

// BoltStorage persists history in a bbolt database. Entries are keyed by
// their position in display order; values are JSON, gzipped when large.
type BoltStorage struct {
	db     *bbolt.DB
	path   string
	logger *zap.Logger
}

// NewBoltStorage opens or creates the database at config.Path
func NewBoltStorage(config StorageConfig) (*BoltStorage, error) {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bbolt.Open(config.Path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(historyBucket)); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return err
		}
		if v := meta.Get([]byte(versionKey)); v != nil {
			if got := binary.BigEndian.Uint64(v); got > formatVersion {
				return fmt.Errorf("database version %d is newer than supported version %d", got, formatVersion)
			}
			return nil
		}
		return meta.Put([]byte(versionKey), itob(formatVersion))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	logger.Debug("BoltStorage initialized", zap.String("db_path", config.Path))
	return &BoltStorage{db: db, path: config.Path, logger: logger}, nil
}

func (s *BoltStorage) Load() ([]*types.Entry, error) {
	var entries []*types.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		return b.ForEach(func(k, v []byte) error {
			raw, err := compression.Decompress(v)
			if err != nil {
				s.logger.Warn("Skipping unreadable history record",
					zap.Uint64("key", binary.BigEndian.Uint64(k)), zap.Error(err))
				return nil
			}
			var e types.Entry
			if err := json.Unmarshal(raw, &e); err != nil {
				s.logger.Warn("Skipping undecodable history record",
					zap.Uint64("key", binary.BigEndian.Uint64(k)), zap.Error(err))
				return nil
			}
			entries = append(entries, &e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}

func (s *BoltStorage) Save(entries []*types.Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(historyBucket)); err != nil && err != bbolt.ErrBucketNotFound {
			return fmt.Errorf("failed to reset history bucket: %w", err)
		}
		b, err := tx.CreateBucket([]byte(historyBucket))
		if err != nil {
			return fmt.Errorf("failed to create history bucket: %w", err)
		}
		for i, e := range entries {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to encode entry %s: %w", e.ID, err)
			}
			data, _, err = compression.Compress(data)
			if err != nil {
				return err
			}
			if err := b.Put(itob(uint64(i)), data); err != nil {
				return fmt.Errorf("failed to store entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// Close closes the database
func (s *BoltStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
