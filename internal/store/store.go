// Package store persists article records incrementally. Every append rewrites
// the full JSON array so each record is durable as soon as Append returns.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jonesrussell/newsharvest/internal/domain"
	"github.com/jonesrussell/newsharvest/internal/logger"
)

// ErrCorrupt is returned by Records when the file is not a JSON array.
var ErrCorrupt = errors.New("record file is not a JSON array")

const (
	filePerm = 0o644
	dirPerm  = 0o755
	indent   = "    "
)

// CorruptFunc is called when existing content had to be discarded.
type CorruptFunc func(path string, size int)

// JSONFileStore appends records to a JSON array file. Safe for concurrent use.
type JSONFileStore struct {
	mu        sync.Mutex
	path      string
	log       logger.Logger
	onCorrupt CorruptFunc
}

// Option configures a JSONFileStore.
type Option func(*JSONFileStore)

// WithLogger sets the store logger.
func WithLogger(log logger.Logger) Option {
	return func(s *JSONFileStore) {
		s.log = log
	}
}

// WithCorruptHook registers fn to be told about discarded content.
func WithCorruptHook(fn CorruptFunc) Option {
	return func(s *JSONFileStore) {
		s.onCorrupt = fn
	}
}

// NewJSONFileStore opens path, creating it as an empty array when absent.
// Existing content is left untouched until the first Append.
func NewJSONFileStore(path string, opts ...Option) (*JSONFileStore, error) {
	s := &JSONFileStore{
		path: path,
		log:  logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("store"), logger.String("path", path))

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		if writeErr := s.writeLocked(nil); writeErr != nil {
			return nil, writeErr
		}
	default:
		return nil, fmt.Errorf("stat record file: %w", err)
	}

	return s, nil
}

// Path returns the file the store writes to.
func (s *JSONFileStore) Path() string {
	return s.path
}

// Append adds rec to the end of the persisted array. Content that cannot be
// parsed as an array is dropped with a warning and replaced by [rec].
func (s *JSONFileStore) Append(ctx context.Context, rec domain.ArticleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadLocked()
	if err != nil {
		return err
	}

	return s.writeLocked(append(existing, encoded))
}

// loadLocked reads the current array, discarding unreadable content.
func (s *JSONFileStore) loadLocked() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var items []json.RawMessage
	if err = json.Unmarshal(data, &items); err != nil {
		s.log.Warn("Discarding unreadable record file content",
			logger.Int("bytes", len(data)),
			logger.Error(err),
		)
		if s.onCorrupt != nil {
			s.onCorrupt(s.path, len(data))
		}
		return nil, nil
	}
	return items, nil
}

// writeLocked replaces the file with items via a temp file and rename.
func (s *JSONFileStore) writeLocked(items []json.RawMessage) error {
	if items == nil {
		items = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(items, "", indent)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp record file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp record file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp record file: %w", err)
	}
	if err = os.Chmod(tmpName, filePerm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp record file: %w", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace record file: %w", err)
	}
	return nil
}

// Records returns every persisted record in order.
func (s *JSONFileStore) Records(ctx context.Context) ([]domain.ArticleRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.ArticleRecord{}, nil
	}

	var records []domain.ArticleRecord
	if err = json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, err)
	}
	if records == nil {
		records = []domain.ArticleRecord{}
	}
	return records, nil
}
