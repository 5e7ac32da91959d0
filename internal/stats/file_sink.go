package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes the snapshot as an indented JSON document, replacing the file.
type FileSink struct {
	Path string
}

// NewFileSink creates a FileSink for path.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

// Write implements Sink.
func (f *FileSink) Write(_ context.Context, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	if dir := filepath.Dir(f.Path); dir != "." {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return fmt.Errorf("create stats dir: %w", mkErr)
		}
	}

	tmp := f.Path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write stats file %s: %w", f.Path, err)
	}
	if err = os.Rename(tmp, f.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace stats file %s: %w", f.Path, err)
	}
	return nil
}
