// Package fs reads ingest inputs from disk and persists job state as JSON
// files with atomic replace semantics.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/solracnyc/gasrag"
)

// writeJSON writes v to path through a temporary file in the same
// directory, then renames it over path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return gasrag.Errorf(gasrag.ENOTFOUND, "file not found: %s", path)
	} else if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return gasrag.Errorf(gasrag.EINVALID, "malformed %s: %v", filepath.Base(path), err)
	}
	return nil
}

// Ensure CheckpointFile implements gasrag.CheckpointStore at compile time.
var _ gasrag.CheckpointStore = (*CheckpointFile)(nil)

// CheckpointFile stores a migration checkpoint as a JSON file.
type CheckpointFile struct {
	path string
}

// NewCheckpointFile returns a CheckpointFile at path.
func NewCheckpointFile(path string) *CheckpointFile {
	return &CheckpointFile{path: path}
}

// LoadCheckpoint returns ENOTFOUND if the file does not exist.
func (f *CheckpointFile) LoadCheckpoint(ctx context.Context) (*gasrag.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cp gasrag.Checkpoint
	if err := readJSON(f.path, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (f *CheckpointFile) SaveCheckpoint(ctx context.Context, cp *gasrag.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeJSON(f.path, cp)
}

// DeleteCheckpoint removes the file. A missing file is not an error.
func (f *CheckpointFile) DeleteCheckpoint(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

var _ gasrag.CacheSnapshotStore = (*SnapshotFile)(nil)

// SnapshotFile stores a semantic cache snapshot as a JSON file.
type SnapshotFile struct {
	path string
}

// NewSnapshotFile returns a SnapshotFile at path.
func NewSnapshotFile(path string) *SnapshotFile {
	return &SnapshotFile{path: path}
}

func (f *SnapshotFile) SaveSnapshot(ctx context.Context, snap *gasrag.CacheSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeJSON(f.path, snap)
}

func (f *SnapshotFile) LoadSnapshot(ctx context.Context) (*gasrag.CacheSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var snap gasrag.CacheSnapshot
	if err := readJSON(f.path, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
