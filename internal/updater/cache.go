package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/vizu-disain/vizu/internal/platform"
)

const stateFileSuffix = ".update-state.json"

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileStore persists CheckState as one JSON file per package in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir. The directory is created on
// first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the state file used for packageID.
func (s *FileStore) Path(packageID string) string {
	return filepath.Join(s.dir, unsafeIDChars.ReplaceAllString(packageID, "_")+stateFileSuffix)
}

// Load reads the state for packageID.
// Returns nil, nil if the state file does not exist (never checked).
func (s *FileStore) Load(_ context.Context, packageID string) (*CheckState, error) {
	data, err := os.ReadFile(s.Path(packageID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading update state: %w", err)
	}

	var st CheckState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing update state: %w", err)
	}
	return &st, nil
}

// Save writes the state for packageID via a temp file and rename, so readers
// never observe a half-written file.
func (s *FileStore) Save(_ context.Context, packageID string, st *CheckState) error {
	if err := os.MkdirAll(s.dir, platform.DirPermDefault); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling update state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".state-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing update state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing update state: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path(packageID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing update state: %w", err)
	}
	return nil
}

// Delete removes the state for packageID. Missing state is not an error.
func (s *FileStore) Delete(_ context.Context, packageID string) error {
	if err := os.Remove(s.Path(packageID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing update state: %w", err)
	}
	return nil
}
