package extract

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Storage opens uploaded files by storage key.
type Storage interface {
	Open(key string) (io.ReadCloser, error)
}

// LocalStorage serves uploads from a directory on disk.
type LocalStorage struct {
	Root string
}

// Open returns the file stored under key. Keys may not escape Root.
func (s LocalStorage) Open(key string) (io.ReadCloser, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	path := filepath.Join(root, filepath.FromSlash(key))
	if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: key %q is outside storage", ErrSourceNotFound, key)
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}
