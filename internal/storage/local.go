package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Local keeps documents on the local filesystem under a base directory.
type Local struct {
	dir string
}

// NewLocal creates the base directory if needed.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = "./data/releases"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "storage: create dir %s", dir)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Put(_ context.Context, name string, r io.Reader) (string, error) {
	path := filepath.Join(l.dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "storage: create %s", path)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", eris.Wrapf(err, "storage: write %s", path)
	}
	return path, nil
}

// Fetch returns the stored path directly; nothing to clean up.
func (l *Local) Fetch(_ context.Context, storedPath string) (string, func(), error) {
	if _, err := os.Stat(storedPath); err != nil {
		return "", func() {}, eris.Wrapf(err, "storage: stat %s", storedPath)
	}
	return storedPath, func() {}, nil
}

// Delete removes the stored file. A file that is already gone is not an error.
func (l *Local) Delete(_ context.Context, storedPath string) error {
	if err := os.Remove(storedPath); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "storage: remove %s", storedPath)
	}
	return nil
}
