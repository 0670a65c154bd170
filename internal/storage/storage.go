// Package storage holds the uploaded release documents: put a document in,
// get a local path back so the text extractor can run over it, and reclaim
// the file when its release is deleted.
package storage

import (
	"context"
	"io"

	"github.com/rotisserie/eris"

	"github.com/veridian-group/compliance-cli/internal/config"
)

// Backend stores and retrieves release documents.
type Backend interface {
	// Put stores the document under name and returns the stored path to
	// record on the release.
	Put(ctx context.Context, name string, r io.Reader) (string, error)

	// Fetch makes the stored document available as a local file. The
	// cleanup func removes any temporary copy and is safe to call always.
	Fetch(ctx context.Context, storedPath string) (localPath string, cleanup func(), err error)

	// Delete removes the stored document.
	Delete(ctx context.Context, storedPath string) error
}

// New picks a backend from the configuration.
func New(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case "local", "":
		return NewLocal(cfg.Dir)
	case "ftp":
		return NewFTP(cfg.FTP), nil
	default:
		return nil, eris.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
