// Package ingest turns an uploaded release file into ordered, immutable
// chunks ready for anonymization and vector indexing.
package ingest

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/veridian-group/compliance-cli/internal/config"
)

// Extractor extracts plain text from an uploaded release file.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.ExtractConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalExtractor(cfg.PdfToTextPath), nil
	default:
		return nil, eris.Errorf("ingest: unknown extract provider %q", cfg.Provider)
	}
}

// LocalExtractor reads plain-text files directly and shells out to the
// pdftotext CLI for PDFs.
type LocalExtractor struct {
	binPath string
}

// NewLocalExtractor creates a LocalExtractor. If binPath is empty,
// "pdftotext" is used.
func NewLocalExtractor(binPath string) *LocalExtractor {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &LocalExtractor{binPath: binPath}
}

// ExtractText returns the text content of the file at path. A missing or
// unreadable file is an error; the caller treats it as fatal for the run.
func (e *LocalExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", eris.Wrapf(err, "ingest: release file %s", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return e.pdfToText(ctx, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: read %s", path)
	}
	return string(data), nil
}

func (e *LocalExtractor) pdfToText(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, e.binPath, "-layout", path, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ingest: pdftotext failed for %s: %s", path, stderr.String())
	}
	return stdout.String(), nil
}
