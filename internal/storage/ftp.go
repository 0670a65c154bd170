package storage

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-group/compliance-cli/internal/config"
)

// FTP stores documents on a remote FTP server. A fresh connection is opened
// per operation; the pipeline touches storage a handful of times per release.
type FTP struct {
	cfg     config.FTPConfig
	timeout time.Duration
}

// NewFTP creates an FTP backend from the configuration.
func NewFTP(cfg config.FTPConfig) *FTP {
	return &FTP{cfg: cfg, timeout: 30 * time.Second}
}

func (f *FTP) dial(ctx context.Context) (*ftp.ServerConn, error) {
	addr := f.cfg.Addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "21")
	}

	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(f.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "storage: ftp dial")
	}
	if err := conn.Login(f.cfg.User, f.cfg.Password); err != nil {
		conn.Quit()
		return nil, eris.Wrap(err, "storage: ftp login")
	}
	return conn, nil
}

func (f *FTP) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	conn, err := f.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Quit()

	remote := path.Join(f.cfg.BaseDir, path.Base(name))
	if err := conn.Stor(remote, r); err != nil {
		return "", eris.Wrapf(err, "storage: ftp store %s", remote)
	}

	zap.L().Debug("document stored", zap.String("path", remote))
	return remote, nil
}

// Fetch downloads the document to a temporary file. The cleanup func removes
// the temp copy.
func (f *FTP) Fetch(ctx context.Context, storedPath string) (string, func(), error) {
	noop := func() {}

	conn, err := f.dial(ctx)
	if err != nil {
		return "", noop, err
	}
	defer conn.Quit()

	resp, err := conn.Retr(storedPath)
	if err != nil {
		return "", noop, eris.Wrapf(err, "storage: ftp retrieve %s", storedPath)
	}
	defer resp.Close()

	tmp, err := os.CreateTemp("", "release-*"+filepath.Ext(storedPath))
	if err != nil {
		return "", noop, eris.Wrap(err, "storage: create temp file")
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, resp); err != nil {
		tmp.Close()
		cleanup()
		return "", noop, eris.Wrapf(err, "storage: download %s", storedPath)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", noop, eris.Wrap(err, "storage: close temp file")
	}
	return tmp.Name(), cleanup, nil
}

func (f *FTP) Delete(ctx context.Context, storedPath string) error {
	conn, err := f.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit()

	if err := conn.Delete(storedPath); err != nil {
		return eris.Wrapf(err, "storage: ftp delete %s", storedPath)
	}
	zap.L().Debug("document deleted", zap.String("path", storedPath))
	return nil
}
