// Package deploy uploads generated sites to the hosting sandbox.
package deploy

import (
	"context"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Uploader copies a local directory tree to a remote root.
type Uploader interface {
	Upload(ctx context.Context, localDir, remoteRoot string) (int, error)
}

// Conn is the subset of *ftp.ServerConn used for uploads.
type Conn interface {
	Login(user, password string) error
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	Quit() error
}

// DialFunc opens a connection to addr.
type DialFunc func(ctx context.Context, addr string, timeout time.Duration) (Conn, error)

// FTPOptions configures the FTP uploader.
type FTPOptions struct {
	Host     string
	User     string
	Password string
	Timeout  time.Duration
	// Dial overrides the network dialer.
	Dial DialFunc
}

// FTPUploader uploads files over FTP.
type FTPUploader struct {
	opts FTPOptions
}

// NewFTPUploader creates an FTPUploader. A host without a port uses 21.
func NewFTPUploader(opts FTPOptions) *FTPUploader {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Dial == nil {
		opts.Dial = dialFTP
	}
	if _, _, err := net.SplitHostPort(opts.Host); err != nil && opts.Host != "" {
		opts.Host = net.JoinHostPort(opts.Host, "21")
	}
	return &FTPUploader{opts: opts}
}

func dialFTP(ctx context.Context, addr string, timeout time.Duration) (Conn, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Upload mirrors localDir under remoteRoot and returns the number of files
// stored. Directories are created as needed; a MakeDir failure for an
// existing directory is ignored.
func (u *FTPUploader) Upload(ctx context.Context, localDir, remoteRoot string) (int, error) {
	info, err := os.Stat(localDir)
	if err != nil {
		return 0, eris.Wrapf(err, "deploy: stat %s", localDir)
	}
	if !info.IsDir() {
		return 0, eris.Errorf("deploy: %s is not a directory", localDir)
	}

	log := zap.L().With(zap.String("host", u.opts.Host), zap.String("remote_root", remoteRoot))
	log.Debug("ftp: connecting")

	conn, err := u.opts.Dial(ctx, u.opts.Host, u.opts.Timeout)
	if err != nil {
		return 0, eris.Wrap(err, "deploy: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(u.opts.User, u.opts.Password); err != nil {
		return 0, eris.Wrap(err, "deploy: ftp login")
	}

	if remoteRoot != "" {
		makeDirs(conn, remoteRoot)
	}

	stored := 0
	err = filepath.WalkDir(localDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		remote := path.Join(remoteRoot, filepath.ToSlash(rel))

		if d.IsDir() {
			if err := conn.MakeDir(remote); err != nil {
				log.Debug("ftp: mkdir failed, assuming it exists", zap.String("dir", remote), zap.Error(err))
			}
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck

		if err := conn.Stor(remote, f); err != nil {
			return eris.Wrapf(err, "store %s", remote)
		}
		stored++
		return nil
	})
	if err != nil {
		return stored, eris.Wrap(err, "deploy: upload")
	}

	log.Info("ftp: upload complete", zap.Int("files", stored))
	return stored, nil
}

// makeDirs creates every component of dir, ignoring failures for
// components that already exist.
func makeDirs(conn Conn, dir string) {
	cur := ""
	if path.IsAbs(dir) {
		cur = "/"
	}
	for _, part := range strings.Split(path.Clean(dir), "/") {
		if part == "" {
			continue
		}
		cur = path.Join(cur, part)
		_ = conn.MakeDir(cur)
	}
}
