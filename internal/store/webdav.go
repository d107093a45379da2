package store

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/studio-b12/gowebdav"
)

// davBlob stores the task file on a WebDAV server.
type davBlob struct {
	client *gowebdav.Client
	path   string
}

func newDavBlob(cfg BackendConfig, timeout time.Duration) *davBlob {
	c := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	c.SetTimeout(timeout)
	return &davBlob{client: c, path: cfg.RemotePath}
}

func (b *davBlob) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := b.client.Read(b.path)
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, fmt.Errorf("%s: %w", b.path, fs.ErrNotExist)
		}
		return nil, err
	}
	return data, nil
}

func (b *davBlob) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := path.Dir(b.path); dir != "/" && dir != "." {
		if err := b.client.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create remote directory: %w", err)
		}
	}
	return b.client.Write(b.path, data, 0644)
}

// TestConnection checks that the server accepts the credentials and that
// the task file exists.
func TestConnection(ctx context.Context, url, remotePath, username, password string) error {
	cfg := RemoteConfig(url, remotePath, username, password)
	if err := cfg.Validate(); err != nil {
		return err
	}

	c := gowebdav.NewClient(url, username, password)
	timeout := 15 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	c.SetTimeout(timeout)

	if err := c.Connect(); err != nil {
		return fmt.Errorf("connect %s: %w", url, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.Stat(remotePath); err != nil {
		if gowebdav.IsErrNotFound(err) {
			return fmt.Errorf("%s: %w", remotePath, ErrNotFound)
		}
		return fmt.Errorf("stat %s: %w", remotePath, err)
	}
	return nil
}
