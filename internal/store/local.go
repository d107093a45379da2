package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// fileBlob stores the task file on local disk.
type fileBlob struct {
	path string
}

func (f *fileBlob) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.path)
}

// Write rewrites the file in place so external watchers see a write
// rather than a replace.
func (f *fileBlob) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create task directory: %w", err)
	}
	return os.WriteFile(f.path, data, 0644)
}
