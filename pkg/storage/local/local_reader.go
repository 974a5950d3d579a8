// SPDX-License-Identifier: Apache-2.0

// Package local reads objects from the local filesystem, the bucket being a
// directory under the configured root.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xataio/bai2load/pkg/storage"
)

type Reader struct {
	root string
}

var _ storage.Reader = (*Reader)(nil)

func NewReader(root string) *Reader {
	return &Reader{root: root}
}

func (r *Reader) Read(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	bucket, object, err := storage.SplitPath(path)
	if err != nil {
		return "", err
	}

	root, err := os.OpenRoot(filepath.Join(r.root, bucket))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, path)
		}
		return "", err
	}
	defer root.Close()

	content, err := root.ReadFile(object)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, path)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(content), nil
}

func (r *Reader) Close() error {
	return nil
}
