// SPDX-License-Identifier: Apache-2.0

// Package storage reads statement files from object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Reader returns the text content of an object. Paths are in the form
// <bucket>/<object>.
type Reader interface {
	Read(ctx context.Context, path string) (string, error)
	Close() error
}

var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidPath = errors.New("invalid object path, expected <bucket>/<object>")
)

// SplitPath returns the bucket and object of the path.
func SplitPath(path string) (bucket, object string, err error) {
	bucket, object, found := strings.Cut(strings.TrimPrefix(path, "gs://"), "/")
	if !found || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return bucket, object, nil
}
