// SPDX-License-Identifier: Apache-2.0

// Package gcs reads objects from Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/xataio/bai2load/internal/backoff"
	loglib "github.com/xataio/bai2load/pkg/log"
	"github.com/xataio/bai2load/pkg/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type Config struct {
	Backoff backoff.Config
}

type Reader struct {
	logger          loglib.Logger
	objects         objectOpener
	backoffProvider backoff.Provider
}

type objectOpener interface {
	open(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	Close() error
}

type Option func(r *Reader)

var _ storage.Reader = (*Reader)(nil)

func NewReader(ctx context.Context, cfg *Config, opts ...Option) (*Reader, error) {
	client, err := gcstorage.NewClient(ctx, option.WithUserAgent("bai2load"))
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return newReader(&gcsClient{client: client}, cfg, opts...), nil
}

func newReader(objects objectOpener, cfg *Config, opts ...Option) *Reader {
	r := &Reader{
		logger:          loglib.NewNoopLogger(),
		objects:         objects,
		backoffProvider: backoff.NewProvider(&cfg.Backoff),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func WithLogger(l loglib.Logger) Option {
	return func(r *Reader) {
		r.logger = loglib.NewLogger(l).WithFields(loglib.Fields{
			loglib.ModuleField: "gcs_reader",
		})
	}
}

func (r *Reader) Read(ctx context.Context, path string) (string, error) {
	bucket, object, err := storage.SplitPath(path)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("gs://%s/%s", bucket, object)
	r.logger.Info("reading file", loglib.Fields{"path": url})

	var content []byte
	err = r.backoffProvider(ctx).RetryNotify(
		func() error {
			var readErr error
			content, readErr = r.readObject(ctx, bucket, object)
			if readErr != nil && !isTransient(readErr) {
				return backoff.Permanent(readErr)
			}
			return readErr
		},
		func(err error, d time.Duration) {
			r.logger.Warn(err, "reading file failed, retrying", loglib.Fields{"path": url, "backoff": d})
		})
	if err != nil {
		if errors.Is(err, gcstorage.ErrObjectNotExist) || errors.Is(err, gcstorage.ErrBucketNotExist) {
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, url)
		}
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	return string(content), nil
}

func (r *Reader) Close() error {
	return r.objects.Close()
}

func (r *Reader) readObject(ctx context.Context, bucket, object string) ([]byte, error) {
	rc, err := r.objects.open(ctx, bucket, object)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func isTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= http.StatusInternalServerError || apiErr.Code == http.StatusTooManyRequests
	}
	return false
}

type gcsClient struct {
	client *gcstorage.Client
}

func (g *gcsClient) open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return g.client.Bucket(bucket).Object(object).NewReader(ctx)
}

func (g *gcsClient) Close() error {
	return g.client.Close()
}
