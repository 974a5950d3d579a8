// SPDX-License-Identifier: Apache-2.0

// Package jsonl is a dry run loader writing records as JSON lines instead of
// loading them into a warehouse.
package jsonl

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/xataio/bai2load/internal/json"
	loglib "github.com/xataio/bai2load/pkg/log"
	"github.com/xataio/bai2load/pkg/warehouse"
)

type Config struct {
	// OutputDir is the directory where one <table>.jsonl file is written
	// per table. When empty, records are written to the loader writer
	// tagged with their table.
	OutputDir string
}

type Loader struct {
	logger    loglib.Logger
	outputDir string
	out       io.Writer
	mutex     sync.Mutex
}

type Option func(l *Loader)

type taggedRecord struct {
	Table  string           `json:"table"`
	Record warehouse.Record `json:"record"`
}

var _ warehouse.Loader = (*Loader)(nil)

func NewLoader(cfg *Config, opts ...Option) *Loader {
	l := &Loader{
		logger:    loglib.NewNoopLogger(),
		outputDir: cfg.OutputDir,
		out:       os.Stdout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func WithLogger(l loglib.Logger) Option {
	return func(loader *Loader) {
		loader.logger = loglib.NewLogger(l).WithFields(loglib.Fields{
			loglib.ModuleField: "jsonl_loader",
		})
	}
}

func WithWriter(w io.Writer) Option {
	return func(l *Loader) {
		l.out = w
	}
}

// TableExists always returns true, there's no warehouse to check.
func (l *Loader) TableExists(context.Context, string) (bool, error) {
	return true, nil
}

func (l *Loader) BulkInsert(ctx context.Context, table string, records []warehouse.Record) ([]warehouse.RowError, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.outputDir == "" {
		for _, r := range records {
			if err := writeLine(l.out, taggedRecord{Table: table, Record: r}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	path := filepath.Join(l.outputDir, table+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	for _, r := range records {
		if err := writeLine(f, r); err != nil {
			return nil, err
		}
	}
	l.logger.Info("rows written", loglib.Fields{"table": table, "rows": len(records), "path": path})
	return nil, nil
}

func (l *Loader) Close() error {
	return nil
}

func writeLine(w io.Writer, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling record: %w", err)
	}
	if _, err := w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}
