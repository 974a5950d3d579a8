// SPDX-License-Identifier: Apache-2.0

// Package postgres loads records into postgres tables with the COPY protocol.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	pglib "github.com/xataio/bai2load/internal/postgres"
	loglib "github.com/xataio/bai2load/pkg/log"
	"github.com/xataio/bai2load/pkg/warehouse"
)

type Config struct {
	URL    string
	Schema string
}

type Loader struct {
	logger  loglib.Logger
	querier pglib.Querier
	schema  string
}

type Option func(l *Loader)

const tableExistsQuery = `SELECT EXISTS (
	SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2
)`

var _ warehouse.Loader = (*Loader)(nil)

func NewLoader(ctx context.Context, cfg *Config, opts ...Option) (*Loader, error) {
	conn, err := pglib.NewConn(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	return newLoader(conn, cfg.Schema, opts...), nil
}

func newLoader(querier pglib.Querier, schema string, opts ...Option) *Loader {
	l := &Loader{
		logger:  loglib.NewNoopLogger(),
		querier: querier,
		schema:  schema,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func WithLogger(l loglib.Logger) Option {
	return func(loader *Loader) {
		loader.logger = loglib.NewLogger(l).WithFields(loglib.Fields{
			loglib.ModuleField: "postgres_loader",
		})
	}
}

func (l *Loader) TableExists(ctx context.Context, table string) (bool, error) {
	id, err := l.identifier(table)
	if err != nil {
		return false, err
	}

	exists := false
	if err := l.querier.QueryRow(ctx, []any{&exists}, tableExistsQuery, id.SchemaOrDefault(), id.Name); err != nil {
		return false, fmt.Errorf("checking table %s exists: %w", id, err)
	}
	return exists, nil
}

// BulkInsert copies the records into the table in a single COPY statement.
// Columns are the union of the record columns; records missing a column load
// it as NULL. A rejected value aborts the whole batch and is reported as a
// row error without a row index.
func (l *Loader) BulkInsert(ctx context.Context, table string, records []warehouse.Record) ([]warehouse.RowError, error) {
	if len(records) == 0 {
		return nil, nil
	}

	id, err := l.identifier(table)
	if err != nil {
		return nil, err
	}

	columns := columnNames(records)
	srcRows := make([][]any, 0, len(records))
	for _, r := range records {
		values := make([]any, 0, len(columns))
		for _, col := range columns {
			values = append(values, copyValue(r[col]))
		}
		srcRows = append(srcRows, values)
	}

	n, err := l.querier.CopyFrom(ctx, id, columns, srcRows)
	if err != nil {
		var violationErr *pglib.ErrDataViolation
		if errors.As(err, &violationErr) {
			return []warehouse.RowError{{Index: -1, Column: violationErr.Column, Reason: violationErr.Details}}, nil
		}
		return nil, fmt.Errorf("copying rows into %s: %w", id, err)
	}

	l.logger.Debug("rows copied", loglib.Fields{"table": id.String(), "rows": n})
	return nil, nil
}

func (l *Loader) Close() error {
	return l.querier.Close(context.Background())
}

func (l *Loader) identifier(table string) (pglib.Identifier, error) {
	id, err := pglib.NewIdentifier(table)
	if err != nil {
		return pglib.Identifier{}, fmt.Errorf("invalid table name %q: %w", table, err)
	}
	if id.Schema == "" {
		id.Schema = l.schema
	}
	return id, nil
}

func columnNames(records []warehouse.Record) []string {
	set := map[string]struct{}{}
	for _, r := range records {
		for col := range r {
			set[col] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// copyValue adapts a record value to the binary COPY encoding. Dates are
// carried as ISO strings, which pgx can't encode into date columns.
func copyValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	date, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return v
	}
	return dateValue{date: date, text: s}
}

// dateValue encodes into date, timestamp and text columns alike, so a text
// column holding a date-like value keeps its original string.
type dateValue struct {
	date time.Time
	text string
}

func (d dateValue) DateValue() (pgtype.Date, error) {
	return pgtype.Date{Time: d.date, Valid: true}, nil
}

func (d dateValue) TimestampValue() (pgtype.Timestamp, error) {
	return pgtype.Timestamp{Time: d.date, Valid: true}, nil
}

func (d dateValue) TimestamptzValue() (pgtype.Timestamptz, error) {
	return pgtype.Timestamptz{Time: d.date, Valid: true}, nil
}

func (d dateValue) TextValue() (pgtype.Text, error) {
	return pgtype.Text{String: d.text, Valid: true}, nil
}
