// SPDX-License-Identifier: Apache-2.0

// Package bigquery loads records into BigQuery tables with the streaming
// insert API.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	loglib "github.com/xataio/bai2load/pkg/log"
	"github.com/xataio/bai2load/pkg/warehouse"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type Config struct {
	ProjectID string
	DatasetID string
}

type Loader struct {
	logger loglib.Logger
	tables tableClient
}

// tableClient is the subset of the BigQuery API used by the loader.
type tableClient interface {
	metadata(ctx context.Context, table string) error
	put(ctx context.Context, table string, savers []bigquery.ValueSaver) error
	Close() error
}

type Option func(l *Loader)

var _ warehouse.Loader = (*Loader)(nil)

func NewLoader(ctx context.Context, cfg *Config, opts ...Option) (*Loader, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, option.WithUserAgent("bai2load"))
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	return newLoader(&datasetClient{client: client, dataset: client.Dataset(cfg.DatasetID)}, opts...), nil
}

func newLoader(tables tableClient, opts ...Option) *Loader {
	l := &Loader{
		logger: loglib.NewNoopLogger(),
		tables: tables,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func WithLogger(l loglib.Logger) Option {
	return func(loader *Loader) {
		loader.logger = loglib.NewLogger(l).WithFields(loglib.Fields{
			loglib.ModuleField: "bigquery_loader",
		})
	}
}

func (l *Loader) TableExists(ctx context.Context, table string) (bool, error) {
	err := l.tables.metadata(ctx, table)
	if err == nil {
		return true, nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("reading metadata of table %s: %w", table, err)
}

func (l *Loader) BulkInsert(ctx context.Context, table string, records []warehouse.Record) ([]warehouse.RowError, error) {
	savers := make([]bigquery.ValueSaver, 0, len(records))
	for _, r := range records {
		savers = append(savers, record(r))
	}

	err := l.tables.put(ctx, table, savers)
	if err == nil {
		l.logger.Debug("rows inserted", loglib.Fields{"table": table, "rows": len(records)})
		return nil, nil
	}

	var putErr bigquery.PutMultiError
	if errors.As(err, &putErr) {
		return rowErrors(putErr), nil
	}
	return nil, fmt.Errorf("inserting rows into table %s: %w", table, err)
}

func (l *Loader) Close() error {
	return l.tables.Close()
}

func rowErrors(putErr bigquery.PutMultiError) []warehouse.RowError {
	rowErrs := make([]warehouse.RowError, 0, len(putErr))
	for _, insertErr := range putErr {
		rowErr := warehouse.RowError{Index: insertErr.RowIndex, Reason: insertErr.Errors.Error()}
		var apiErr *bigquery.Error
		if len(insertErr.Errors) > 0 && errors.As(insertErr.Errors[0], &apiErr) {
			rowErr.Column = apiErr.Location
			rowErr.Reason = apiErr.Message
		}
		rowErrs = append(rowErrs, rowErr)
	}
	return rowErrs
}

// record saves a destination row. Decimal amounts are sent as strings so
// that NUMERIC columns keep their exact value.
type record warehouse.Record

func (r record) Save() (map[string]bigquery.Value, string, error) {
	row := make(map[string]bigquery.Value, len(r))
	for column, value := range r {
		row[column] = toValue(value)
	}
	return row, bigquery.NoDedupeID, nil
}

func toValue(v any) bigquery.Value {
	switch value := v.(type) {
	case decimal.Decimal:
		return value.String()
	case *decimal.Decimal:
		if value == nil {
			return nil
		}
		return value.String()
	default:
		return value
	}
}

type datasetClient struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
}

func (d *datasetClient) metadata(ctx context.Context, table string) error {
	_, err := d.dataset.Table(table).Metadata(ctx)
	return err
}

func (d *datasetClient) put(ctx context.Context, table string, savers []bigquery.ValueSaver) error {
	return d.dataset.Table(table).Inserter().Put(ctx, savers)
}

func (d *datasetClient) Close() error {
	return d.client.Close()
}
