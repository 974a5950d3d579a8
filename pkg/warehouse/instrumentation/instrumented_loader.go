// SPDX-License-Identifier: Apache-2.0

package instrumentation

import (
	"context"
	"fmt"

	"github.com/xataio/bai2load/pkg/otel"
	"github.com/xataio/bai2load/pkg/warehouse"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type Loader struct {
	inner   warehouse.Loader
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *loaderMetrics
}

type loaderMetrics struct {
	insertedRows metric.Int64Counter
	rowErrors    metric.Int64Counter
}

func NewLoader(inner warehouse.Loader, instrumentation *otel.Instrumentation) (warehouse.Loader, error) {
	if !instrumentation.IsEnabled() {
		return inner, nil
	}

	l := &Loader{
		inner:   inner,
		tracer:  instrumentation.Tracer,
		meter:   instrumentation.Meter,
		metrics: &loaderMetrics{},
	}
	if err := l.initMetrics(); err != nil {
		return nil, fmt.Errorf("error initialising loader metrics: %w", err)
	}
	return l, nil
}

func (l *Loader) TableExists(ctx context.Context, table string) (exists bool, err error) {
	ctx, span := otel.StartSpan(ctx, l.tracer, "loader.TableExists", trace.WithAttributes(
		attribute.String("table", table),
	))
	defer func() { otel.CloseSpan(span, err) }()

	return l.inner.TableExists(ctx, table)
}

func (l *Loader) BulkInsert(ctx context.Context, table string, records []warehouse.Record) (rowErrs []warehouse.RowError, err error) {
	ctx, span := otel.StartSpan(ctx, l.tracer, "loader.BulkInsert", trace.WithAttributes(
		attribute.String("table", table),
		attribute.Int("rowCount", len(records)),
	))
	defer func() { otel.CloseSpan(span, err) }()

	rowErrs, err = l.inner.BulkInsert(ctx, table, records)
	if l.meter != nil {
		attrs := metric.WithAttributes(attribute.String("table", table))
		if err == nil && len(rowErrs) == 0 {
			l.metrics.insertedRows.Add(ctx, int64(len(records)), attrs)
		}
		if len(rowErrs) > 0 {
			l.metrics.rowErrors.Add(ctx, int64(len(rowErrs)), attrs)
		}
	}
	return rowErrs, err
}

func (l *Loader) Close() error {
	return l.inner.Close()
}

func (l *Loader) initMetrics() error {
	if l.meter == nil {
		return nil
	}

	var err error
	l.metrics.insertedRows, err = l.meter.Int64Counter("bai2load.loader.rows",
		metric.WithUnit("rows"),
		metric.WithDescription("Count of rows loaded per table"))
	if err != nil {
		return err
	}

	l.metrics.rowErrors, err = l.meter.Int64Counter("bai2load.loader.row.errors",
		metric.WithUnit("errors"),
		metric.WithDescription("Count of rows rejected by the warehouse per table"))
	if err != nil {
		return err
	}

	return nil
}
