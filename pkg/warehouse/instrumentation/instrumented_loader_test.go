// SPDX-License-Identifier: Apache-2.0

package instrumentation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xataio/bai2load/pkg/otel"
	"github.com/xataio/bai2load/pkg/warehouse"
	"github.com/xataio/bai2load/pkg/warehouse/mocks"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNewLoader(t *testing.T) {
	t.Parallel()

	rowErrs := []warehouse.RowError{{Index: 0, Reason: "invalid"}}
	inner := &mocks.Loader{
		TableExistsFn: func(context.Context, string) (bool, error) {
			return true, nil
		},
		BulkInsertFn: func(context.Context, string, []warehouse.Record) ([]warehouse.RowError, error) {
			return rowErrs, nil
		},
	}

	l, err := NewLoader(inner, &otel.Instrumentation{})
	require.NoError(t, err)
	require.Equal(t, inner, l)

	l, err = NewLoader(inner, &otel.Instrumentation{
		Meter:  metricnoop.NewMeterProvider().Meter("test"),
		Tracer: tracenoop.NewTracerProvider().Tracer("test"),
	})
	require.NoError(t, err)
	require.IsType(t, &Loader{}, l)

	exists, err := l.TableExists(context.Background(), "balance")
	require.NoError(t, err)
	require.True(t, exists)

	got, err := l.BulkInsert(context.Background(), "balance", []warehouse.Record{{"a": 1}})
	require.NoError(t, err)
	require.Equal(t, rowErrs, got)
	require.Equal(t, uint64(1), inner.GetBulkInsertCalls())
}
