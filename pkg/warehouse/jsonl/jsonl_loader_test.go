// SPDX-License-Identifier: Apache-2.0

package jsonl

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xataio/bai2load/pkg/warehouse"
)

func TestLoader_BulkInsert_writer(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	l := NewLoader(&Config{}, WithWriter(buf))

	exists, err := l.TableExists(context.Background(), "balance")
	require.NoError(t, err)
	require.True(t, exists)

	rowErrs, err := l.BulkInsert(context.Background(), "transactions", []warehouse.Record{
		{"transaction_amount": decimal.NewFromInt(-500)},
		{"description": "CHECK PAID"},
	})
	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Equal(t,
		`{"table":"transactions","record":{"transaction_amount":"-500"}}`+"\n"+
			`{"table":"transactions","record":{"description":"CHECK PAID"}}`+"\n",
		buf.String())
}

func TestLoader_BulkInsert_outputDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := NewLoader(&Config{OutputDir: dir})

	for range 2 {
		_, err := l.BulkInsert(context.Background(), "balance", []warehouse.Record{{"account_number": "001234"}})
		require.NoError(t, err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "balance.jsonl"))
	require.NoError(t, err)
	require.Equal(t, "{\"account_number\":\"001234\"}\n{\"account_number\":\"001234\"}\n", string(content))
}

func TestLoader_BulkInsert_canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLoader(&Config{}, WithWriter(&bytes.Buffer{}))
	_, err := l.BulkInsert(ctx, "balance", nil)
	require.ErrorIs(t, err, context.Canceled)
}
