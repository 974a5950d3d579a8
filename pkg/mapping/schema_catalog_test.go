// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalog_Schema(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		CommonSchema: []ColumnSpec{
			{Name: "organisation_biz_id", Required: true},
			{Name: "currency", DefaultValue: "AUD"},
		},
		BalanceSchema: []ColumnSpec{
			{Name: "balance_date", Required: true},
			{Name: "currency", DefaultValue: " ", Sensitive: true},
		},
		TransactionsSchema: []ColumnSpec{
			{Name: "transaction_amount", Required: true, Sensitive: true},
		},
	}

	catalog, err := NewCatalog(cfg)
	require.NoError(t, err)

	tests := []struct {
		name  string
		table string

		wantSchema TableSchema
		wantErr    bool
	}{
		{
			name:  "ok - table column shadows common column",
			table: BalanceTable,
			wantSchema: TableSchema{
				{Name: "organisation_biz_id", Required: true},
				{Name: "balance_date", Required: true},
				{Name: "currency", DefaultValue: " ", Sensitive: true},
			},
		},
		{
			name:  "ok - common columns first",
			table: TransactionsTable,
			wantSchema: TableSchema{
				{Name: "organisation_biz_id", Required: true},
				{Name: "currency", DefaultValue: "AUD"},
				{Name: "transaction_amount", Required: true, Sensitive: true},
			},
		},
		{
			name:    "error - unknown table",
			table:   "org",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			schema, err := catalog.Schema(tc.table)
			if tc.wantErr {
				var configErr *ConfigError
				require.True(t, errors.As(err, &configErr))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantSchema, schema)
		})
	}

	require.Equal(t, []string{BalanceTable, TransactionsTable}, catalog.Tables())
	require.Equal(t, []string{"currency", "transaction_amount"}, catalog.SensitiveColumns())
}

func TestCatalog_RequiredColumns(t *testing.T) {
	t.Parallel()

	schema := TableSchema{
		{Name: "a", Required: true},
		{Name: "b"},
		{Name: "c", Required: true},
	}
	require.Equal(t, []string{"a", "c"}, schema.RequiredColumns())
	require.Empty(t, TableSchema{{Name: "b"}}.RequiredColumns())
}

func TestNewCatalog_errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{
			name: "error - duplicate column",
			cfg: &Config{
				BalanceSchema: []ColumnSpec{{Name: "a"}, {Name: "a"}},
			},
			wantErr: errDuplicateColumn,
		},
		{
			name: "error - missing column name",
			cfg: &Config{
				CommonSchema: []ColumnSpec{{Required: true}},
			},
			wantErr: errMissingColumnName,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewCatalog(tc.cfg)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}
