// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xataio/bai2load/pkg/mapping"
	"github.com/xataio/bai2load/pkg/storage/gcs"
	"github.com/xataio/bai2load/pkg/warehouse/jsonl"
)

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := testConfig()
		cfg.Warehouse.JSONL = &jsonl.Config{}
		return cfg
	}

	tests := []struct {
		name    string
		config  func() *Config
		wantErr error
	}{
		{
			name:   "ok",
			config: valid,
		},
		{
			name: "error - missing mapping path",
			config: func() *Config {
				cfg := valid()
				cfg.MappingConfigPath = ""
				return cfg
			},
			wantErr: errMissingMappingConfig,
		},
		{
			name: "error - two storage backends",
			config: func() *Config {
				cfg := valid()
				cfg.Storage.GCS = &gcs.Config{}
				return cfg
			},
			wantErr: errNoStorage,
		},
		{
			name: "error - no warehouse",
			config: func() *Config {
				cfg := valid()
				cfg.Warehouse.JSONL = nil
				return cfg
			},
			wantErr: errNoWarehouse,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.ErrorIs(t, tc.config().IsValid(), tc.wantErr)
		})
	}
}

func TestWarehouseConfig_tableNames(t *testing.T) {
	t.Parallel()

	cfg := WarehouseConfig{TransactionsTable: "tx"}
	require.Equal(t, map[string]string{
		mapping.BalanceTable:      "balance",
		mapping.TransactionsTable: "tx",
	}, cfg.tableNames())
}
