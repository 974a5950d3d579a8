// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"errors"

	"github.com/xataio/bai2load/pkg/encryption/kms"
	"github.com/xataio/bai2load/pkg/mapping"
	"github.com/xataio/bai2load/pkg/storage/gcs"
	"github.com/xataio/bai2load/pkg/warehouse/bigquery"
	"github.com/xataio/bai2load/pkg/warehouse/jsonl"
	"github.com/xataio/bai2load/pkg/warehouse/postgres"
)

type Config struct {
	MappingConfigPath string
	// CheckIntegrity enables the control total and record count checks of
	// the statement trailers.
	CheckIntegrity bool
	Storage        StorageConfig
	Warehouse      WarehouseConfig
	KMS            kms.Config
	// EncryptionWorkers bounds the number of rows encrypted concurrently. 0
	// or 1 encrypts sequentially.
	EncryptionWorkers int
	// ConcurrentLoads bounds the number of tables loaded concurrently. 0 or
	// 1 loads tables sequentially.
	ConcurrentLoads int64
}

type StorageConfig struct {
	GCS   *gcs.Config
	Local *LocalStorageConfig
}

type LocalStorageConfig struct {
	Root string
}

type WarehouseConfig struct {
	BalanceTable      string
	TransactionsTable string

	BigQuery *bigquery.Config
	Postgres *postgres.Config
	JSONL    *jsonl.Config
}

const (
	defaultBalanceTable      = "balance"
	defaultTransactionsTable = "transactions"
)

var (
	errMissingMappingConfig = errors.New("mapping config path is required")
	errNoStorage            = errors.New("one storage backend must be configured")
	errNoWarehouse          = errors.New("one warehouse loader must be configured")
)

// IsValid checks that exactly one storage backend and one warehouse loader
// are configured.
func (c *Config) IsValid() error {
	if c.MappingConfigPath == "" {
		return errMissingMappingConfig
	}
	if (c.Storage.GCS == nil) == (c.Storage.Local == nil) {
		return errNoStorage
	}
	configured := 0
	for _, enabled := range []bool{c.Warehouse.BigQuery != nil, c.Warehouse.Postgres != nil, c.Warehouse.JSONL != nil} {
		if enabled {
			configured++
		}
	}
	if configured != 1 {
		return errNoWarehouse
	}
	return nil
}

// tableNames maps the logical destination tables to the configured physical
// ones.
func (c *WarehouseConfig) tableNames() map[string]string {
	return map[string]string{
		mapping.BalanceTable:      valueOrDefault(c.BalanceTable, defaultBalanceTable),
		mapping.TransactionsTable: valueOrDefault(c.TransactionsTable, defaultTransactionsTable),
	}
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
