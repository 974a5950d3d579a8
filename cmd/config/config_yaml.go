// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/xataio/bai2load/internal/backoff"
	"github.com/xataio/bai2load/pkg/encryption/kms"
	"github.com/xataio/bai2load/pkg/otel"
	"github.com/xataio/bai2load/pkg/pipeline"
	"github.com/xataio/bai2load/pkg/storage/gcs"
	"github.com/xataio/bai2load/pkg/warehouse/bigquery"
	"github.com/xataio/bai2load/pkg/warehouse/jsonl"
	"github.com/xataio/bai2load/pkg/warehouse/postgres"
)

type YAMLConfig struct {
	MappingConfigPath string                `mapstructure:"mapping_config_path" yaml:"mapping_config_path"`
	CheckIntegrity    *bool                 `mapstructure:"check_integrity" yaml:"check_integrity"`
	GCP               GCPConfig             `mapstructure:"gcp" yaml:"gcp"`
	Storage           StorageConfig         `mapstructure:"storage" yaml:"storage"`
	Warehouse         WarehouseConfig       `mapstructure:"warehouse" yaml:"warehouse"`
	Encryption        EncryptionConfig      `mapstructure:"encryption" yaml:"encryption"`
	Instrumentation   InstrumentationConfig `mapstructure:"instrumentation" yaml:"instrumentation"`
}

type GCPConfig struct {
	ProjectID string `mapstructure:"project_id" yaml:"project_id"`
	Location  string `mapstructure:"location" yaml:"location"`
}

type StorageConfig struct {
	Type  string         `mapstructure:"type" yaml:"type"`
	Root  string         `mapstructure:"root" yaml:"root"`
	Retry *BackoffConfig `mapstructure:"retry" yaml:"retry"`
}

type WarehouseConfig struct {
	Type              string          `mapstructure:"type" yaml:"type"`
	BalanceTable      string          `mapstructure:"balance_table" yaml:"balance_table"`
	TransactionsTable string          `mapstructure:"transactions_table" yaml:"transactions_table"`
	ConcurrentLoads   int64           `mapstructure:"concurrent_loads" yaml:"concurrent_loads"`
	BigQuery          *BigQueryConfig `mapstructure:"bigquery" yaml:"bigquery"`
	Postgres          *PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	JSONL             *JSONLConfig    `mapstructure:"jsonl" yaml:"jsonl"`
}

type BigQueryConfig struct {
	DatasetID string `mapstructure:"dataset_id" yaml:"dataset_id"`
}

type PostgresConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	Schema string `mapstructure:"schema" yaml:"schema"`
}

type JSONLConfig struct {
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

type EncryptionConfig struct {
	KeyRing string         `mapstructure:"key_ring" yaml:"key_ring"`
	Workers int            `mapstructure:"workers" yaml:"workers"`
	Retry   *BackoffConfig `mapstructure:"retry" yaml:"retry"`
}

type BackoffConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
	MaxRetries      uint          `mapstructure:"max_retries" yaml:"max_retries"`
}

type InstrumentationConfig struct {
	Metrics *MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Traces  *TracesConfig  `mapstructure:"traces" yaml:"traces"`
}

type MetricsConfig struct {
	Endpoint           string        `mapstructure:"endpoint" yaml:"endpoint"`
	CollectionInterval time.Duration `mapstructure:"collection_interval" yaml:"collection_interval"`
}

type TracesConfig struct {
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// decodeYAMLConfig decodes the settings read by viper. Durations are given as
// strings ("30s", "1m").
func decodeYAMLConfig() (*YAMLConfig, error) {
	cfg := &YAMLConfig{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, fmt.Errorf("decoding yaml config: %w", err)
	}
	return cfg, nil
}

func (c *YAMLConfig) toPipelineConfig() (*pipeline.Config, error) {
	storageCfg, err := c.Storage.toStorageConfig()
	if err != nil {
		return nil, err
	}
	warehouseCfg, err := c.Warehouse.toWarehouseConfig(c.projectID())
	if err != nil {
		return nil, err
	}

	checkIntegrity := true
	if c.CheckIntegrity != nil {
		checkIntegrity = *c.CheckIntegrity
	}

	return &pipeline.Config{
		MappingConfigPath: valueOrDefault(c.MappingConfigPath, defaultMappingConfigPath),
		CheckIntegrity:    checkIntegrity,
		Storage:           storageCfg,
		Warehouse:         warehouseCfg,
		KMS: kms.Config{
			ProjectID: c.projectID(),
			Location:  valueOrDefault(c.GCP.Location, defaultLocation),
			KeyRing:   valueOrDefault(c.Encryption.KeyRing, defaultKeyRing),
			Backoff:   c.Encryption.Retry.toBackoffConfig(),
		},
		EncryptionWorkers: c.Encryption.Workers,
		ConcurrentLoads:   c.Warehouse.ConcurrentLoads,
	}, nil
}

func (c *YAMLConfig) projectID() string {
	return valueOrDefault(c.GCP.ProjectID, defaultProjectID)
}

func (c *StorageConfig) toStorageConfig() (pipeline.StorageConfig, error) {
	switch c.Type {
	case "", storageGCS:
		return pipeline.StorageConfig{GCS: &gcs.Config{Backoff: c.Retry.toBackoffConfig()}}, nil
	case storageLocal:
		return pipeline.StorageConfig{Local: &pipeline.LocalStorageConfig{Root: c.Root}}, nil
	default:
		return pipeline.StorageConfig{}, fmt.Errorf("%w: %q", errUnsupportedStorage, c.Type)
	}
}

func (c *WarehouseConfig) toWarehouseConfig(projectID string) (pipeline.WarehouseConfig, error) {
	cfg := pipeline.WarehouseConfig{
		BalanceTable:      valueOrDefault(c.BalanceTable, defaultBalanceTable),
		TransactionsTable: valueOrDefault(c.TransactionsTable, defaultTransactionsTable),
	}

	switch c.Type {
	case "", warehouseBigQuery:
		datasetID := defaultDatasetID
		if c.BigQuery != nil && c.BigQuery.DatasetID != "" {
			datasetID = c.BigQuery.DatasetID
		}
		cfg.BigQuery = &bigquery.Config{ProjectID: projectID, DatasetID: datasetID}
	case warehousePostgres:
		if c.Postgres == nil || c.Postgres.URL == "" {
			return pipeline.WarehouseConfig{}, errMissingPostgresURL
		}
		cfg.Postgres = &postgres.Config{URL: c.Postgres.URL, Schema: c.Postgres.Schema}
	case warehouseJSONL:
		cfg.JSONL = &jsonl.Config{}
		if c.JSONL != nil {
			cfg.JSONL.OutputDir = c.JSONL.OutputDir
		}
	default:
		return pipeline.WarehouseConfig{}, fmt.Errorf("%w: %q", errUnsupportedWarehouse, c.Type)
	}
	return cfg, nil
}

func (bo *BackoffConfig) toBackoffConfig() backoff.Config {
	if bo == nil {
		return defaultRetryConfig()
	}
	return backoff.Config{
		Exponential: &backoff.ExponentialConfig{
			InitialInterval: bo.InitialInterval,
			MaxInterval:     bo.MaxInterval,
			MaxRetries:      bo.MaxRetries,
		},
	}
}

func (c *InstrumentationConfig) toOtelConfig() (*otel.Config, error) {
	cfg := &otel.Config{}
	if c.Metrics != nil {
		cfg.Metrics = &otel.MetricsConfig{
			Endpoint:           c.Metrics.Endpoint,
			CollectionInterval: c.Metrics.CollectionInterval,
		}
	}
	if c.Traces != nil {
		if err := validateSampleRatio(c.Traces.SampleRatio); err != nil {
			return nil, err
		}
		cfg.Traces = &otel.TracesConfig{
			Endpoint:    c.Traces.Endpoint,
			SampleRatio: c.Traces.SampleRatio,
		}
	}
	return cfg, nil
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
