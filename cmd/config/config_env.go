// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

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

func envConfigToPipelineConfig() (*pipeline.Config, error) {
	retry := parseRetryConfig()

	storageCfg, err := parseStorageConfig(retry)
	if err != nil {
		return nil, err
	}
	warehouseCfg, err := parseWarehouseConfig()
	if err != nil {
		return nil, err
	}

	return &pipeline.Config{
		MappingConfigPath: viper.GetString("MAPPING_CONFIG_PATH"),
		CheckIntegrity:    viper.GetBool("BAI2LOAD_CHECK_INTEGRITY"),
		Storage:           storageCfg,
		Warehouse:         warehouseCfg,
		KMS: kms.Config{
			ProjectID: viper.GetString("GCP_PROJECT_ID"),
			Location:  viper.GetString("GCP_LOCATION"),
			KeyRing:   viper.GetString("KMS_KEY_RING"),
			Backoff:   retry,
		},
		EncryptionWorkers: viper.GetInt("BAI2LOAD_ENCRYPTION_WORKERS"),
		ConcurrentLoads:   viper.GetInt64("BAI2LOAD_CONCURRENT_LOADS"),
	}, nil
}

func parseStorageConfig(retry backoff.Config) (pipeline.StorageConfig, error) {
	switch storage := viper.GetString("BAI2LOAD_STORAGE"); storage {
	case storageGCS:
		return pipeline.StorageConfig{GCS: &gcs.Config{Backoff: retry}}, nil
	case storageLocal:
		return pipeline.StorageConfig{
			Local: &pipeline.LocalStorageConfig{Root: viper.GetString("BAI2LOAD_LOCAL_STORAGE_ROOT")},
		}, nil
	default:
		return pipeline.StorageConfig{}, fmt.Errorf("%w: %q", errUnsupportedStorage, storage)
	}
}

func parseWarehouseConfig() (pipeline.WarehouseConfig, error) {
	cfg := pipeline.WarehouseConfig{
		BalanceTable:      viper.GetString("BQ_BALANCE_TABLE_ID"),
		TransactionsTable: viper.GetString("BQ_TRANSACTIONS_TABLE_ID"),
	}

	switch warehouse := viper.GetString("BAI2LOAD_WAREHOUSE"); warehouse {
	case warehouseBigQuery:
		cfg.BigQuery = &bigquery.Config{
			ProjectID: viper.GetString("GCP_PROJECT_ID"),
			DatasetID: viper.GetString("BQ_DATASET_ID"),
		}
	case warehousePostgres:
		url := viper.GetString("BAI2LOAD_POSTGRES_URL")
		if url == "" {
			return pipeline.WarehouseConfig{}, errMissingPostgresURL
		}
		cfg.Postgres = &postgres.Config{
			URL:    url,
			Schema: viper.GetString("BAI2LOAD_POSTGRES_SCHEMA"),
		}
	case warehouseJSONL:
		cfg.JSONL = &jsonl.Config{OutputDir: viper.GetString("BAI2LOAD_JSONL_OUTPUT")}
	default:
		return pipeline.WarehouseConfig{}, fmt.Errorf("%w: %q", errUnsupportedWarehouse, warehouse)
	}
	return cfg, nil
}

func parseRetryConfig() backoff.Config {
	initialInterval := viper.GetDuration("BAI2LOAD_RETRY_INITIAL_INTERVAL")
	maxInterval := viper.GetDuration("BAI2LOAD_RETRY_MAX_INTERVAL")
	maxRetries := viper.GetUint("BAI2LOAD_RETRY_MAX_RETRIES")
	if initialInterval == 0 && maxInterval == 0 && maxRetries == 0 {
		return defaultRetryConfig()
	}
	return backoff.Config{
		Exponential: &backoff.ExponentialConfig{
			InitialInterval: initialInterval,
			MaxInterval:     maxInterval,
			MaxRetries:      maxRetries,
		},
	}
}

func defaultRetryConfig() backoff.Config {
	return backoff.Config{
		Exponential: &backoff.ExponentialConfig{
			InitialInterval: defaultRetryInitialInterval,
			MaxInterval:     defaultRetryMaxInterval,
			MaxRetries:      defaultRetryMaxRetries,
		},
	}
}

func envToOtelConfig() (*otel.Config, error) {
	cfg := &otel.Config{}
	if endpoint := viper.GetString("BAI2LOAD_METRICS_ENDPOINT"); endpoint != "" {
		cfg.Metrics = &otel.MetricsConfig{
			Endpoint:           endpoint,
			CollectionInterval: viper.GetDuration("BAI2LOAD_METRICS_COLLECTION_INTERVAL"),
		}
	}
	if endpoint := viper.GetString("BAI2LOAD_TRACES_ENDPOINT"); endpoint != "" {
		ratio := viper.GetFloat64("BAI2LOAD_TRACES_SAMPLE_RATIO")
		if err := validateSampleRatio(ratio); err != nil {
			return nil, err
		}
		cfg.Traces = &otel.TracesConfig{
			Endpoint:    endpoint,
			SampleRatio: ratio,
		}
	}
	return cfg, nil
}
