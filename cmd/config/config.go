// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"github.com/xataio/bai2load/pkg/otel"
	"github.com/xataio/bai2load/pkg/pipeline"
)

const (
	defaultProjectID         = "developmentenv-464809"
	defaultLocation          = "global"
	defaultDatasetID         = "Transactions"
	defaultBalanceTable      = "balance"
	defaultTransactionsTable = "transactions"
	defaultKeyRing           = "anz_encrypt"
	defaultMappingConfigPath = "config/bq_mappings.json"

	defaultRetryInitialInterval = 500 * time.Millisecond
	defaultRetryMaxInterval     = 10 * time.Second
	defaultRetryMaxRetries      = 5

	storageGCS   = "gcs"
	storageLocal = "local"

	warehouseBigQuery = "bigquery"
	warehousePostgres = "postgres"
	warehouseJSONL    = "jsonl"
)

var (
	errUnsupportedStorage   = errors.New("unsupported storage, must be one of gcs, local")
	errUnsupportedWarehouse = errors.New("unsupported warehouse, must be one of bigquery, postgres, jsonl")
	errMissingPostgresURL   = errors.New("postgres warehouse requires a postgres url")
	errInvalidSampleRatio   = errors.New("trace sample ratio must be between 0 and 1")
)

func Load() error {
	return LoadFile(viper.GetString("config"))
}

// LoadFile reads the given .env or .yaml file into viper. Environment
// variables take precedence over values in a .env file.
func LoadFile(file string) error {
	setDefaults()
	if file == "" {
		return nil
	}
	viper.SetConfigFile(file)
	viper.SetConfigType(filepath.Ext(file)[1:])
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("GCP_PROJECT_ID", defaultProjectID)
	viper.SetDefault("GCP_LOCATION", defaultLocation)
	viper.SetDefault("BQ_DATASET_ID", defaultDatasetID)
	viper.SetDefault("BQ_BALANCE_TABLE_ID", defaultBalanceTable)
	viper.SetDefault("BQ_TRANSACTIONS_TABLE_ID", defaultTransactionsTable)
	viper.SetDefault("KMS_KEY_RING", defaultKeyRing)
	viper.SetDefault("MAPPING_CONFIG_PATH", defaultMappingConfigPath)
	viper.SetDefault("BAI2LOAD_STORAGE", storageGCS)
	viper.SetDefault("BAI2LOAD_WAREHOUSE", warehouseBigQuery)
	viper.SetDefault("BAI2LOAD_CHECK_INTEGRITY", true)
	viper.SetDefault("BAI2LOAD_ENCRYPTION_WORKERS", 1)
	viper.SetDefault("BAI2LOAD_CONCURRENT_LOADS", 1)
}

// MappingConfigPath returns the mapping document location, honouring the
// yaml config when one is used.
func MappingConfigPath() string {
	if path := viper.GetString("mapping_config_path"); path != "" && isYAML() {
		return path
	}
	return viper.GetString("MAPPING_CONFIG_PATH")
}

func ParsePipelineConfig() (*pipeline.Config, error) {
	if isYAML() {
		yamlCfg, err := decodeYAMLConfig()
		if err != nil {
			return nil, err
		}
		return yamlCfg.toPipelineConfig()
	}
	return envConfigToPipelineConfig()
}

func ParseInstrumentationConfig() (*otel.Config, error) {
	if isYAML() {
		yamlCfg, err := decodeYAMLConfig()
		if err != nil {
			return nil, err
		}
		return yamlCfg.Instrumentation.toOtelConfig()
	}
	return envToOtelConfig()
}

func isYAML() bool {
	switch filepath.Ext(viper.GetViper().ConfigFileUsed()) {
	case ".yml", ".yaml":
		return true
	default:
		return false
	}
}

func validateSampleRatio(ratio float64) error {
	if ratio < 0 || ratio > 1 {
		return errInvalidSampleRatio
	}
	return nil
}
