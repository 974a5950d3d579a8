// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xataio/bai2load/cmd/config"
	"github.com/xataio/bai2load/pkg/log/zerolog"
	"github.com/xataio/bai2load/pkg/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <path>",
	Short: "Run loads a single BAI2 statement into the configured warehouse",
	Args:  cobra.ExactArgs(1),
	RunE:  withSignalWatcher(run),
	Example: `
	bai2load run statements/CITI_ACME_20240101.bai
	bai2load run statements/CITI_ACME_20240101.bai --config config.yaml --log-level debug
	bai2load run statements/CITI_ACME_20240101.bai --config config.env`,
}

func run(ctx context.Context, args []string) error {
	logger := zerolog.NewLogger(&zerolog.Config{
		LogLevel: viper.GetString("BAI2LOAD_LOG_LEVEL"),
		JSON:     viper.GetBool("BAI2LOAD_LOG_JSON"),
	})
	zerolog.SetGlobalLogger(logger)

	pipelineConfig, err := config.ParsePipelineConfig()
	if err != nil {
		return fmt.Errorf("parsing pipeline config: %w", err)
	}
	if err := pipelineConfig.IsValid(); err != nil {
		return fmt.Errorf("invalid pipeline config: %w", err)
	}

	provider, err := newInstrumentationProvider()
	if err != nil {
		return err
	}
	defer provider.Close()

	p := pipeline.New(pipelineConfig,
		pipeline.WithLogger(zerolog.NewStdLogger(logger)),
		pipeline.WithInstrumentation(provider.NewInstrumentation("run")))

	report, err := p.Run(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("statement %s loaded (run %s)\n", args[0], report.RunID)
	for table, count := range report.Rows {
		fmt.Printf("  %s: %d rows\n", table, count)
	}
	return nil
}
