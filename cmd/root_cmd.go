// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/xataio/bai2load/cmd/config"
	"github.com/xataio/bai2load/pkg/otel"
)

// Version is the bai2load version
var (
	Version = "development"
	Env     string
)

func Prepare() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "bai2load [path]",
		Short:        "bai2load loads BAI2 bank statements into the warehouse",
		SilenceUsage: true,
		Version:      version(),
		Args:         cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(); err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			return nil
		},
		// a statement path given without subcommand behaves like run
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return withSignalWatcher(run)(cmd, args)
		},
		Example: `
	bai2load statements/CITI_ACME_20240101.bai
	bai2load run gs://statements/CITI_ACME_20240101.bai --config config.yaml
	bai2load validate --bank-id CITI`,
	}

	// env names are shared with other tooling (GCP_*, BQ_*), so no prefix
	viper.AutomaticEnv()

	// Flag definition

	// root cmd
	rootCmd.PersistentFlags().StringP("config", "c", "", ".env or .yaml config file to use with bai2load if any")
	rootCmd.PersistentFlags().String("log-level", "info", "log level for the application. One of trace, debug, info, warn, error, fatal, panic")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Whether to emit logs as JSON instead of the console format")

	// validate cmd
	validateCmd.Flags().String("bank-id", "", "Bank identifier whose rule set should be checked. If empty, only the default rules are checked")

	// Flag binding for root cmd
	rootFlagBinding(rootCmd)

	// register subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	return rootCmd
}

// Execute executes the root command.
func Execute() error {
	cmd := Prepare()
	return cmd.Execute()
}

func withSignalWatcher(fn func(ctx context.Context, args []string) error) func(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		<-sigc
		cancel()
	}()

	return func(cmd *cobra.Command, args []string) error {
		defer cancel()
		return fn(ctx, args)
	}
}

func rootFlagBinding(cmd *cobra.Command) {
	bindFlags(cmd.PersistentFlags(), map[string]string{
		"config":             "config",
		"BAI2LOAD_LOG_LEVEL": "log-level",
		"BAI2LOAD_LOG_JSON":  "json-logs",
	})
}

// bindFlags binds the viper keys to the flags of the set, keyed by flag name.
func bindFlags(flags *pflag.FlagSet, bindings map[string]string) {
	for key, flagName := range bindings {
		viper.BindPFlag(key, flags.Lookup(flagName))
	}
}

func version() string {
	if Env != "" {
		return Env + " (" + Version + ")"
	}
	return Version
}

func newInstrumentationProvider() (otel.InstrumentationProvider, error) {
	cfg, err := config.ParseInstrumentationConfig()
	if err != nil {
		return nil, fmt.Errorf("parsing instrumentation config: %w", err)
	}

	p, err := otel.NewInstrumentationProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialisating instrumentation provider: %w", err)
	}
	return p, nil
}
