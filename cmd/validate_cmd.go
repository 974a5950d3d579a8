// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xataio/bai2load/cmd/config"
	"github.com/xataio/bai2load/pkg/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validates the mapping document and the rule set of a bank without contacting any remote service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bankID, err := cmd.Flags().GetString("bank-id")
		if err != nil {
			return err
		}

		mappingPath := config.MappingConfigPath()
		summary, err := pipeline.CheckMapping(mappingPath, bankID)
		if err != nil {
			return fmt.Errorf("validating mapping %s: %w", mappingPath, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "mapping %s is valid\n", mappingPath)
		if summary.BankID != "" {
			fmt.Fprintf(out, "bank: %s (default rules: %t)\n", summary.BankID, summary.DefaultRuleSet)
		}
		fmt.Fprintf(out, "rules: %d\n", summary.Rules)
		fmt.Fprintf(out, "tables: %s\n", strings.Join(summary.Tables, ", "))
		fmt.Fprintf(out, "sensitive columns: %s\n", strings.Join(summary.SensitiveColumns, ", "))
		return nil
	},
	Example: `
	bai2load validate --bank-id CITI
	bai2load validate --config config.yaml`,
}
