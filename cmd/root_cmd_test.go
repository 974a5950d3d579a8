// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"github.com/xataio/bai2load/pkg/storage"
)

func TestCommandExamples_statementPaths(t *testing.T) {
	rootCmd := Prepare()

	paths := 0
	for _, cmd := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
		for _, line := range strings.Split(cmd.Example, "\n") {
			for _, field := range strings.Fields(line) {
				if !strings.HasSuffix(field, ".bai") {
					continue
				}
				paths++
				_, _, err := storage.SplitPath(field)
				require.NoError(t, err, "%s example: %s", cmd.Name(), line)
			}
		}
	}
	require.Positive(t, paths)
}
