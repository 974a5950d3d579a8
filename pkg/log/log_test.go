// SPDX-License-Identifier: Apache-2.0

package log

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", MaskID(""))

	masked := MaskID("0012345678")
	require.NotEqual(t, "0012345678", masked)
	require.Contains(t, masked, "*")
}

func TestMergeFields(t *testing.T) {
	t.Parallel()

	got := MergeFields(Fields{"a": 1, "b": 2}, Fields{"b": 3})
	require.Equal(t, Fields{"a": 1, "b": 3}, got)
}
