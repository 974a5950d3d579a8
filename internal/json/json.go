// SPDX-License-Identifier: Apache-2.0

package json

import (
	"github.com/bytedance/sonic"
)

// std sorts map keys so that encoded rows are stable across runs.
var std = sonic.ConfigStd

func Unmarshal(b []byte, v any) error {
	return std.Unmarshal(b, v)
}

func Marshal(v any) ([]byte, error) {
	return std.Marshal(v)
}

func MarshalIndent(v any) ([]byte, error) {
	return std.MarshalIndent(v, "", "  ")
}
