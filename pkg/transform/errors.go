// SPDX-License-Identifier: Apache-2.0

package transform

import "fmt"

// StructuralError reports a statement that cannot be turned into rows, such
// as a group without its statement date.
type StructuralError struct {
	GroupIndex int
	Reason     string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural error: group %d: %s", e.GroupIndex, e.Reason)
}
