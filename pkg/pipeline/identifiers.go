// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"path"
	"strings"

	"github.com/xataio/bai2load/pkg/mapping"
	"github.com/xataio/bai2load/pkg/transform"
)

// IdentifiersFromPath extracts the bank and customer ids from a statement
// path named <BANK>_<CUSTOMER>[_...].<ext>. Anything after the first dot of
// the base name is ignored.
func IdentifiersFromPath(p string) (transform.Identifiers, error) {
	base, _, _ := strings.Cut(path.Base(p), ".")
	parts := strings.Split(base, "_")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return transform.Identifiers{}, &mapping.ConfigError{
			Reason: fmt.Sprintf("file name %q does not match BANKID_CUSTOMERID format", p),
		}
	}
	return transform.Identifiers{BankID: parts[0], CustomerID: parts[1]}, nil
}
