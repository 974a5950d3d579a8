// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"errors"
	"fmt"
)

// ConfigError reports a missing or invalid mapping configuration: no rule set
// for a bank, an unknown table or an unrecognised source field.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	errMissingSourceCode        = errors.New("missing bai_code")
	errMissingDestinationColumn = errors.New("missing bq_column")
	errUnknownSourceField       = errors.New("unknown bai_field")
	errNonNumericAmount         = errors.New("amount column mapped from a non numeric bai_field")
	errUnknownTable             = errors.New("unknown table")
	errMissingColumnName        = errors.New("missing column name")
	errDuplicateColumn          = errors.New("duplicate column")
)
