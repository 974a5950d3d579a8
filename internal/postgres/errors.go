// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrConnTimeout = errors.New("connection timeout")
	ErrNoRows      = errors.New("no rows")
)

type ErrRelationDoesNotExist struct {
	Details string
}

func (e *ErrRelationDoesNotExist) Error() string {
	return fmt.Sprintf("relation does not exist: %s", e.Details)
}

// ErrDataViolation reports values rejected by the table: integrity
// constraints or data exceptions (invalid type, value too long, ...). Column
// is empty when the server doesn't report it.
type ErrDataViolation struct {
	Code    string
	Column  string
	Details string
}

func (e *ErrDataViolation) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("data violation on column %s: %s", e.Column, e.Details)
	}
	return fmt.Sprintf("data violation: %s", e.Details)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	if pgconn.Timeout(err) {
		return ErrConnTimeout
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UndefinedTable:
			return &ErrRelationDoesNotExist{Details: pgErr.Message}
		case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code),
			pgerrcode.IsDataException(pgErr.Code):
			return &ErrDataViolation{
				Code:    pgErr.Code,
				Column:  pgErr.ColumnName,
				Details: pgErr.Message,
			}
		}
	}

	return err
}
