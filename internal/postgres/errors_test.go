// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	errTest := errors.New("oh noes")

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name:    "nil error",
			err:     nil,
			wantErr: nil,
		},
		{
			name:    "generic error",
			err:     errTest,
			wantErr: errTest,
		},
		{
			name:    "no rows",
			err:     pgx.ErrNoRows,
			wantErr: ErrNoRows,
		},
		{
			name:    "context deadline",
			err:     context.DeadlineExceeded,
			wantErr: ErrConnTimeout,
		},
		{
			name:    "42P01 undefined_table",
			err:     &pgconn.PgError{Code: "42P01", Message: `relation "balance" does not exist`},
			wantErr: &ErrRelationDoesNotExist{Details: `relation "balance" does not exist`},
		},
		{
			name: "23502 not_null_violation",
			err: &pgconn.PgError{
				Code:       "23502",
				Message:    `null value in column "account_number" violates not-null constraint`,
				ColumnName: "account_number",
			},
			wantErr: &ErrDataViolation{
				Code:    "23502",
				Column:  "account_number",
				Details: `null value in column "account_number" violates not-null constraint`,
			},
		},
		{
			name:    "22P02 invalid_text_representation",
			err:     &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type numeric"},
			wantErr: &ErrDataViolation{Code: "22P02", Details: "invalid input syntax for type numeric"},
		},
		{
			name:    "42501 insufficient_privilege",
			err:     &pgconn.PgError{Code: "42501", Message: "permission denied"},
			wantErr: &pgconn.PgError{Code: "42501", Message: "permission denied"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.wantErr, mapError(tc.err))
		})
	}
}

func TestNewIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string

		want       Identifier
		wantString string
		wantErr    error
	}{
		{
			name:       "unqualified",
			input:      "balance",
			want:       Identifier{Name: "balance"},
			wantString: `"balance"`,
		},
		{
			name:       "qualified and quoted",
			input:      `"Transactions"."balance"`,
			want:       Identifier{Schema: "Transactions", Name: "balance"},
			wantString: `"Transactions"."balance"`,
		},
		{
			name:    "too many parts",
			input:   "a.b.c",
			wantErr: errUnexpectedQualifiedName,
		},
		{
			name:    "empty part",
			input:   "a.",
			wantErr: errUnexpectedQualifiedName,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := NewIdentifier(tc.input)
			require.ErrorIs(t, err, tc.wantErr)
			if tc.wantErr != nil {
				return
			}
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.wantString, got.String())
		})
	}
}
