// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Identifier is a schema qualified table name.
type Identifier struct {
	Schema string
	Name   string
}

var errUnexpectedQualifiedName = errors.New("unexpected qualified name format")

// NewIdentifier parses a table name, optionally qualified with its schema.
// Surrounding double quotes are removed, since the identifier is sanitised
// when used.
func NewIdentifier(s string) (Identifier, error) {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = strings.Trim(p, `"`)
		if parts[i] == "" {
			return Identifier{}, errUnexpectedQualifiedName
		}
	}

	switch len(parts) {
	case 1:
		return Identifier{Name: parts[0]}, nil
	case 2:
		return Identifier{Schema: parts[0], Name: parts[1]}, nil
	default:
		return Identifier{}, errUnexpectedQualifiedName
	}
}

func (i Identifier) pgx() pgx.Identifier {
	if i.Schema == "" {
		return pgx.Identifier{i.Name}
	}
	return pgx.Identifier{i.Schema, i.Name}
}

// String returns the quoted identifier, safe to be used in a query.
func (i Identifier) String() string {
	return i.pgx().Sanitize()
}

// SchemaOrDefault returns the schema, or public when unqualified.
func (i Identifier) SchemaOrDefault() string {
	if i.Schema == "" {
		return "public"
	}
	return i.Schema
}
