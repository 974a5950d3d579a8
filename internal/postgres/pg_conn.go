// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of a postgres connection used by the loaders.
type Querier interface {
	QueryRow(ctx context.Context, dest []any, query string, args ...any) error
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	CopyFrom(ctx context.Context, table Identifier, columnNames []string, srcRows [][]any) (int64, error)
	Close(ctx context.Context) error
}

type Conn struct {
	conn *pgx.Conn
}

const connectTimeout = 90 * time.Second

func NewConn(ctx context.Context, url string) (*Conn, error) {
	pgCfg, err := pgx.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed parsing postgres connection string: %w", mapError(err))
	}

	configureTCPKeepalive(pgCfg)

	conn, err := pgx.ConnectConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", mapError(err))
	}

	return &Conn{conn: conn}, nil
}

func (c *Conn) QueryRow(ctx context.Context, dest []any, query string, args ...any) error {
	row := c.conn.QueryRow(ctx, query, args...)
	return mapError(row.Scan(dest...))
}

func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

// CopyFrom bulk loads the rows into the table with the COPY protocol. All
// rows are loaded or none.
func (c *Conn) CopyFrom(ctx context.Context, table Identifier, columnNames []string, srcRows [][]any) (int64, error) {
	n, err := c.conn.CopyFrom(ctx, table.pgx(), columnNames, pgx.CopyFromRows(srcRows))
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (c *Conn) Close(ctx context.Context) error {
	return mapError(c.conn.Close(ctx))
}

// configureTCPKeepalive makes hung connections fail within a few minutes
// instead of blocking the load.
func configureTCPKeepalive(cfg *pgx.ConnConfig) {
	cfg.ConnectTimeout = connectTimeout
	cfg.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		d := &net.Dialer{
			Timeout: connectTimeout,
			KeepAliveConfig: net.KeepAliveConfig{
				Enable:   true,
				Idle:     15 * time.Second,
				Interval: 15 * time.Second,
				Count:    9,
			},
		}
		return d.DialContext(ctx, network, addr)
	}
}
