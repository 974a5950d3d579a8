// SPDX-License-Identifier: Apache-2.0

// Package router partitions the final rows per destination table and hands
// each partition to the warehouse loader.
package router

import (
	"context"
	"fmt"
	"strings"

	synclib "github.com/xataio/bai2load/internal/sync"
	loglib "github.com/xataio/bai2load/pkg/log"
	"github.com/xataio/bai2load/pkg/rows"
	"github.com/xataio/bai2load/pkg/warehouse"
	"golang.org/x/sync/errgroup"
)

// Router loads rows into the warehouse, one bulk insert per destination
// table. There is no cross table transaction: a failure loading a table
// doesn't undo the tables already loaded.
type Router struct {
	logger     loglib.Logger
	loader     warehouse.Loader
	tableNames map[string]string
	// nil when tables are loaded sequentially
	semaphore synclib.WeightedSemaphore
}

// Partition holds the records of a single destination table.
type Partition struct {
	// LogicalTable is the table the rows were produced for, Table its
	// physical name in the warehouse.
	LogicalTable string
	Table        string
	Records      []warehouse.Record
}

type LoadError struct {
	Table     string
	Reason    string
	RowErrors []warehouse.RowError
	Err       error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load error: table %s: %s", e.Table, e.Reason)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.RowErrors) > 0 {
		errs := make([]string, 0, len(e.RowErrors))
		for _, rowErr := range e.RowErrors {
			errs = append(errs, rowErr.Error())
		}
		msg = fmt.Sprintf("%s: [%s]", msg, strings.Join(errs, "; "))
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

type Option func(r *Router)

// New returns a router over the loader. tableNames maps the logical table
// names to their physical warehouse names; unmapped tables keep their name.
func New(loader warehouse.Loader, tableNames map[string]string, opts ...Option) *Router {
	r := &Router{
		logger:     loglib.NewNoopLogger(),
		loader:     loader,
		tableNames: tableNames,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func WithLogger(l loglib.Logger) Option {
	return func(r *Router) {
		r.logger = loglib.NewLogger(l).WithFields(loglib.Fields{
			loglib.ModuleField: "table_router",
		})
	}
}

// WithConcurrentLoads loads up to limit tables concurrently. A limit lower
// than two keeps the loads sequential.
func WithConcurrentLoads(limit int64) Option {
	return func(r *Router) {
		if limit > 1 {
			r.semaphore = synclib.NewWeightedSemaphore(limit)
		}
	}
}

// Route partitions the rows by destination table, in the order the tables
// are first seen. The table metadata is not part of the records.
func (r *Router) Route(rs []*rows.Row) []Partition {
	partitions := []Partition{}
	index := map[string]int{}
	for _, row := range rs {
		i, found := index[row.Table]
		if !found {
			i = len(partitions)
			index[row.Table] = i
			partitions = append(partitions, Partition{
				LogicalTable: row.Table,
				Table:        r.physicalName(row.Table),
			})
		}
		partitions[i].Records = append(partitions[i].Records, row.Record())
	}
	return partitions
}

// Load routes the rows and loads every partition. It returns a *LoadError
// when a table doesn't exist or the warehouse rejects rows.
func (r *Router) Load(ctx context.Context, rs []*rows.Row) error {
	partitions := r.Route(rs)

	if r.semaphore == nil {
		for _, p := range partitions {
			if err := r.loadPartition(ctx, p); err != nil {
				return err
			}
		}
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	var acquireErr error
	for _, p := range partitions {
		if acquireErr = r.semaphore.Acquire(egCtx, 1); acquireErr != nil {
			break
		}
		eg.Go(func() error {
			defer r.semaphore.Release(1)
			return r.loadPartition(egCtx, p)
		})
	}
	// a failed load cancels the group context, so its error takes
	// precedence over the acquire failure it caused
	if err := eg.Wait(); err != nil {
		return err
	}
	return acquireErr
}

func (r *Router) loadPartition(ctx context.Context, p Partition) error {
	exists, err := r.loader.TableExists(ctx, p.Table)
	if err != nil {
		return &LoadError{Table: p.Table, Reason: "checking table exists", Err: err}
	}
	if !exists {
		return &LoadError{Table: p.Table, Reason: "table does not exist"}
	}

	rowErrs, err := r.loader.BulkInsert(ctx, p.Table, p.Records)
	if err != nil {
		return &LoadError{Table: p.Table, Reason: "inserting rows", Err: err}
	}
	if len(rowErrs) > 0 {
		for _, rowErr := range rowErrs {
			r.logger.Error(rowErr, "row insert failed", loglib.Fields{"table": p.Table})
		}
		return &LoadError{Table: p.Table, Reason: fmt.Sprintf("%d rows rejected", len(rowErrs)), RowErrors: rowErrs}
	}

	r.logger.Info("table loaded", loglib.Fields{
		"table":         p.Table,
		"logical_table": p.LogicalTable,
		"rows":          len(p.Records),
	})
	return nil
}

func (r *Router) physicalName(table string) string {
	if name, found := r.tableNames[table]; found && name != "" {
		return name
	}
	return table
}
