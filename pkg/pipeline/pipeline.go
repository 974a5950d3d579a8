// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"
	"github.com/xataio/bai2load/pkg/bai2"
	"github.com/xataio/bai2load/pkg/encryption"
	encryptioninstrumentation "github.com/xataio/bai2load/pkg/encryption/instrumentation"
	"github.com/xataio/bai2load/pkg/encryption/kms"
	loglib "github.com/xataio/bai2load/pkg/log"
	"github.com/xataio/bai2load/pkg/mapping"
	"github.com/xataio/bai2load/pkg/otel"
	"github.com/xataio/bai2load/pkg/router"
	"github.com/xataio/bai2load/pkg/rows"
	"github.com/xataio/bai2load/pkg/storage"
	"github.com/xataio/bai2load/pkg/storage/gcs"
	"github.com/xataio/bai2load/pkg/storage/local"
	"github.com/xataio/bai2load/pkg/transform"
	"github.com/xataio/bai2load/pkg/validator"
	"github.com/xataio/bai2load/pkg/warehouse"
	"github.com/xataio/bai2load/pkg/warehouse/bigquery"
	warehouseinstrumentation "github.com/xataio/bai2load/pkg/warehouse/instrumentation"
	"github.com/xataio/bai2load/pkg/warehouse/jsonl"
	"github.com/xataio/bai2load/pkg/warehouse/postgres"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline processes one statement file per run: read, parse, transform,
// validate, encrypt and load. Any error aborts the run.
type Pipeline struct {
	config          *Config
	logger          loglib.Logger
	instrumentation *otel.Instrumentation
	clock           clockwork.Clock

	reader     storage.Reader
	loader     warehouse.Loader
	keyManager encryption.KeyManager
}

// Report summarises a successful run.
type Report struct {
	RunID      string
	BankID     string
	CustomerID string
	// Rows is the number of rows loaded per logical table.
	Rows     map[string]int
	Duration time.Duration
}

type Option func(p *Pipeline)

func New(config *Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		config: config,
		logger: loglib.NewNoopLogger(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func WithLogger(l loglib.Logger) Option {
	return func(p *Pipeline) {
		p.logger = loglib.NewLogger(l).WithFields(loglib.Fields{
			loglib.ModuleField: "pipeline",
		})
	}
}

func WithInstrumentation(i *otel.Instrumentation) Option {
	return func(p *Pipeline) {
		p.instrumentation = i
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// WithStorageReader replaces the configured storage backend. The reader is
// not closed by the pipeline.
func WithStorageReader(r storage.Reader) Option {
	return func(p *Pipeline) {
		p.reader = r
	}
}

// WithLoader replaces the configured warehouse loader. The loader is not
// closed by the pipeline.
func WithLoader(l warehouse.Loader) Option {
	return func(p *Pipeline) {
		p.loader = l
	}
}

// WithKeyManager replaces the Cloud KMS client. The key manager is not
// closed by the pipeline.
func WithKeyManager(km encryption.KeyManager) Option {
	return func(p *Pipeline) {
		p.keyManager = km
	}
}

// Run processes the statement at the given path, formatted as
// <bucket>/<object>. Warehouse and key management clients are only created
// once the statement produced rows.
func (p *Pipeline) Run(ctx context.Context, path string) (report *Report, err error) {
	runID := xid.New().String()
	logger := p.logger.WithFields(loglib.Fields{"run_id": runID})
	start := p.clock.Now()

	ctx, span := otel.StartSpan(ctx, p.tracer(), "pipeline.Run")
	defer func() {
		otel.CloseSpan(span, err)
		if err != nil {
			logger.Error(err, "pipeline failed", loglib.Fields{"path": path})
		}
	}()

	logger.Info("starting statement pipeline", loglib.Fields{"path": path})

	mappingCfg, err := mapping.LoadConfig(p.config.MappingConfigPath)
	if err != nil {
		return nil, err
	}
	ids, err := IdentifiersFromPath(path)
	if err != nil {
		return nil, err
	}
	logger.Info("identified statement", loglib.Fields{
		"bank_id":     ids.BankID,
		"customer_id": loglib.MaskID(ids.CustomerID),
	})

	catalog, err := mapping.NewCatalog(mappingCfg)
	if err != nil {
		return nil, err
	}
	resolver, err := mapping.NewResolver(mappingCfg, mapping.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	file, err := p.readStatement(ctx, path)
	if err != nil {
		return nil, err
	}

	ruleSet, err := resolver.RulesFor(ids.BankID)
	if err != nil {
		return nil, err
	}

	transformer, err := transform.New(catalog, transform.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	rs, err := transformer.Transform(ctx, file, ruleSet, ids)
	if err != nil {
		return nil, err
	}

	report = &Report{
		RunID:      runID,
		BankID:     ids.BankID,
		CustomerID: ids.CustomerID,
		Rows:       rows.CountByTable(rs),
	}

	if len(rs) == 0 {
		logger.Warn(nil, "transformation resulted in zero rows, nothing to load")
		report.Duration = p.clock.Since(start)
		return report, nil
	}

	if err := validator.New(catalog, validator.WithLogger(logger)).Validate(rs); err != nil {
		return nil, err
	}

	if err := p.encrypt(ctx, logger, catalog.SensitiveColumns(), rs); err != nil {
		return nil, err
	}

	if err := p.load(ctx, logger, rs); err != nil {
		return nil, err
	}

	report.Duration = p.clock.Since(start)
	logger.Info("statement pipeline completed", loglib.Fields{
		"rows":        len(rs),
		"duration_ms": report.Duration.Milliseconds(),
	})
	return report, nil
}

func (p *Pipeline) readStatement(ctx context.Context, path string) (*bai2.File, error) {
	reader := p.reader
	if reader == nil {
		var err error
		reader, err = p.newStorageReader(ctx)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
	}

	text, err := reader.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading statement: %w", err)
	}

	file, err := bai2.Parse(strings.NewReader(text), bai2.WithIntegrityCheck(p.config.CheckIntegrity))
	if err != nil {
		return nil, fmt.Errorf("parsing statement: %w", err)
	}
	return file, nil
}

func (p *Pipeline) encrypt(ctx context.Context, logger loglib.Logger, sensitive []string, rs []*rows.Row) error {
	keyManager := p.keyManager
	if keyManager == nil {
		var err error
		keyManager, err = kms.NewClient(ctx, &p.config.KMS, kms.WithLogger(logger))
		if err != nil {
			return err
		}
		defer keyManager.Close()
	}

	keyManager, err := encryptioninstrumentation.NewKeyManager(keyManager, p.instrumentation)
	if err != nil {
		return err
	}

	logger.Info("encrypting sensitive columns", loglib.Fields{
		"sensitive_columns": sensitive,
		"count":             len(sensitive),
	})

	resolver := encryption.NewKeyResolver(keyManager, encryption.WithKeyResolverLogger(logger))
	encryptor := encryption.NewFieldEncryptor(resolver, keyManager, sensitive,
		encryption.WithLogger(logger),
		encryption.WithWorkers(p.config.EncryptionWorkers))
	return encryptor.EncryptRows(ctx, rs)
}

func (p *Pipeline) load(ctx context.Context, logger loglib.Logger, rs []*rows.Row) error {
	loader := p.loader
	if loader == nil {
		var err error
		loader, err = p.newLoader(ctx, logger)
		if err != nil {
			return err
		}
		defer loader.Close()
	}

	loader, err := warehouseinstrumentation.NewLoader(loader, p.instrumentation)
	if err != nil {
		return err
	}

	r := router.New(loader, p.config.Warehouse.tableNames(),
		router.WithLogger(logger),
		router.WithConcurrentLoads(p.config.ConcurrentLoads))
	return r.Load(ctx, rs)
}

func (p *Pipeline) newStorageReader(ctx context.Context) (storage.Reader, error) {
	switch {
	case p.config.Storage.Local != nil:
		return local.NewReader(p.config.Storage.Local.Root), nil
	case p.config.Storage.GCS != nil:
		return gcs.NewReader(ctx, p.config.Storage.GCS, gcs.WithLogger(p.logger))
	default:
		return nil, errNoStorage
	}
}

func (p *Pipeline) newLoader(ctx context.Context, logger loglib.Logger) (warehouse.Loader, error) {
	cfg := p.config.Warehouse
	switch {
	case cfg.BigQuery != nil:
		return bigquery.NewLoader(ctx, cfg.BigQuery, bigquery.WithLogger(logger))
	case cfg.Postgres != nil:
		return postgres.NewLoader(ctx, cfg.Postgres, postgres.WithLogger(logger))
	case cfg.JSONL != nil:
		return jsonl.NewLoader(cfg.JSONL, jsonl.WithLogger(logger)), nil
	default:
		return nil, errNoWarehouse
	}
}

func (p *Pipeline) tracer() trace.Tracer {
	if p.instrumentation == nil {
		return nil
	}
	return p.instrumentation.Tracer
}
