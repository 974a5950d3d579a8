// SPDX-License-Identifier: Apache-2.0

package instrumentation

import (
	"context"
	"fmt"
	"time"

	"github.com/xataio/bai2load/pkg/encryption"
	"github.com/xataio/bai2load/pkg/otel"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type KeyManager struct {
	inner   encryption.KeyManager
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *keyManagerMetrics
}

type keyManagerMetrics struct {
	lookupLatency  metric.Int64Histogram
	encryptLatency metric.Int64Histogram
	encryptBytes   metric.Int64Counter
}

func NewKeyManager(inner encryption.KeyManager, instrumentation *otel.Instrumentation) (encryption.KeyManager, error) {
	if !instrumentation.IsEnabled() {
		return inner, nil
	}

	km := &KeyManager{
		inner:   inner,
		tracer:  instrumentation.Tracer,
		meter:   instrumentation.Meter,
		metrics: &keyManagerMetrics{},
	}
	if err := km.initMetrics(); err != nil {
		return nil, fmt.Errorf("error initialising key manager metrics: %w", err)
	}
	return km, nil
}

func (k *KeyManager) FindKey(ctx context.Context, customerID string) (key string, err error) {
	ctx, span := otel.StartSpan(ctx, k.tracer, "keymanager.FindKey")
	defer func() { otel.CloseSpan(span, err) }()

	start := time.Now()
	key, err = k.inner.FindKey(ctx, customerID)
	if k.meter != nil {
		k.metrics.lookupLatency.Record(ctx, time.Since(start).Milliseconds(),
			metric.WithAttributes(otel.ResultAttribute(err)))
	}
	return key, err
}

func (k *KeyManager) Encrypt(ctx context.Context, key string, plaintext []byte) (ciphertext []byte, err error) {
	ctx, span := otel.StartSpan(ctx, k.tracer, "keymanager.Encrypt", trace.WithAttributes(
		attribute.Int("plaintextBytes", len(plaintext)),
	))
	defer func() { otel.CloseSpan(span, err) }()

	start := time.Now()
	ciphertext, err = k.inner.Encrypt(ctx, key, plaintext)
	if k.meter != nil {
		attrs := metric.WithAttributes(otel.ResultAttribute(err))
		k.metrics.encryptLatency.Record(ctx, time.Since(start).Milliseconds(), attrs)
		k.metrics.encryptBytes.Add(ctx, int64(len(plaintext)), attrs)
	}
	return ciphertext, err
}

func (k *KeyManager) Close() error {
	return k.inner.Close()
}

func (k *KeyManager) initMetrics() error {
	if k.meter == nil {
		return nil
	}

	var err error
	k.metrics.lookupLatency, err = k.meter.Int64Histogram("bai2load.kms.find_key.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Distribution of the time taken to find a customer key"))
	if err != nil {
		return err
	}

	k.metrics.encryptLatency, err = k.meter.Int64Histogram("bai2load.kms.encrypt.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Distribution of the time taken to encrypt a value"))
	if err != nil {
		return err
	}

	k.metrics.encryptBytes, err = k.meter.Int64Counter("bai2load.kms.encrypt.bytes",
		metric.WithUnit("bytes"),
		metric.WithDescription("Count of plaintext bytes encrypted"))
	if err != nil {
		return err
	}

	return nil
}
