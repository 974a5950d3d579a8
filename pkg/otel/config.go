// SPDX-License-Identifier: Apache-2.0

package otel

import (
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config enables the OTLP exporters of a statement run. A nil section
// disables that signal.
type Config struct {
	Metrics *MetricsConfig
	Traces  *TracesConfig
}

type MetricsConfig struct {
	Endpoint string
	// CollectionInterval between periodic exports. The points of a run
	// shorter than the interval are exported when the provider is closed.
	CollectionInterval time.Duration
}

type TracesConfig struct {
	Endpoint    string
	SampleRatio float64
}

const (
	defaultCollectionInterval = 60 * time.Second
	// flushTimeout bounds the final export on Close, so an unreachable
	// collector doesn't hold the process after the statement is loaded.
	flushTimeout = 10 * time.Second
)

func (c *Config) isEnabled() bool {
	return c != nil && (c.Metrics != nil || c.Traces != nil)
}

func (c *MetricsConfig) collectionInterval() time.Duration {
	if c.CollectionInterval > 0 {
		return c.CollectionInterval
	}
	return defaultCollectionInterval
}

// sampler keeps the sampling decision of a parent span and samples the root
// pipeline spans by ratio.
func (c *TracesConfig) sampler() sdktrace.Sampler {
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}
