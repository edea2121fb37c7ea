package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricEstimationsTotal   = "importcost.estimations.total"
	metricEstimationDuration = "importcost.estimation.duration.seconds"
	metricImportsTotal       = "importcost.imports.total"
	metricCacheHits          = "importcost.cache.hits"
	metricCacheMisses        = "importcost.cache.misses"

	attrStatus = "status"
	attrSized  = "sized"

	// StatusOK marks a successful estimation.
	StatusOK = "ok"
	// StatusError marks an estimation that returned an error.
	StatusError = "error"
)

// durationBucketBoundaries covers 1ms to 120s: a warm cache answers in
// milliseconds, a cold bundle walk of a large dependency takes seconds.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// EstimationMetrics holds the OTel instruments for the size-estimation engine.
type EstimationMetrics struct {
	estimationsTotal   metric.Int64Counter
	estimationDuration metric.Float64Histogram
	importsTotal       metric.Int64Counter
	cacheHits          metric.Int64Counter
	cacheMisses        metric.Int64Counter
}

// NewEstimationMetrics creates estimation metric instruments from the given meter.
func NewEstimationMetrics(mt metric.Meter) (*EstimationMetrics, error) {
	estimations, err := mt.Int64Counter(metricEstimationsTotal,
		metric.WithDescription("Total estimation calls"),
		metric.WithUnit("{estimation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEstimationsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricEstimationDuration,
		metric.WithDescription("Estimation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEstimationDuration, err)
	}

	imports, err := mt.Int64Counter(metricImportsTotal,
		metric.WithDescription("Imports reported, by whether a size was computed"),
		metric.WithUnit("{import}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricImportsTotal, err)
	}

	hits, err := mt.Int64Counter(metricCacheHits,
		metric.WithDescription("Size cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHits, err)
	}

	misses, err := mt.Int64Counter(metricCacheMisses,
		metric.WithDescription("Size cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMisses, err)
	}

	return &EstimationMetrics{
		estimationsTotal:   estimations,
		estimationDuration: duration,
		importsTotal:       imports,
		cacheHits:          hits,
		cacheMisses:        misses,
	}, nil
}

// RecordEstimation records one finished Estimate call.
// Safe to call on a nil receiver (no-op).
func (em *EstimationMetrics) RecordEstimation(ctx context.Context, status string, sized, unsized int, duration time.Duration) {
	if em == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	em.estimationsTotal.Add(ctx, 1, attrs)
	em.estimationDuration.Record(ctx, duration.Seconds(), attrs)

	if sized > 0 {
		em.importsTotal.Add(ctx, int64(sized), metric.WithAttributes(attribute.Bool(attrSized, true)))
	}

	if unsized > 0 {
		em.importsTotal.Add(ctx, int64(unsized), metric.WithAttributes(attribute.Bool(attrSized, false)))
	}
}

// RecordCacheLookup counts a size cache hit or miss.
// Safe to call on a nil receiver (no-op).
func (em *EstimationMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if em == nil {
		return
	}

	if hit {
		em.cacheHits.Add(ctx, 1)

		return
	}

	em.cacheMisses.Add(ctx, 1)
}
