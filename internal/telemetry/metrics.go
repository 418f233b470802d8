// Package telemetry provides OpenTelemetry instrumentation for the mirror server.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/stacklok/scm-mirror/sync"

	// JobMetricsMeterName is the name used for the background job metrics meter
	JobMetricsMeterName = "github.com/stacklok/scm-mirror/jobs"
)

// Sync scopes reported in the "scope" attribute.
const (
	SyncScopeOrganization = "organization"
	SyncScopeRepository   = "repository"
)

// SyncMetrics holds the OpenTelemetry instruments for sync operation metrics
type SyncMetrics struct {
	syncDuration  metric.Float64Histogram
	reconciledOps metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"scm_mirror_sync_duration_seconds",
		metric.WithDescription("Duration of sync passes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	reconciledOps, err := meter.Int64Counter(
		"scm_mirror_reconciled_rows_total",
		metric.WithDescription("Rows inserted, updated or tombstoned by reconciliation"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration:  syncDuration,
		reconciledOps: reconciledOps,
	}, nil
}

// RecordSyncDuration records the duration of a sync pass for the given scope
// (organization or repository).
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, scope string, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("scope", scope),
		attribute.Bool("success", success),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordReconciled adds count rows of the given entity and outcome
// (inserted, updated, tombstoned). Zero counts are not recorded.
func (m *SyncMetrics) RecordReconciled(ctx context.Context, entity, outcome string, count int) {
	if m == nil || m.reconciledOps == nil || count <= 0 {
		return
	}

	m.reconciledOps.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("outcome", outcome),
	))
}

// JobMetrics holds the OpenTelemetry instruments for background jobs
type JobMetrics struct {
	submitted   metric.Int64Counter
	jobDuration metric.Float64Histogram
}

// NewJobMetrics creates a new JobMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewJobMetrics(provider metric.MeterProvider) (*JobMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(JobMetricsMeterName)

	submitted, err := meter.Int64Counter(
		"scm_mirror_jobs_submitted_total",
		metric.WithDescription("Number of background jobs submitted"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, err
	}

	jobDuration, err := meter.Float64Histogram(
		"scm_mirror_job_duration_seconds",
		metric.WithDescription("Duration of background jobs from start to completion in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900),
	)
	if err != nil {
		return nil, err
	}

	return &JobMetrics{
		submitted:   submitted,
		jobDuration: jobDuration,
	}, nil
}

// RecordSubmitted counts a submitted job of the given type
func (m *JobMetrics) RecordSubmitted(ctx context.Context, jobType string) {
	if m == nil || m.submitted == nil {
		return
	}

	m.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("type", jobType)))
}

// RecordJobDuration records how long a job ran and the terminal status it reached
func (m *JobMetrics) RecordJobDuration(ctx context.Context, jobType, status string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("type", jobType),
		attribute.String("status", status),
	}

	m.jobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
