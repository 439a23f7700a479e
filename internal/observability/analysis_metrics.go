package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricAnalyzedTotal   = "codefang.analyzed.total"
	metricTaskDuration    = "codefang.task.duration.seconds"
	metricReproducerTotal = "codefang.reproducer.total"
	metricWatchdogStalls  = "codefang.watchdog.stalls.total"
	metricCheckedProgress = "codefang.checked.progress"
	metricTotalTasks      = "codefang.total.tasks"

	attrAnalyzer = "analyzer"
	attrResult   = "result"

	resultSuccess  = "success"
	resultFailed   = "failed"
	resultSkipped  = "skipped"
	resultTimedOut = "timed_out"
)

// AnalysisMetrics holds OTel instruments for the analysis scheduler.
type AnalysisMetrics struct {
	analyzedTotal   metric.Int64Counter
	taskDuration    metric.Float64Histogram
	reproducerTotal metric.Int64Counter
	watchdogStalls  metric.Int64Counter
	checkedProgress metric.Int64ObservableGauge
	totalTasks      metric.Int64ObservableGauge
}

// TaskOutcome records the result of a single analyzer invocation.
type TaskOutcome struct {
	Analyzer string
	Result   string
	Seconds  float64
}

// NewAnalysisMetrics creates the scheduler's metric instruments from the given meter.
func NewAnalysisMetrics(mt metric.Meter) (*AnalysisMetrics, error) {
	b := newMetricBuilder(mt)

	am := &AnalysisMetrics{
		analyzedTotal:   b.counter(metricAnalyzedTotal, "Total analyzer invocations by result", "{task}"),
		taskDuration:    b.histogram(metricTaskDuration, "Per-task analyzer wall-clock duration in seconds", "s", durationBucketBoundaries...),
		reproducerTotal: b.counter(metricReproducerTotal, "Total reproducer archives written", "{archive}"),
		watchdogStalls:  b.counter(metricWatchdogStalls, "Total watchdog kill escalations", "{stall}"),
		checkedProgress: b.gauge(metricCheckedProgress, "Number of tasks checked so far", "{task}"),
		totalTasks:      b.gauge(metricTotalTasks, "Total number of tasks scheduled", "{task}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return am, nil
}

// RecordTask records a completed analyzer invocation.
// Safe to call on a nil receiver (no-op).
func (am *AnalysisMetrics) RecordTask(ctx context.Context, o TaskOutcome) {
	if am == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrAnalyzer, o.Analyzer),
		attribute.String(attrResult, o.Result),
	)

	am.analyzedTotal.Add(ctx, 1, attrs)
	am.taskDuration.Record(ctx, o.Seconds, attrs)
}

// RecordReproducer records that a reproducer archive was written for the given analyzer.
func (am *AnalysisMetrics) RecordReproducer(ctx context.Context, analyzer string) {
	if am == nil {
		return
	}

	am.reproducerTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrAnalyzer, analyzer)))
}

// RecordWatchdogStall records that a task's process group survived SIGTERM
// and required SIGKILL escalation.
func (am *AnalysisMetrics) RecordWatchdogStall(ctx context.Context, analyzer string) {
	if am == nil {
		return
	}

	am.watchdogStalls.Add(ctx, 1, metric.WithAttributes(attribute.String(attrAnalyzer, analyzer)))
}

// RegisterProgressCallback registers an observable-gauge callback that reports
// the scheduler's live checked/total counters. checked and total are read
// atomically by the caller-supplied function on every collection.
func (am *AnalysisMetrics) RegisterProgressCallback(mt metric.Meter, read func() (checked, total int64)) (metric.Registration, error) {
	if am == nil {
		return nil, nil
	}

	return mt.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		checked, total := read()
		o.ObserveInt64(am.checkedProgress, checked)
		o.ObserveInt64(am.totalTasks, total)

		return nil
	}, am.checkedProgress, am.totalTasks)
}
