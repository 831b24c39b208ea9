// Package metrics records transfer desk timings and derives queueing
// statistics from them.
//
// Every recorded sample is mirrored to OpenTelemetry instruments. The
// snapshot returned by Snapshot is computed from in-process counters that
// cover the current observation window only; Reset starts a new window but
// leaves the exported OpenTelemetry series untouched.
package metrics

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"mybank/internal/core/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Option configures a QueueMetrics.
type Option func(*QueueMetrics)

// WithMeterProvider exports through the given provider instead of the global one.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(m *QueueMetrics) { m.provider = provider }
}

// WithClock replaces time.Now. Durations passed to the recorders are not
// affected.
func WithClock(now func() time.Time) Option {
	return func(m *QueueMetrics) { m.now = now }
}

// QueueMetrics collects samples for one desk.
//
// Recorders take the read side of mu so they never block each other; Reset
// takes the write side, so a reset never interleaves with a half-applied
// sample.
type QueueMetrics struct {
	desk     string
	now      func() time.Time
	provider metric.MeterProvider
	inst     instruments
	attrs    metric.MeasurementOption

	mu          sync.RWMutex
	windowStart time.Time
	depth       func() int

	submitted    atomic.Int64
	completed    atomic.Int64
	failed       atomic.Int64
	waitNanos    atomic.Int64
	serviceNanos atomic.Int64
	submitNanos  atomic.Int64
	busyNanos    atomic.Int64
	busySince    atomic.Int64 // unix nanos, 0 while idle
}

// New creates metrics for the named desk. The observation window starts now.
func New(desk string, opts ...Option) (*QueueMetrics, error) {
	m := &QueueMetrics{
		desk:  desk,
		now:   time.Now,
		attrs: metric.WithAttributes(attribute.String("desk", desk)),
	}
	for _, opt := range opts {
		opt(m)
	}

	inst, err := newInstruments(m.provider)
	if err != nil {
		return nil, err
	}
	m.inst = inst
	m.windowStart = m.now()

	return m, nil
}

// Desk returns the desk name the metrics were created for.
func (m *QueueMetrics) Desk() string { return m.desk }

// SetQueueDepth installs the source of the instantaneous queue depth gauge.
func (m *QueueMetrics) SetQueueDepth(depth func() int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depth = depth
}

// RecordSubmitted counts an accepted transfer and the time the caller spent
// handing it over. The async desk calls it after the enqueue succeeds, so the
// worker may finish the transfer first: a snapshot taken in that gap can show
// completed ahead of submitted and a traffic intensity slightly below its true
// value. The counters agree again once Submit returns.
func (m *QueueMetrics) RecordSubmitted(submit time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.submitted.Add(1)
	m.submitNanos.Add(int64(submit))

	ctx := context.Background()
	m.inst.submitted.Add(ctx, 1, m.attrs)
	m.inst.submitTime.Record(ctx, submit.Seconds(), m.attrs)
	m.recordDepth(ctx)
}

// RecordWait adds the time a transfer spent queued.
func (m *QueueMetrics) RecordWait(wait time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.waitNanos.Add(int64(wait))
	m.inst.waitTime.Record(context.Background(), wait.Seconds(), m.attrs)
}

// RecordService adds the time the engine spent on a transfer.
func (m *QueueMetrics) RecordService(service time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.serviceNanos.Add(int64(service))
	m.inst.serviceTime.Record(context.Background(), service.Seconds(), m.attrs)
}

// RecordCompleted counts a finished transfer. A non-nil err also counts it as
// failed.
func (m *QueueMetrics) RecordCompleted(err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ctx := context.Background()
	m.completed.Add(1)
	m.inst.completed.Add(ctx, 1, m.attrs)
	if err != nil {
		m.failed.Add(1)
		m.inst.failed.Add(ctx, 1, m.attrs)
	}
}

// MarkBusy flags the worker as executing a transfer.
func (m *QueueMetrics) MarkBusy() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.busySince.Store(m.now().UnixNano())

	ctx := context.Background()
	m.inst.workerBusy.Record(ctx, 1, m.attrs)
	m.recordDepth(ctx)
}

// MarkIdle flags the worker as idle and accumulates the busy period.
func (m *QueueMetrics) MarkIdle() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if since := m.busySince.Swap(0); since != 0 {
		m.busyNanos.Add(m.now().UnixNano() - since)
	}
	m.inst.workerBusy.Record(context.Background(), 0, m.attrs)
}

// recordDepth must be called with mu held.
func (m *QueueMetrics) recordDepth(ctx context.Context) {
	if m.depth != nil {
		m.inst.queueDepth.Record(ctx, int64(m.depth()), m.attrs)
	}
}

// Reset zeroes every counter and restarts the observation window. A worker
// that is busy at the time of the reset is counted as busy from the reset on.
func (m *QueueMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.submitted.Store(0)
	m.completed.Store(0)
	m.failed.Store(0)
	m.waitNanos.Store(0)
	m.serviceNanos.Store(0)
	m.submitNanos.Store(0)
	m.busyNanos.Store(0)
	if m.busySince.Load() != 0 {
		m.busySince.Store(now.UnixNano())
	}
	m.windowStart = now
}

// Snapshot derives the queueing statistics of the current window.
func (m *QueueMetrics) Snapshot() domain.QueueReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	elapsed := now.Sub(m.windowStart)

	submitted := m.submitted.Load()
	completed := m.completed.Load()
	waitMs := nanosToMillis(m.waitNanos.Load())
	serviceMs := nanosToMillis(m.serviceNanos.Load())

	busy := m.busyNanos.Load()
	since := m.busySince.Load()
	if since != 0 {
		busy += now.UnixNano() - since
	}

	r := domain.QueueReport{
		Desk:               m.desk,
		ObservationSeconds: elapsed.Seconds(),
		TransfersSubmitted: submitted,
		TransfersCompleted: completed,
		TransfersFailed:    m.failed.Load(),
		TotalWaitMillis:    waitMs,
		TotalServiceMillis: serviceMs,
		WorkerBusy:         since != 0,
	}

	if completed > 0 {
		r.MeanWaitMillis = waitMs / float64(completed)
		r.MeanServiceMillis = serviceMs / float64(completed)
		r.MeanResponseMillis = (waitMs + serviceMs) / float64(completed)
	}
	if submitted > 0 {
		r.MeanSubmitMillis = nanosToMillis(m.submitNanos.Load()) / float64(submitted)
	}

	if seconds := elapsed.Seconds(); seconds > 0 {
		r.ArrivalRate = float64(submitted) / seconds
		r.ServiceRate = float64(completed) / seconds
		r.UtilizationPercent = math.Min(float64(busy)/float64(elapsed), 1) * 100
	}

	r.TrafficIntensity = math.Inf(1)
	if r.ServiceRate > 0 {
		r.TrafficIntensity = r.ArrivalRate / r.ServiceRate
	}

	// Little's Law with the mean wait in seconds.
	r.AverageQueueLength = r.ArrivalRate * r.MeanWaitMillis / 1000

	if m.depth != nil {
		r.CurrentQueueLength = m.depth()
	}

	assess(&r)
	return r
}

func nanosToMillis(n int64) float64 {
	return float64(n) / float64(time.Millisecond)
}
