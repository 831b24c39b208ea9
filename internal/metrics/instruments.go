package metrics

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "mybank.desk"

type instruments struct {
	submitted   metric.Int64Counter
	completed   metric.Int64Counter
	failed      metric.Int64Counter
	waitTime    metric.Float64Histogram
	serviceTime metric.Float64Histogram
	submitTime  metric.Float64Histogram
	queueDepth  metric.Int64Gauge
	workerBusy  metric.Int64Gauge
}

func newInstruments(provider metric.MeterProvider) (instruments, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	meter := provider.Meter(meterName)

	var (
		inst instruments
		err  error
	)

	inst.submitted, err = meter.Int64Counter(
		"desk.transfers.submitted",
		metric.WithDescription("Number of transfers accepted by a desk"),
		metric.WithUnit("{transfer}"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("create desk.transfers.submitted counter: %w", err)
	}

	inst.completed, err = meter.Int64Counter(
		"desk.transfers.completed",
		metric.WithDescription("Number of transfers a desk finished, successfully or not"),
		metric.WithUnit("{transfer}"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("create desk.transfers.completed counter: %w", err)
	}

	inst.failed, err = meter.Int64Counter(
		"desk.transfers.failed",
		metric.WithDescription("Number of finished transfers that returned an error"),
		metric.WithUnit("{transfer}"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("create desk.transfers.failed counter: %w", err)
	}

	inst.waitTime, err = meter.Float64Histogram(
		"desk.transfer.wait.duration",
		metric.WithDescription("Time a transfer spent queued before the worker picked it up"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("create desk.transfer.wait.duration histogram: %w", err)
	}

	inst.serviceTime, err = meter.Float64Histogram(
		"desk.transfer.service.duration",
		metric.WithDescription("Time the transfer engine spent executing a transfer"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("create desk.transfer.service.duration histogram: %w", err)
	}

	inst.submitTime, err = meter.Float64Histogram(
		"desk.transfer.submit.duration",
		metric.WithDescription("Time a caller spent handing a transfer to the desk"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("create desk.transfer.submit.duration histogram: %w", err)
	}

	inst.queueDepth, err = meter.Int64Gauge(
		"desk.queue.depth",
		metric.WithDescription("Transfers waiting in the desk queue"),
		metric.WithUnit("{transfer}"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("create desk.queue.depth gauge: %w", err)
	}

	inst.workerBusy, err = meter.Int64Gauge(
		"desk.worker.busy",
		metric.WithDescription("1 while the desk worker is executing a transfer, 0 otherwise"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("create desk.worker.busy gauge: %w", err)
	}

	return inst, nil
}
