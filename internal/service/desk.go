package service

import (
	"context"
	"fmt"
	"time"

	"mybank/internal/core/domain"
	"mybank/internal/core/ports"
	"mybank/pkg/apperror"
	"mybank/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DeskRecorder receives the timings a desk produces. *metrics.QueueMetrics
// implements it.
type DeskRecorder interface {
	RecordSubmitted(submit time.Duration)
	RecordWait(wait time.Duration)
	RecordService(service time.Duration)
	RecordCompleted(err error)
	MarkBusy()
	MarkIdle()
	SetQueueDepth(depth func() int)
}

// runEngine calls the engine and turns a panic into an internal error so a
// single bad transfer cannot take a desk down.
func runEngine(ctx context.Context, engine ports.TransferEngine, req domain.TransferRequest, log zerolog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("transfer engine panicked")
			err = apperror.InternalError(fmt.Errorf("transfer engine panic: %v", r))
		}
	}()
	return engine.Transfer(ctx, req)
}

// SyncDesk executes transfers inline on the caller's goroutine.
type SyncDesk struct {
	engine  ports.TransferEngine
	metrics DeskRecorder
	log     zerolog.Logger
}

// NewSyncDesk creates a new SyncDesk.
func NewSyncDesk(engine ports.TransferEngine, metrics DeskRecorder, log zerolog.Logger) *SyncDesk {
	return &SyncDesk{
		engine:  engine,
		metrics: metrics,
		log:     logger.Component(log, "sync-desk"),
	}
}

// Submit runs the transfer and returns an already completed handle.
func (d *SyncDesk) Submit(ctx context.Context, req domain.TransferRequest) (*domain.TransferHandle, error) {
	h := domain.NewTransferHandle(uuid.NewString(), req)
	d.metrics.RecordSubmitted(0)

	start := time.Now()
	err := runEngine(ctx, d.engine, req, d.log)
	d.metrics.RecordService(time.Since(start))
	d.metrics.RecordCompleted(err)

	h.Complete(err)
	return h, nil
}
