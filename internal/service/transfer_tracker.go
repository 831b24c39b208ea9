package service

import (
	"context"
	"errors"
	"time"

	"mybank/internal/core/domain"
	"mybank/internal/core/ports"
	"mybank/pkg/apperror"
	"mybank/pkg/logger"

	"github.com/rs/zerolog"
)

const (
	// DefaultStatusTTL is how long transfer statuses stay queryable.
	DefaultStatusTTL = 24 * time.Hour

	statusWriteTimeout = 5 * time.Second
)

// transferTracker implements ports.TransferTracker on top of a desk.
type transferTracker struct {
	desk  ports.TransferDesk
	store ports.TransferStatusStore
	ttl   time.Duration
	log   zerolog.Logger
}

// NewTransferTracker creates a tracker that records status changes in store.
func NewTransferTracker(desk ports.TransferDesk, store ports.TransferStatusStore, ttl time.Duration, log zerolog.Logger) ports.TransferTracker {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &transferTracker{
		desk:  desk,
		store: store,
		ttl:   ttl,
		log:   logger.Component(log, "transfer-tracker"),
	}
}

// Submit hands the transfer to the desk and stores it as QUEUED. The final
// status is written once the handle completes. Status writes are best effort;
// a store failure never fails the transfer.
func (t *transferTracker) Submit(ctx context.Context, req domain.TransferRequest) (*domain.TransferRecord, *domain.TransferHandle, error) {
	h, err := t.desk.Submit(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	queued := domain.NewTransferRecord(h)
	if err := t.store.Put(ctx, queued, t.ttl); err != nil {
		t.log.Warn().Err(err).Str("transfer_id", h.ID()).Msg("failed to store queued transfer status")
	}

	// started after the QUEUED write so the final status always lands last
	go t.follow(h, queued)

	return queued, h, nil
}

func (t *transferTracker) follow(h *domain.TransferHandle, queued *domain.TransferRecord) {
	<-h.Done()
	rec := FinalRecord(queued, h)

	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()

	if err := t.store.Put(ctx, rec, t.ttl); err != nil {
		t.log.Warn().Err(err).Str("transfer_id", rec.ID).Str("status", string(rec.Status)).Msg("failed to store final transfer status")
	}
}

// Status returns the latest stored status of a transfer.
func (t *transferTracker) Status(ctx context.Context, id string) (*domain.TransferRecord, error) {
	rec, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, apperror.ErrDependencyDegraded(err)
	}
	if rec == nil {
		return nil, apperror.ErrNotFound("transfer")
	}
	return rec, nil
}

// FinalRecord returns a copy of rec updated with the outcome of the completed
// handle.
func FinalRecord(rec *domain.TransferRecord, h *domain.TransferHandle) *domain.TransferRecord {
	final := *rec
	finish(&final, h.Err())
	return &final
}

func finish(rec *domain.TransferRecord, err error) {
	now := time.Now().UTC()
	rec.CompletedAt = &now
	if err == nil {
		rec.Status = domain.TransferStatusCompleted
		return
	}

	rec.Status = domain.TransferStatusFailed
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		rec.ErrorCode = appErr.Code
		rec.ErrorMessage = appErr.Message
		return
	}
	rec.ErrorCode = apperror.CodeInternal
	rec.ErrorMessage = "Internal server error"
}
