package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"mybank/internal/adapter/http/dto"
	"mybank/internal/core/domain"
	"mybank/internal/core/ports"
	"mybank/internal/service"
	"mybank/pkg/apperror"
	"mybank/pkg/logger"
	"mybank/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HeaderIdempotencyKey makes a synchronous transfer safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

// TransferHandler handles transfer endpoints.
type TransferHandler struct {
	syncDesk   ports.TransferDesk
	tracker    ports.TransferTracker
	idempCache ports.IdempotencyCache // nil = Idempotency-Key ignored
	idempTTL   time.Duration
	log        zerolog.Logger
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(
	syncDesk ports.TransferDesk,
	tracker ports.TransferTracker,
	idempCache ports.IdempotencyCache,
	idempTTL time.Duration,
	log zerolog.Logger,
) *TransferHandler {
	return &TransferHandler{
		syncDesk:   syncDesk,
		tracker:    tracker,
		idempCache: idempCache,
		idempTTL:   idempTTL,
		log:        log,
	}
}

// Transfer handles POST /api/v1/transfers. The transfer runs on the sync desk
// and the response reflects its outcome. With an Idempotency-Key header the
// key is reserved before the transfer runs: retries replay the stored
// response and concurrent duplicates get 409 until the first one finishes.
func (h *TransferHandler) Transfer(c *gin.Context) {
	req, ok := bindTransfer(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	log := logger.FromContext(ctx, h.log)

	idempKey := c.GetHeader(HeaderIdempotencyKey)
	reserved := false
	if idempKey != "" && h.idempCache != nil {
		if h.replay(c, log, idempKey, req) {
			return
		}
		ok, err := h.idempCache.Reserve(ctx, idempotencyCacheKey(idempKey), idempotencyReserveTTL)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency reserve failed, executing transfer")
		case !ok:
			// lost the race: the winner either finished or is still running
			if !h.replay(c, log, idempKey, req) {
				response.Error(c, apperror.ErrIdempotencyBusy())
			}
			return
		default:
			reserved = true
		}
	}

	handle, err := h.syncDesk.Submit(ctx, req)
	if err == nil {
		err = handle.Err()
	}
	if err != nil {
		if reserved {
			h.release(ctx, log, idempKey)
		}
		response.Error(c, err)
		return
	}

	resp := toTransferResponse(service.FinalRecord(domain.NewTransferRecord(handle), handle))

	if reserved {
		respJSON, err := json.Marshal(resp)
		if err != nil {
			log.Warn().Err(err).Str("key", idempKey).Msg("failed to encode idempotency entry")
			h.release(ctx, log, idempKey)
		} else if err := h.idempCache.Set(context.WithoutCancel(ctx), idempotencyCacheKey(idempKey), respJSON, h.idempTTL); err != nil {
			log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	response.OK(c, resp)
}

// idempotencyReserveTTL bounds how long a crashed request can hold its key.
const idempotencyReserveTTL = 30 * time.Second

func idempotencyCacheKey(key string) string {
	return "transfer:" + key
}

// replay writes the response stored under key and reports whether the
// request was answered. A key reused for a different transfer is rejected
// and one held by a running request gets 409.
func (h *TransferHandler) replay(c *gin.Context, log *zerolog.Logger, key string, req domain.TransferRequest) bool {
	cached, err := h.idempCache.Get(c.Request.Context(), idempotencyCacheKey(key))
	switch {
	case errors.Is(err, ports.ErrIdempotencyInProgress):
		response.Error(c, apperror.ErrIdempotencyBusy())
		return true
	case err != nil:
		log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, executing transfer")
		return false
	case cached == nil:
		return false
	}

	var prev dto.TransferResponse
	if err := json.Unmarshal(cached, &prev); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("corrupt idempotency entry, executing transfer")
		return false
	}
	if prev.FromAccountID != req.FromAccountID || prev.ToAccountID != req.ToAccountID || prev.Amount != req.Amount {
		response.Error(c, apperror.ErrInvalidRequest("Idempotency-Key was already used for a different transfer"))
		return true
	}
	c.Header("Idempotent-Replayed", "true")
	response.OK(c, prev)
	return true
}

// release frees a reservation after a failed transfer so the client can retry.
func (h *TransferHandler) release(ctx context.Context, log *zerolog.Logger, key string) {
	if err := h.idempCache.Release(context.WithoutCancel(ctx), idempotencyCacheKey(key)); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
	}
}

// SubmitAsync handles POST /api/v1/transfers/async. The transfer is queued on
// the async desk and 202 is returned with its id. With ?wait=true the request
// blocks until the transfer finishes and returns the final status; if the
// client goes away first the transfer still runs.
func (h *TransferHandler) SubmitAsync(c *gin.Context) {
	req, ok := bindTransfer(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	queued, handle, err := h.tracker.Submit(ctx, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if c.Query("wait") != "true" {
		response.Accepted(c, toTransferResponse(queued))
		return
	}

	if err := handle.Wait(ctx); err != nil && ctx.Err() != nil {
		response.Accepted(c, toTransferResponse(queued))
		return
	}

	final := service.FinalRecord(queued, handle)
	if final.Status == domain.TransferStatusFailed {
		response.Error(c, handle.Err())
		return
	}
	response.OK(c, toTransferResponse(final))
}

// Status handles GET /api/v1/transfers/:id.
func (h *TransferHandler) Status(c *gin.Context) {
	rec, err := h.tracker.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toTransferResponse(rec))
}

func bindTransfer(c *gin.Context) (domain.TransferRequest, bool) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return domain.TransferRequest{}, false
	}
	dto.SanitizeStruct(&req)

	return domain.TransferRequest{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
	}, true
}

func toTransferResponse(rec *domain.TransferRecord) dto.TransferResponse {
	resp := dto.TransferResponse{
		TransferID:    rec.ID,
		FromAccountID: rec.FromAccountID,
		ToAccountID:   rec.ToAccountID,
		Amount:        rec.Amount,
		Status:        string(rec.Status),
		ErrorCode:     rec.ErrorCode,
		ErrorMessage:  rec.ErrorMessage,
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339Nano),
	}
	if rec.CompletedAt != nil {
		s := rec.CompletedAt.Format(time.RFC3339Nano)
		resp.CompletedAt = &s
	}
	return resp
}
