package handler

import (
	"fmt"
	"math"

	"mybank/internal/adapter/http/dto"
	"mybank/internal/core/domain"
	"mybank/internal/core/ports"
	"mybank/pkg/apperror"
	"mybank/pkg/response"

	"github.com/gin-gonic/gin"
)

// MetricsHandler exposes the queue reports of both desks.
type MetricsHandler struct {
	async ports.QueueMetrics
	sync  ports.QueueMetrics
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(async, sync ports.QueueMetrics) *MetricsHandler {
	return &MetricsHandler{async: async, sync: sync}
}

// AsyncReport handles GET /api/v1/metrics/queue.
func (h *MetricsHandler) AsyncReport(c *gin.Context) {
	response.OK(c, toQueueReportResponse(h.async.Snapshot()))
}

// SyncReport handles GET /api/v1/metrics/queue/sync.
func (h *MetricsHandler) SyncReport(c *gin.Context) {
	response.OK(c, toQueueReportResponse(h.sync.Snapshot()))
}

// Reset handles POST /api/v1/metrics/queue/reset. ?desk=async or ?desk=sync
// limits the reset to one desk; both are reset otherwise.
func (h *MetricsHandler) Reset(c *gin.Context) {
	desk := c.DefaultQuery("desk", "all")

	var reset []string
	if desk == "all" || desk == "async" {
		h.async.Reset()
		reset = append(reset, "async")
	}
	if desk == "all" || desk == "sync" {
		h.sync.Reset()
		reset = append(reset, "sync")
	}
	if reset == nil {
		response.Error(c, apperror.ErrInvalidRequest(fmt.Sprintf("unknown desk %q", desk)))
		return
	}

	response.OK(c, gin.H{"reset": reset})
}

func toQueueReportResponse(r domain.QueueReport) dto.QueueReportResponse {
	resp := dto.QueueReportResponse{
		Desk:               r.Desk,
		ObservationSeconds: r.ObservationSeconds,
		TransfersSubmitted: r.TransfersSubmitted,
		TransfersCompleted: r.TransfersCompleted,
		TransfersFailed:    r.TransfersFailed,
		TotalWaitMillis:    r.TotalWaitMillis,
		TotalServiceMillis: r.TotalServiceMillis,
		MeanWaitMillis:     r.MeanWaitMillis,
		MeanServiceMillis:  r.MeanServiceMillis,
		MeanResponseMillis: r.MeanResponseMillis,
		MeanSubmitMillis:   r.MeanSubmitMillis,
		ArrivalRate:        r.ArrivalRate,
		ServiceRate:        r.ServiceRate,
		AverageQueueLength: r.AverageQueueLength,
		CurrentQueueLength: r.CurrentQueueLength,
		WorkerBusy:         r.WorkerBusy,
		UtilizationPercent: r.UtilizationPercent,
		SystemStatus:       r.SystemStatus,
		ResponseAssessment: r.ResponseAssessment,
		QueueAssessment:    r.QueueAssessment,
		HealthAssessment:   r.HealthAssessment,
	}
	if math.IsInf(r.TrafficIntensity, 0) || math.IsNaN(r.TrafficIntensity) {
		resp.TrafficUnbounded = true
	} else {
		rho := r.TrafficIntensity
		resp.TrafficIntensity = &rho
	}
	return resp
}
