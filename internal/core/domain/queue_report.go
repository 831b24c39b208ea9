package domain

// QueueReport is a point-in-time view of a transfer desk's queueing metrics.
// Times are in milliseconds, rates in transfers per second.
type QueueReport struct {
	Desk               string  `json:"desk"`
	ObservationSeconds float64 `json:"observation_seconds"`
	TransfersSubmitted int64   `json:"transfers_submitted"`
	TransfersCompleted int64   `json:"transfers_completed"`
	TransfersFailed    int64   `json:"transfers_failed"`
	TotalWaitMillis    float64 `json:"total_wait_ms"`
	TotalServiceMillis float64 `json:"total_service_ms"`
	MeanWaitMillis     float64 `json:"mean_wait_ms"`
	MeanServiceMillis  float64 `json:"mean_service_ms"`
	MeanResponseMillis float64 `json:"mean_response_ms"`
	MeanSubmitMillis   float64 `json:"mean_submission_ms"`
	ArrivalRate        float64 `json:"arrival_rate"`
	ServiceRate        float64 `json:"service_rate"`
	TrafficIntensity   float64 `json:"-"`
	AverageQueueLength float64 `json:"average_queue_length"`
	CurrentQueueLength int     `json:"current_queue_length"`
	WorkerBusy         bool    `json:"worker_busy"`
	UtilizationPercent float64 `json:"utilization_percent"`
	SystemStatus       string  `json:"system_status"`
	ResponseAssessment string  `json:"response_time_assessment"`
	QueueAssessment    string  `json:"queue_buildup_assessment"`
	HealthAssessment   string  `json:"system_health"`
}
