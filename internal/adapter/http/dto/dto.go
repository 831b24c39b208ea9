package dto

// CreateAccountRequest is the request body for opening an account. The id is
// generated when omitted.
type CreateAccountRequest struct {
	ID             string   `json:"id,omitempty" binding:"omitempty,account_id"`
	InitialBalance *float64 `json:"initial_balance" binding:"required,gte=0"`
}

// AccountResponse is the response body for a single account.
type AccountResponse struct {
	ID        string  `json:"id"`
	Balance   float64 `json:"balance"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// AccountListResponse wraps the account list.
type AccountListResponse struct {
	Items []AccountResponse `json:"items"`
	Total int               `json:"total"`
}

// TotalBalanceResponse is the response for the conservation check.
type TotalBalanceResponse struct {
	TotalBalance float64 `json:"total_balance"`
}

// TransferRequest is the request body for both sync and async transfers.
type TransferRequest struct {
	FromAccountID string  `json:"from_account_id" binding:"required,account_id"`
	ToAccountID   string  `json:"to_account_id" binding:"required,account_id"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
}

// TransferResponse describes a transfer and its current status.
type TransferResponse struct {
	TransferID    string  `json:"transfer_id"`
	FromAccountID string  `json:"from_account_id"`
	ToAccountID   string  `json:"to_account_id"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status"`
	ErrorCode     string  `json:"error_code,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
	CreatedAt     string  `json:"created_at"`
	CompletedAt   *string `json:"completed_at,omitempty"`
}

// QueueReportResponse is the JSON form of a desk's queue report. Traffic
// intensity is null and flagged unbounded while no service rate is known.
type QueueReportResponse struct {
	Desk               string   `json:"desk"`
	ObservationSeconds float64  `json:"observation_seconds"`
	TransfersSubmitted int64    `json:"transfers_submitted"`
	TransfersCompleted int64    `json:"transfers_completed"`
	TransfersFailed    int64    `json:"transfers_failed"`
	TotalWaitMillis    float64  `json:"total_wait_ms"`
	TotalServiceMillis float64  `json:"total_service_ms"`
	MeanWaitMillis     float64  `json:"mean_wait_ms"`
	MeanServiceMillis  float64  `json:"mean_service_ms"`
	MeanResponseMillis float64  `json:"mean_response_ms"`
	MeanSubmitMillis   float64  `json:"mean_submit_ms"`
	ArrivalRate        float64  `json:"arrival_rate"`
	ServiceRate        float64  `json:"service_rate"`
	TrafficIntensity   *float64 `json:"traffic_intensity"`
	TrafficUnbounded   bool     `json:"traffic_intensity_unbounded"`
	AverageQueueLength float64  `json:"average_queue_length"`
	CurrentQueueLength int      `json:"current_queue_length"`
	WorkerBusy         bool     `json:"worker_busy"`
	UtilizationPercent float64  `json:"utilization_percent"`
	SystemStatus       string   `json:"system_status"`
	ResponseAssessment string   `json:"response_assessment"`
	QueueAssessment    string   `json:"queue_assessment"`
	HealthAssessment   string   `json:"health_assessment"`
}
