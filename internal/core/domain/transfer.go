package domain

import "time"

// TransferRequest moves Amount from one account to another.
type TransferRequest struct {
	FromAccountID string  `json:"from_account_id"`
	ToAccountID   string  `json:"to_account_id"`
	Amount        float64 `json:"amount"`
}

// TransferStatus represents the lifecycle state of a desk-submitted transfer.
type TransferStatus string

const (
	TransferStatusQueued    TransferStatus = "QUEUED"
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusFailed    TransferStatus = "FAILED"
)

// TransferRecord is the externally visible state of a submitted transfer.
type TransferRecord struct {
	ID            string         `json:"transfer_id"`
	FromAccountID string         `json:"from_account_id"`
	ToAccountID   string         `json:"to_account_id"`
	Amount        float64        `json:"amount"`
	Status        TransferStatus `json:"status"`
	ErrorCode     string         `json:"error_code,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// NewTransferRecord returns a QUEUED record for the handle's request.
func NewTransferRecord(h *TransferHandle) *TransferRecord {
	req := h.Request()
	return &TransferRecord{
		ID:            h.ID(),
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Status:        TransferStatusQueued,
		CreatedAt:     time.Now().UTC(),
	}
}

// IsTerminal returns true if the transfer has finished.
func (r *TransferRecord) IsTerminal() bool {
	return r.Status == TransferStatusCompleted || r.Status == TransferStatusFailed
}
