package domain

import (
	"context"
	"sync"
)

// TransferHandle tracks one transfer submitted to a desk. It completes exactly
// once, with the engine's outcome.
type TransferHandle struct {
	id   string
	req  TransferRequest
	done chan struct{}
	once sync.Once
	err  error
}

// NewTransferHandle returns a pending handle.
func NewTransferHandle(id string, req TransferRequest) *TransferHandle {
	return &TransferHandle{
		id:   id,
		req:  req,
		done: make(chan struct{}),
	}
}

// ID returns the transfer id assigned at submission.
func (h *TransferHandle) ID() string { return h.id }

// Request returns the submitted transfer.
func (h *TransferHandle) Request() TransferRequest { return h.req }

// Complete records the outcome. Only the first call has any effect.
func (h *TransferHandle) Complete(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Done is closed once the transfer has finished.
func (h *TransferHandle) Done() <-chan struct{} { return h.done }

// Err returns the transfer's outcome. It is nil while the transfer is pending.
func (h *TransferHandle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the transfer finishes or ctx ends. Giving up on the wait
// does not cancel the transfer.
func (h *TransferHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
