package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mybank/internal/core/domain"
	"mybank/internal/core/ports"
	"mybank/pkg/apperror"
	"mybank/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultQueueCapacity is used when a non-positive capacity is configured.
const DefaultQueueCapacity = 100

type transferTask struct {
	ctx        context.Context
	handle     *domain.TransferHandle
	enqueuedAt time.Time
}

// AsyncDesk queues transfers and executes them one at a time, in submission
// order, on a single worker goroutine.
//
// Submit blocks while the queue is full. Shutdown stops intake and lets the
// worker drain everything already queued.
type AsyncDesk struct {
	engine  ports.TransferEngine
	metrics DeskRecorder
	queue   chan *transferTask
	log     zerolog.Logger

	mu     sync.RWMutex // guards closed; held shared by Submit while it sends
	closed bool

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// NewAsyncDesk creates a desk with the given queue capacity. The worker does
// not run until Start is called.
func NewAsyncDesk(engine ports.TransferEngine, metrics DeskRecorder, capacity int, log zerolog.Logger) *AsyncDesk {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	d := &AsyncDesk{
		engine:  engine,
		metrics: metrics,
		queue:   make(chan *transferTask, capacity),
		log:     logger.Component(log, "async-desk"),
		done:    make(chan struct{}),
	}
	metrics.SetQueueDepth(d.QueueLength)
	return d
}

// Start launches the worker. Later calls are no-ops.
func (d *AsyncDesk) Start() {
	d.startOnce.Do(func() {
		d.log.Info().Int("capacity", cap(d.queue)).Msg("transfer desk worker started")
		go d.run()
	})
}

// QueueLength returns the number of transfers waiting for the worker.
func (d *AsyncDesk) QueueLength() int {
	return len(d.queue)
}

// Submit enqueues the transfer and returns its handle. It blocks while the
// queue is full; if ctx ends first the transfer is not enqueued.
func (d *AsyncDesk) Submit(ctx context.Context, req domain.TransferRequest) (*domain.TransferHandle, error) {
	start := time.Now()

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, apperror.ErrDeskClosed()
	}

	task := &transferTask{
		ctx:    context.WithoutCancel(ctx),
		handle: domain.NewTransferHandle(uuid.NewString(), req),
	}

	task.enqueuedAt = time.Now()
	select {
	case d.queue <- task:
	case <-ctx.Done():
		d.log.Warn().Err(ctx.Err()).Int("queued", len(d.queue)).Msg("gave up waiting for queue space")
		return nil, apperror.ErrDeskSubmitAborted(ctx.Err())
	}

	d.metrics.RecordSubmitted(time.Since(start))
	return task.handle, nil
}

func (d *AsyncDesk) run() {
	defer close(d.done)

	for task := range d.queue {
		d.process(task)
	}

	d.log.Info().Msg("transfer desk worker stopped")
}

func (d *AsyncDesk) process(task *transferTask) {
	d.metrics.MarkBusy()
	d.metrics.RecordWait(time.Since(task.enqueuedAt))

	start := time.Now()
	err := runEngine(task.ctx, d.engine, task.handle.Request(), d.log)
	d.metrics.RecordService(time.Since(start))

	d.metrics.MarkIdle()
	d.metrics.RecordCompleted(err)
	task.handle.Complete(err)
}

// Shutdown stops accepting transfers and waits for the worker to finish the
// queued ones. Submits issued after Shutdown fail with DeskClosed. If ctx
// ends first, the worker keeps draining in the background.
func (d *AsyncDesk) Shutdown(ctx context.Context) error {
	d.closeOnce.Do(func() {
		go func() {
			// waits for submitters blocked on a full queue
			d.mu.Lock()
			d.closed = true
			close(d.queue)
			d.mu.Unlock()
		}()
	})

	// a desk that was never started still drains what it accepted
	d.Start()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain transfer desk: %w", ctx.Err())
	}
}
