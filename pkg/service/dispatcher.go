package service

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

const defaultQueueSize = 64

// Dispatcher processes queued input events on a fixed pool of workers, so
// webhook handlers can acknowledge a delivery with 202 and return. Each run
// executes its jobs strictly sequentially; only distinct events run in
// parallel, and those share no context state.
type Dispatcher struct {
	svc    *EventService
	logger Logger
	queue  chan int64
	wg     sync.WaitGroup
	ctx    context.Context
}

func NewDispatcher(ctx context.Context, svc *EventService, logger Logger) *Dispatcher {
	return &Dispatcher{
		svc:    svc,
		logger: logger,
		ctx:    ctx,
	}
}

// Start begins the dispatcher with the specified number of workers.
func (d *Dispatcher) Start(workers int) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	d.queue = make(chan int64, defaultQueueSize)
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop stops accepting new events and waits for in-flight runs to finish.
func (d *Dispatcher) Stop() {
	close(d.queue)
	d.wg.Wait()
}

// Enqueue hands an event to the worker pool. It does not block: a full
// queue is reported to the caller, who can tell the sender to redeliver.
func (d *Dispatcher) Enqueue(eventID int64) error {
	select {
	case d.queue <- eventID:
		return nil
	default:
		return errors.New("dispatch queue full")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for eventID := range d.queue {
		if d.ctx.Err() != nil {
			return
		}
		if _, err := d.svc.Process(d.ctx, eventID); err != nil {
			d.logger.Errorf("Processing event %d failed: %v", eventID, err)
		}
	}
}
