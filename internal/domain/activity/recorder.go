package activity

import (
	"context"
	"sync"
	"time"

	"posledger/internal/core/entity"
	"posledger/pkg/logger"
)

// Recorder writes activity entries outside the request transaction. Sale
// activity logging is best effort: a committed sale is never rolled back
// because its audit entry failed, the failure is only logged.
type Recorder struct {
	svc     *Service
	queue   chan *entity.Activity
	wg      sync.WaitGroup
	timeout time.Duration

	closeOnce sync.Once
}

func NewRecorder(svc *Service, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		svc:     svc,
		queue:   make(chan *entity.Activity, queueSize),
		timeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Enqueue queues an entry for recording. Called after the business
// transaction has committed. Never blocks the caller: when the queue is
// full the entry is dropped with a warning.
func (r *Recorder) Enqueue(ctx context.Context, a *entity.Activity) {
	select {
	case r.queue <- a:
	default:
		logger.Warn(ctx, "activity queue full, dropping entry",
			"type", string(a.Type),
			"reference_id", refString(a),
		)
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for a := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.svc.Record(ctx, a); err != nil {
			logger.Warn(ctx, "failed to record activity",
				"type", string(a.Type),
				"reference_id", refString(a),
				"error", err,
			)
		}
		cancel()
	}
}

// Close drains the queue and stops the worker.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
	})
	r.wg.Wait()
}

func refString(a *entity.Activity) string {
	if a.ReferenceID == nil {
		return ""
	}
	return a.ReferenceID.String()
}
