package worker

import (
	"sync"

	"go.uber.org/zap"

	"PulseMail/internal/metrics"
	"PulseMail/internal/models"
)

// Queue is the bounded channel between cron callbacks and the pool.
// Enqueue never blocks the cron goroutine.
type Queue struct {
	mu     sync.RWMutex
	ch     chan models.Firing
	closed bool
	log    *zap.Logger
}

func NewQueue(size int, log *zap.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan models.Firing, size), log: log}
}

// C is the receive side handed to StartPool.
func (q *Queue) C() <-chan models.Firing { return q.ch }

// Enqueue reports whether f was accepted. A full or closed queue drops it.
func (q *Queue) Enqueue(f models.Firing) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.log.Warn("queue closed, dropping firing", zap.Int64("schedule_id", f.ScheduleID))
		return false
	}

	select {
	case q.ch <- f:
		return true
	default:
		q.log.Warn("dispatch queue full, dropping firing",
			zap.Int64("schedule_id", f.ScheduleID),
			zap.Time("fired_at", f.FiredAt),
		)
		metrics.FiringsDropped.Inc()
		return false
	}
}

// Close stops accepting firings. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
