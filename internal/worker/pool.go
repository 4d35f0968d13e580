package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"PulseMail/internal/metrics"
	"PulseMail/internal/models"
)

// Handler runs one firing and handles its own errors. A panic is logged and
// the worker moves on.
type Handler interface {
	Execute(ctx context.Context, f models.Firing)
}

type HandlerFunc func(ctx context.Context, f models.Firing)

func (fn HandlerFunc) Execute(ctx context.Context, f models.Firing) { fn(ctx, f) }

// inFlight tracks schedule ids currently executing.
type inFlight struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func (g *inFlight) acquire(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.ids[id]; busy {
		return false
	}
	g.ids[id] = struct{}{}
	return true
}

func (g *inFlight) release(id int64) {
	g.mu.Lock()
	delete(g.ids, id)
	g.mu.Unlock()
}

// run executes f and always frees its schedule id, even when handler panics.
func run(ctx context.Context, guard *inFlight, handler Handler, f models.Firing, logger *zap.Logger) {
	defer guard.release(f.ScheduleID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked",
				zap.Int64("schedule_id", f.ScheduleID),
				zap.Any("panic", r),
			)
		}
	}()
	handler.Execute(ctx, f)
}

// StartPool starts workers consuming firings until ctx is cancelled or the
// channel is closed. A firing whose schedule is already being executed by
// another worker is skipped.
func StartPool(
	ctx context.Context,
	wg *sync.WaitGroup,
	workers int,
	firings <-chan models.Firing,
	handler Handler,
	logger *zap.Logger,
) {
	guard := &inFlight{ids: make(map[int64]struct{})}

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func(id int) {
			defer wg.Done()

			logger.Info("worker started", zap.Int("worker_id", id))

			for {
				select {

				case <-ctx.Done():
					logger.Info("worker shutting down", zap.Int("worker_id", id))
					return

				case f, ok := <-firings:
					if !ok {
						logger.Info("firing channel closed", zap.Int("worker_id", id))
						return
					}

					if !guard.acquire(f.ScheduleID) {
						logger.Warn("schedule still running, skipping firing",
							zap.Int("worker_id", id),
							zap.Int64("schedule_id", f.ScheduleID),
							zap.Time("fired_at", f.FiredAt),
						)
						metrics.FiringsDropped.Inc()
						continue
					}

					run(ctx, guard, handler, f, logger)
				}
			}
		}(i)
	}
}
