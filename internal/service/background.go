package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mysocial/shop-api/internal/metrics"
)

// Background runs best-effort work outside the request lifecycle.  Each task
// gets its own timeout context so it survives the request being cancelled.
// Failures are logged and counted, never returned to a caller.
type Background struct {
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewBackground(log *zap.Logger, timeout time.Duration) *Background {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Background{log: log, timeout: timeout}
}

// Go starts fn in its own goroutine.
func (b *Background) Go(name string, fn func(ctx context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.BackgroundFailures.WithLabelValues(name).Inc()
				b.log.Error("background task panicked", zap.String("task", name), zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			metrics.BackgroundFailures.WithLabelValues(name).Inc()
			b.log.Warn("background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

// Wait blocks until every started task has finished.
func (b *Background) Wait() { b.wg.Wait() }
