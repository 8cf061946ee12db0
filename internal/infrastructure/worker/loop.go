package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// loop runs a job on a schedule until stopped. next returns the wait before
// the following run given the current time.
type loop struct {
	name   string
	next   func(now time.Time) time.Duration
	job    func(ctx context.Context) error
	now    func() time.Time
	logger *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	runs    int
	lastErr error
}

func (l *loop) Name() string {
	return l.name
}

func (l *loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return fmt.Errorf("%s already running", l.name)
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(runCtx, l.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to return
func (l *loop) Stop() error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Stats returns the completed run count and the last run error
func (l *loop) Stats() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runs, l.lastErr
}

func (l *loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		timer := time.NewTimer(l.next(l.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := l.job(ctx)
		if err != nil {
			l.logger.Error("Scheduled job failed", zap.String("worker", l.name), zap.Error(err))
		}

		l.mu.Lock()
		l.runs++
		l.lastErr = err
		l.mu.Unlock()
	}
}
