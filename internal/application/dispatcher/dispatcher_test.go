package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/order-workflow/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func newAssigned() *event.Event {
	return event.NewEvent(event.TypeOrderAssigned, 1, 1, 7, nil)
}

func TestSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.SubscribeNamed(event.TypeOrderAssigned, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.Subscribe(event.TypeOrderAssigned, func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), newAssigned()))
	assert.Equal(t, []string{"first", "second"}, order)

	handlers := d.ListHandlers(event.TypeOrderAssigned)
	require.Len(t, handlers, 2)
	assert.Equal(t, "handler-1", handlers[1].Name)
	assert.Nil(t, handlers[0].Handler, "handler funcs are not exposed")
}

func TestDispatch_StopsOnFirstError(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	var secondCalled bool

	d.SubscribeNamed(event.TypeOrderRejected, "fails", func(ctx context.Context, evt *event.Event) error {
		return errors.New("boom")
	})
	d.SubscribeNamed(event.TypeOrderRejected, "never", func(ctx context.Context, evt *event.Event) error {
		secondCalled = true
		return nil
	})

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeOrderRejected, 1, 1, 1, nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler fails failed")
	assert.False(t, secondCalled)
	assert.Equal(t, int64(1), d.Stats().Failed)
	assert.Equal(t, 1, logger.ErrorCount())
}

func TestDispatch_RecoversPanics(t *testing.T) {
	d := NewDispatcher(WithLogger(&mockLogger{}))
	d.Subscribe(event.TypeOrderOnHold, func(ctx context.Context, evt *event.Event) error {
		panic("nil map")
	})

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeOrderOnHold, 1, 1, 1, nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
}

func TestSubscribeMany(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32

	d.SubscribeMany([]event.Type{event.TypeOrderOnHold, event.TypeOrderResumed}, "notify", func(ctx context.Context, evt *event.Event) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeOrderOnHold, 1, 1, 1, nil)))
	require.NoError(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeOrderResumed, 1, 1, 1, nil)))
	assert.Equal(t, int32(2), calls.Load())

	assert.Len(t, d.ListHandlers(event.TypeOrderOnHold), 1)
	assert.Len(t, d.ListHandlers(event.TypeOrderResumed), 1)
	assert.Empty(t, d.ListHandlers(event.TypeOrderReceived))
}

func TestDispatchAsync_OutlivesCallerContext(t *testing.T) {
	d := NewDispatcher()
	done := make(chan error, 1)

	d.Subscribe(event.TypeWorkSubmitted, func(ctx context.Context, evt *event.Event) error {
		time.Sleep(20 * time.Millisecond)
		done <- ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	d.DispatchAsync(ctx, event.NewEvent(event.TypeWorkSubmitted, 1, 1, 1, nil))
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "handler context must not inherit caller cancellation")
	case <-time.After(time.Second):
		t.Fatal("async handler never ran")
	}
	require.NoError(t, d.Close())
}

func TestDispatchAsync_HandlerTimeout(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger), WithHandlerTimeout(10*time.Millisecond))

	d.Subscribe(event.TypeOrderReclaimed, func(ctx context.Context, evt *event.Event) error {
		<-ctx.Done()
		return ctx.Err()
	})

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeOrderReclaimed, 1, 1, 1, nil))
	require.NoError(t, d.Close())

	assert.Equal(t, int64(1), d.Stats().Failed)
	assert.Equal(t, int64(0), d.Stats().InFlight)
	assert.Equal(t, 1, logger.ErrorCount())
}

func TestClose(t *testing.T) {
	t.Run("waits for async handlers to complete", func(t *testing.T) {
		d := NewDispatcher()
		var completed atomic.Bool

		d.Subscribe(event.TypeOrderAssigned, func(ctx context.Context, evt *event.Event) error {
			time.Sleep(50 * time.Millisecond)
			completed.Store(true)
			return nil
		})

		d.DispatchAsync(context.Background(), newAssigned())
		require.NoError(t, d.Close())
		assert.True(t, completed.Load())
	})

	t.Run("returns error on double close", func(t *testing.T) {
		d := NewDispatcher()
		require.NoError(t, d.Close())
		assert.Error(t, d.Close())
	})

	t.Run("rejects dispatches after close", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		var called atomic.Int32
		d.Subscribe(event.TypeOrderAssigned, func(ctx context.Context, evt *event.Event) error {
			called.Add(1)
			return nil
		})
		require.NoError(t, d.Close())

		d.DispatchAsync(context.Background(), newAssigned())
		assert.Error(t, d.Dispatch(context.Background(), newAssigned()))

		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, called.Load())
		assert.Equal(t, 1, logger.ErrorCount())
	})
}

func TestConcurrency(t *testing.T) {
	d := NewDispatcher()
	var called atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.SubscribeNamed(event.TypeOrderDelivered, fmt.Sprintf("handler-%d", id), func(ctx context.Context, evt *event.Event) error {
				called.Add(1)
				return nil
			})
		}(i)
	}
	wg.Wait()
	require.Len(t, d.ListHandlers(event.TypeOrderDelivered), 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), event.NewEvent(event.TypeOrderDelivered, 1, 1, 1, nil))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(100), called.Load())
	assert.Equal(t, int64(10), d.Stats().Dispatched)
}
