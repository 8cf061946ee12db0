package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/order-workflow/internal/application/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSweeps struct {
	mu       sync.Mutex
	sweeps   int
	resets   int
	lastDays int
	err      error
}

func (f *fakeSweeps) FlagInactive(ctx context.Context, days int) (*service.SweepResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	f.lastDays = days
	if f.err != nil {
		return nil, f.err
	}
	return &service.SweepResult{Flagged: []int64{7}, Reclaimed: 2}, nil
}

func (f *fakeSweeps) ResetDailyCounters(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return 3, nil
}

func (f *fakeSweeps) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

func TestInactivityWorker_RunsOnInterval(t *testing.T) {
	sweeps := &fakeSweeps{}
	w := NewInactivityWorker(InactivityConfig{Interval: 5 * time.Millisecond, InactivityDays: 9}, sweeps, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "double start")

	assert.Eventually(t, func() bool { return sweeps.sweepCount() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	after := sweeps.sweepCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, sweeps.sweepCount(), "no runs after Stop returns")
	assert.Equal(t, 9, sweeps.lastDays)

	runs, lastErr := w.Stats()
	assert.Equal(t, after, runs)
	assert.NoError(t, lastErr)
}

func TestInactivityWorker_KeepsRunningAfterFailure(t *testing.T) {
	sweeps := &fakeSweeps{err: errors.New("database is locked")}
	w := NewInactivityWorker(InactivityConfig{Interval: 5 * time.Millisecond}, sweeps, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return sweeps.sweepCount() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	_, lastErr := w.Stats()
	assert.EqualError(t, lastErr, "database is locked")
}

func TestUntilMidnightUTC(t *testing.T) {
	now := time.Date(2026, 10, 15, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, 30*time.Minute, untilMidnightUTC(now))

	local := time.Date(2026, 12, 31, 20, 0, 0, 0, time.FixedZone("X", -5*3600))
	assert.Equal(t, 23*time.Hour, untilMidnightUTC(local))
}

func TestDailyResetWorker_Name(t *testing.T) {
	w := NewDailyResetWorker(&fakeSweeps{}, zap.NewNop())
	assert.Equal(t, "DailyResetWorker", w.Name())
	assert.NoError(t, w.Stop(), "stopping an idle worker is a no-op")
}

type recordingWorker struct {
	name     string
	startErr error
	log      *[]string
}

func (w *recordingWorker) Name() string { return w.name }

func (w *recordingWorker) Start(ctx context.Context) error {
	*w.log = append(*w.log, "start "+w.name)
	return w.startErr
}

func (w *recordingWorker) Stop() error {
	*w.log = append(*w.log, "stop "+w.name)
	return nil
}

func TestManager_Lifecycle(t *testing.T) {
	var log []string
	m := NewManager(zap.NewNop())
	m.Register(&recordingWorker{name: "a", log: &log})
	m.Register(&recordingWorker{name: "broken", startErr: errors.New("boom"), log: &log})
	m.Register(&recordingWorker{name: "b", log: &log})
	assert.Equal(t, 3, m.Count())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	require.NoError(t, m.StopAll())

	assert.Equal(t, []string{"start a", "start broken", "start b", "stop b", "stop a"}, log)
}
