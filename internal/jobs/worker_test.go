package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTask is a mock implementation of Task
type MockTask struct {
	mock.Mock
}

func (m *MockTask) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockSweeper is a mock implementation of Sweeper
type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) SweepRetention(ctx context.Context, now time.Time, days int) (int64, error) {
	args := m.Called(ctx, now, days)
	return args.Get(0).(int64), args.Error(1)
}

func TestWorker_StartStop(t *testing.T) {
	mockTask := new(MockTask)
	mockTask.On("Run", mock.Anything).Return(nil)

	worker := NewWorker("test", mockTask, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(180 * time.Millisecond)
	worker.Stop()
	wg.Wait()

	assert.GreaterOrEqual(t, len(mockTask.Calls), 2)
}

func TestWorker_ContextCancellation(t *testing.T) {
	mockTask := new(MockTask)
	mockTask.On("Run", mock.Anything).Return(nil)

	worker := NewWorker("test", mockTask, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Start(ctx)

	time.Sleep(80 * time.Millisecond)
	cancel()

	select {
	case <-worker.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestWorker_ErrorsDoNotStopLoop(t *testing.T) {
	var calls atomic.Int32
	task := TaskFunc(func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("screen locked")
	})

	worker := NewWorker("capture", task, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go worker.Start(ctx)

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 10*time.Millisecond)
	cancel()
	<-worker.Done()
}

func TestWorker_RunImmediately(t *testing.T) {
	ran := make(chan struct{}, 1)
	task := TaskFunc(func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})

	worker := NewWorker("sync", task, time.Hour).RunImmediately()
	ctx, cancel := context.WithCancel(context.Background())
	go worker.Start(ctx)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task did not run before the first tick")
	}
	cancel()
	<-worker.Done()
}

func TestWorker_CyclesDoNotOverlap(t *testing.T) {
	var running, maxRunning atomic.Int32
	task := TaskFunc(func(ctx context.Context) error {
		n := running.Add(1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		time.Sleep(30 * time.Millisecond)
		running.Add(-1)
		return nil
	})

	worker := NewWorker("consolidate", task, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go worker.Start(ctx)

	time.Sleep(150 * time.Millisecond)
	cancel()
	<-worker.Done()

	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestRetentionScheduler_Sweep(t *testing.T) {
	now := time.Date(2024, 5, 20, 3, 0, 0, 0, time.Local)
	sweeper := new(MockSweeper)
	sweeper.On("SweepRetention", mock.Anything, now, 7).Return(int64(4), nil)

	r, err := NewRetentionScheduler(sweeper, "0 3 * * *", 7)
	require.NoError(t, err)
	r.now = func() time.Time { return now }

	n, err := r.Sweep(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	sweeper.AssertExpectations(t)
}

func TestRetentionScheduler_SweepError(t *testing.T) {
	sweeper := new(MockSweeper)
	sweeper.On("SweepRetention", mock.Anything, mock.Anything, 7).Return(int64(0), errors.New("database is locked"))

	r, err := NewRetentionScheduler(sweeper, "0 3 * * *", 7)
	require.NoError(t, err)

	_, err = r.Sweep(context.Background())
	assert.ErrorContains(t, err, "database is locked")
}

func TestRetentionScheduler_StartStopsOnCancel(t *testing.T) {
	r, err := NewRetentionScheduler(new(MockSweeper), "0 3 * * *", 7)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRetentionScheduler_InvalidCron(t *testing.T) {
	r, err := NewRetentionScheduler(new(MockSweeper), "not a cron", 7)
	require.NoError(t, err)

	err = r.Start(context.Background())
	assert.ErrorContains(t, err, "failed to create retention job")
}
