package jobs

import (
	"context"
	"log"
	"time"

	"github.com/cloo-solutions/remind/internal/telemetry"
)

// Task is one cycle of a periodic loop.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Run(ctx context.Context) error { return f(ctx) }

// Worker runs a task on a fixed interval. Cycles never overlap: a cycle that
// overruns the interval delays the next tick instead of running concurrently.
type Worker struct {
	name         string
	task         Task
	pollInterval time.Duration
	immediate    bool
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(name string, task Task, pollInterval time.Duration) *Worker {
	return &Worker{
		name:         name,
		task:         task,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// RunImmediately makes Start run one cycle before the first tick.
func (w *Worker) RunImmediately() *Worker {
	w.immediate = true
	return w
}

// Start runs the polling loop until ctx is cancelled or Stop is called. The
// loop checks for shutdown only between cycles, so an in-flight cycle finishes.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("%s: worker started with poll interval %v", w.name, w.pollInterval)

	if w.immediate {
		w.runOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s: worker stopped: context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("%s: worker stopped: stop signal received", w.name)
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if err := w.task.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("%s: cycle failed: %v", w.name, err)
		telemetry.CaptureError(ctx, err)
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Printf("%s: worker shutdown complete", w.name)
}

// Done is closed once Start has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.doneChan
}
