// Package dispatcher runs fire-and-forget work after the triggering request
// has returned. Failed or panicking tasks are logged and dropped.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("dispatcher_queue_full")
	ErrStopped   = errors.New("dispatcher_stopped")
)

// Task is one unit of background work. The context is owned by the task run
// and cancelled when it returns.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Submitter is what request paths depend on.
type Submitter interface {
	Submit(task Task) error
}

type Dispatcher struct {
	log   *zap.Logger
	cfg   Config
	queue chan Task

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func New(cfg Config, log *zap.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		log:   log.Named("dispatcher"),
		cfg:   cfg,
		queue: make(chan Task, cfg.QueueSize),
	}
}

// Submit enqueues without blocking.
func (d *Dispatcher) Submit(task Task) error {
	if task.Run == nil {
		return errors.New("dispatcher task has no body")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers; they exit once Stop drains the queue.
func (d *Dispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop refuses new work and waits for queued tasks, bounded by ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for task := range d.queue {
		d.RunOnce(task)
	}
}

// RunOnce executes a task inline with the same recovery and logging as the
// workers.
func (d *Dispatcher) RunOnce(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	log := d.log.With(zap.String("task", task.Name))
	defer func() {
		if r := recover(); r != nil {
			log.Error("background task panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	if err := task.Run(ctx); err != nil {
		log.Warn("background task failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return
	}
	log.Debug("background task done", zap.Duration("elapsed", time.Since(start)))
}
