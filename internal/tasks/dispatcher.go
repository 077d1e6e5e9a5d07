package tasks

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work scheduled to run after the triggering request's
// response has been sent. The caller never observes the result; errors go
// to the fault channel instead.
type Task struct {
	Name string
	Run  func() error
}

// Fault is one failed task invocation.
type Fault struct {
	Task string
	Err  error
}

// ErrQueueFull is returned by Submit when the dispatcher's queue has no room.
var ErrQueueFull = errors.New("task queue full")

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errors.New("dispatcher closed")

// Dispatcher runs submitted tasks on a fixed worker pool. Tasks may run
// concurrently with each other; no ordering or per-key serialization is
// guaranteed, even for two tasks touching the same user.
type Dispatcher struct {
	queue  chan Task
	faults chan Fault
	g      *errgroup.Group

	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts workers goroutines consuming a queue of queueSize.
func NewDispatcher(workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	d := &Dispatcher{
		queue:  make(chan Task, queueSize),
		faults: make(chan Fault, queueSize),
		g:      new(errgroup.Group),
	}
	for i := 0; i < workers; i++ {
		d.g.Go(d.work)
	}
	return d
}

// Submit enqueues a task without blocking the caller beyond queue admission.
func (d *Dispatcher) Submit(name string, run func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- Task{Name: name, Run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Faults exposes failed task invocations. Reading it is optional: every
// fault is also logged, and sends never block.
func (d *Dispatcher) Faults() <-chan Fault {
	return d.faults
}

// Close stops accepting tasks, drains the queue, and waits for in-flight
// tasks to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	_ = d.g.Wait()
	close(d.faults)
}

func (d *Dispatcher) work() error {
	for t := range d.queue {
		d.run(t)
	}
	return nil
}

func (d *Dispatcher) run(t Task) {
	defer func() {
		if r := recover(); r != nil {
			d.report(t.Name, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := t.Run(); err != nil {
		d.report(t.Name, err)
	}
}

func (d *Dispatcher) report(name string, err error) {
	log.Printf("background task failed: task=%s err=%v", name, err)
	select {
	case d.faults <- Fault{Task: name, Err: err}:
	default:
		// fault channel full; the log line above is the durable record
	}
}
