package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueFull is returned when the worker queue cannot take another task.
var ErrQueueFull = errors.New("audio: task queue full")

// Task is a handle on one asynchronous backend operation. Gen is the
// generation of the state that issued it; completions compare it with the
// current generation and drop stale results.
type Task struct {
	Gen uint64

	done chan struct{}
	err  error
}

func newTask(gen uint64) *Task {
	return &Task{Gen: gen, done: make(chan struct{})}
}

// Done is closed when the task has completed.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until completion and reports whether the operation succeeded.
func (t *Task) Wait() bool {
	<-t.done
	return t.err == nil
}

// Err is the operation's error once Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

type job struct {
	task *Task
	run  func(ctx context.Context) error
	then func(err error)
}

// runner executes backend operations on a fixed set of workers so slow
// decoding or output never reaches the caller.
type runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan job
	wg     sync.WaitGroup
	busy   sync.WaitGroup
	closed atomic.Bool
	mu     sync.RWMutex
}

func newRunner(workers, queue int) *runner {
	if workers <= 0 {
		workers = 2
	}
	if queue <= 0 {
		queue = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &runner{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan job, queue),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	return r
}

func (r *runner) work() {
	defer r.wg.Done()
	for j := range r.jobs {
		err := r.ctx.Err()
		if err == nil {
			err = r.run(j)
		}
		if j.then != nil {
			j.then(err)
		}
		j.task.finish(err)
		r.busy.Done()
	}
}

func (r *runner) run(j job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.New("audio: backend panic")
		}
	}()
	return j.run(r.ctx)
}

// submit queues fn without blocking. The task completes with ErrQueueFull
// when the queue is full or the runner is closed.
func (r *runner) submit(gen uint64, fn func(ctx context.Context) error, then func(err error)) *Task {
	t := newTask(gen)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed.Load() {
		t.finish(ErrQueueFull)
		return t
	}

	r.busy.Add(1)
	select {
	case r.jobs <- job{task: t, run: fn, then: then}:
	default:
		r.busy.Done()
		t.finish(ErrQueueFull)
	}
	return t
}

// flush waits for every queued task to complete.
func (r *runner) flush() {
	r.busy.Wait()
}

func (r *runner) close() {
	r.mu.Lock()
	if r.closed.Swap(true) {
		r.mu.Unlock()
		return
	}
	close(r.jobs)
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
