package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// ErrorResult is returned for jobs that never ran or panicked
type ErrorResult struct {
	Err error
}

// GetError returns the wrapped error
func (r *ErrorResult) GetError() error {
	return r.Err
}

// PanicError carries a recovered job panic
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// Future is the pending result of one submitted job
type Future struct {
	done   chan struct{}
	once   sync.Once
	result Result
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(r Result) {
	f.once.Do(func() {
		f.result = r
		close(f.done)
	})
}

// Wait blocks until the job has finished and returns its result
func (f *Future) Wait() Result {
	<-f.done
	return f.result
}

// Done is closed once the result is available
func (f *Future) Done() <-chan struct{} {
	return f.done
}

type task struct {
	job    Job
	future *Future
}

// Pool runs jobs on a fixed number of workers. Results are handed back per job
// through a Future and Wait returns them in submission order, whatever order the
// jobs finish in.
type Pool struct {
	workers    int
	jobQueue   chan task
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc

	gate      sync.RWMutex // held shared by Submit, exclusively when closing
	closed    bool
	closeOnce sync.Once

	mu      sync.Mutex
	futures []*Future
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	return NewPoolWithContext(context.Background(), workers)
}

// NewPoolWithContext creates a pool whose jobs see a context derived from ctx
func NewPoolWithContext(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan task, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Workers returns the fixed worker count
func (p *Pool) Workers() int {
	return p.workers
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.jobQueue:
			if !ok {
				return
			}
			t.future.resolve(p.run(t.job))
		}
	}
}

// run executes one job, turning a panic into a PanicError result
func (p *Pool) run(job Job) (res Result) {
	if err := p.ctx.Err(); err != nil {
		return &ErrorResult{Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			res = &ErrorResult{Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()

	res = job.Execute(p.ctx)
	if res == nil {
		res = &ErrorResult{}
	}
	return res
}

// Submit queues a job and returns its future. It blocks while the queue is full.
// After Wait or Shutdown the future resolves immediately with an error.
func (p *Pool) Submit(job Job) *Future {
	f := newFuture()

	p.mu.Lock()
	p.futures = append(p.futures, f)
	p.mu.Unlock()

	p.gate.RLock()
	defer p.gate.RUnlock()

	if p.closed {
		f.resolve(&ErrorResult{Err: context.Canceled})
		return f
	}

	select {
	case <-p.ctx.Done():
		f.resolve(&ErrorResult{Err: p.ctx.Err()})
	case p.jobQueue <- task{job: job, future: f}:
	}
	return f
}

// Wait closes the pool to new jobs, waits for queued jobs to finish and
// returns every result in submission order
func (p *Pool) Wait() []Result {
	p.closeQueue()
	p.wg.Wait()
	p.drain()

	p.mu.Lock()
	futures := p.futures
	p.mu.Unlock()

	results := make([]Result, len(futures))
	for i, f := range futures {
		results[i] = f.Wait()
	}
	return results
}

// Shutdown shuts down the worker pool immediately. Jobs still queued resolve
// with context.Canceled; running jobs see their context cancelled.
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.closeQueue()
	p.wg.Wait()
	p.drain()
}

func (p *Pool) closeQueue() {
	p.gate.Lock()
	defer p.gate.Unlock()

	p.closed = true
	p.closeOnce.Do(func() {
		close(p.jobQueue)
	})
}

// drain resolves tasks the workers left behind after cancellation
func (p *Pool) drain() {
	for t := range p.jobQueue {
		t.future.resolve(&ErrorResult{Err: context.Canceled})
	}
}
