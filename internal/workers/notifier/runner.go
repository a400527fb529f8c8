package notifier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"uzimasmart/internal/domain"
)

// Outcome is the result of one post-commit task. Err is nil on success and a
// *domain.NotificationError otherwise.
type Outcome struct {
	Task string
	Err  error
	Took time.Duration
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Queue runs post-commit side effects on a fixed pool of workers. Tasks get
// their own timeout, detached from the request that submitted them.
type Queue struct {
	tasks     chan task
	timeout   time.Duration
	onOutcome func(Outcome)
	log       *log.Logger

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

type Options struct {
	Size    int
	Timeout time.Duration
	// OnOutcome observes every finished task. Defaults to logging failures.
	OnOutcome func(Outcome)
}

func New(opts Options, logger *log.Logger) *Queue {
	if opts.Size < 1 {
		opts.Size = 1
	}
	q := &Queue{
		tasks:     make(chan task, opts.Size),
		timeout:   opts.Timeout,
		onOutcome: opts.OnOutcome,
		log:       logger,
	}
	if q.onOutcome == nil {
		q.onOutcome = LogOutcome(logger)
	}
	return q
}

// Submit enqueues fn without blocking. A full or closed queue drops the task.
func (q *Queue) Submit(name string, fn func(ctx context.Context) error) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		q.log.Warn("notify task dropped: queue closed", "task", name)
		return false
	}
	select {
	case q.tasks <- task{name: name, fn: fn}:
		return true
	default:
		q.dropped.Add(1)
		q.log.Warn("notify task dropped: queue full", "task", name)
		return false
	}
}

// Run starts concurrency workers. ctx is the parent of every task context;
// cancel it only after Close has returned if queued work should finish.
func (q *Queue) Run(ctx context.Context, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		q.wg.Add(1)
		go func(idx int) {
			defer q.wg.Done()
			for t := range q.tasks {
				q.onOutcome(execute(ctx, t, q.timeout))
			}
			q.log.Debug("notify worker stopped", "worker", idx)
		}(i)
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Inline runs each task synchronously in Submit, with the same timeout and
// outcome handling as the worker pool. Used when NOTIFY_WORKERS=0 and in tests.
type Inline struct {
	Timeout   time.Duration
	OnOutcome func(Outcome)
}

func (in Inline) Submit(name string, fn func(ctx context.Context) error) bool {
	out := execute(context.Background(), task{name: name, fn: fn}, in.Timeout)
	if in.OnOutcome != nil {
		in.OnOutcome(out)
	}
	return true
}

func execute(parent context.Context, t task, timeout time.Duration) (out Outcome) {
	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}
	start := time.Now()
	out.Task = t.name
	defer func() {
		if r := recover(); r != nil {
			out.Err = &domain.NotificationError{Task: t.name, Err: panicError{r}}
		}
		out.Took = time.Since(start)
	}()
	if err := t.fn(ctx); err != nil {
		out.Err = &domain.NotificationError{Task: t.name, Err: err}
	}
	return out
}

// LogOutcome logs failed tasks at warn and successes at debug.
func LogOutcome(logger *log.Logger) func(Outcome) {
	return func(o Outcome) {
		if o.Err != nil {
			logger.Warn("notify task failed", "task", o.Task, "took", o.Took, "err", o.Err)
			return
		}
		logger.Debug("notify task done", "task", o.Task, "took", o.Took)
	}
}

type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.v) }
