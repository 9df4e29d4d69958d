package dispatch

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Logger receives reports of recovered task panics. The logging capability
// client satisfies this interface.
type Logger interface {
	Error(message string)
}

// Config provides configuration options for queue creation.
type Config struct {
	// Logger receives reports of recovered task panics. If nil, panics are
	// still recovered but not reported.
	Logger Logger
}

// Queue is a serial task queue. Tasks launched onto it execute one at a
// time, on a single worker goroutine, in exactly the order they were
// launched, regardless of how many goroutines are launching.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []func()
	closed bool

	// done is closed once the worker goroutine has exited.
	done chan struct{}

	// logger is guarded by mu; the worker snapshots it per task.
	logger Logger

	testMode atomic.Bool
}

var (
	defaultQueue     *Queue
	defaultQueueOnce sync.Once
)

// Default returns the process-wide queue shared by all metric types that do
// not configure their own. Sharing one queue extends the per-metric ordering
// guarantee to a total order across metrics.
func Default() *Queue {
	defaultQueueOnce.Do(func() {
		defaultQueue = New(Config{})
	})
	return defaultQueue
}

// New creates a queue and starts its worker goroutine.
func New(config Config) *Queue {
	q := &Queue{
		logger: config.Logger,
		done:   make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)

	go q.run()

	return q
}

// Launch appends task to the queue. It never blocks past the append and
// never fails; tasks launched after Shutdown are dropped. The task must
// capture everything it needs by value at launch time.
func (q *Queue) Launch(task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.tasks = append(q.tasks, task)
	q.cond.Signal()
}

// Flush blocks until every task launched before the call has executed. It is
// the drain barrier test accessors rely on before querying metric state.
func (q *Queue) Flush() {
	drained := make(chan struct{})

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.tasks = append(q.tasks, func() { close(drained) })
	q.cond.Signal()
	q.mu.Unlock()

	<-drained
}

// Shutdown drains the queue and stops the worker goroutine. Subsequent
// Launch calls are dropped. Shutdown is idempotent.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()

	<-q.done
}

// SetLogger installs logger as the queue's panic reporter. The SDK uses it
// to attach the host logging client to the default queue at initialization.
func (q *Queue) SetLogger(logger Logger) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.logger = logger
}

// Logger returns the queue's current panic reporter, nil when none is set.
func (q *Queue) Logger() Logger {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.logger
}

// SetTestMode marks the queue as running under a test harness, which permits
// the metric test accessors to query state after a Flush barrier.
func (q *Queue) SetTestMode(enabled bool) {
	q.testMode.Store(enabled)
}

// TestMode reports whether the queue is running under a test harness.
func (q *Queue) TestMode() bool {
	return q.testMode.Load()
}

// run is the single consumer. It drains tasks strictly in launch order and
// exits only once the queue is closed and empty.
func (q *Queue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}

		if len(q.tasks) == 0 && q.closed {
			q.mu.Unlock()
			return
		}

		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		logger := q.logger
		q.mu.Unlock()

		invoke(task, logger)
	}
}

// invoke runs one task, absorbing panics so instrumentation can never take
// down the worker or the application.
func invoke(task func(), logger Logger) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error(fmt.Sprintf("dispatch: recovered panic in queued task: %v", r))
		}
	}()

	task()
}
