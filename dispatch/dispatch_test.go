package dispatch

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

// recordingLogger captures panic reports for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) Error(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, message)
}

func (l *recordingLogger) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func TestLaunchOrder(t *testing.T) {
	t.Parallel()

	q := New(Config{})
	defer q.Shutdown()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		q.Launch(func() { got = append(got, i) })
	}

	q.Flush()

	if len(got) != 100 {
		t.Fatalf("expected 100 tasks to run, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task order violated at index %d: got %d", i, v)
		}
	}
}

func TestFlushIsABarrier(t *testing.T) {
	t.Parallel()

	q := New(Config{})
	defer q.Shutdown()

	ran := 0
	for i := 0; i < 50; i++ {
		q.Launch(func() { ran++ })
	}

	q.Flush()

	if ran != 50 {
		t.Fatalf("expected every launched task to have run before Flush returned, got %d", ran)
	}

	// A flush of an idle queue returns promptly as well.
	q.Flush()
}

func TestPanicRecovery(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	q := New(Config{Logger: logger})
	defer q.Shutdown()

	q.Launch(func() { panic("instrumentation bug") })

	survived := false
	q.Launch(func() { survived = true })
	q.Flush()

	if !survived {
		t.Fatal("expected the worker to survive a panicking task")
	}

	messages := logger.all()
	if len(messages) != 1 {
		t.Fatalf("expected one panic report, got %d", len(messages))
	}
	if !strings.Contains(messages[0], "instrumentation bug") {
		t.Fatalf("panic report missing panic value: %q", messages[0])
	}
}

func TestSetLogger(t *testing.T) {
	t.Parallel()

	q := New(Config{})
	defer q.Shutdown()

	if q.Logger() != nil {
		t.Fatal("expected no logger on a plain queue")
	}

	logger := &recordingLogger{}
	q.SetLogger(logger)

	if q.Logger() != logger {
		t.Fatal("expected Logger to return the installed logger")
	}

	q.Launch(func() { panic("late-wired") })
	q.Flush()

	messages := logger.all()
	if len(messages) != 1 || !strings.Contains(messages[0], "late-wired") {
		t.Fatalf("expected the installed logger to receive the panic report, got %v", messages)
	}
}

func TestPanicRecoveryWithoutLogger(t *testing.T) {
	t.Parallel()

	q := New(Config{})
	defer q.Shutdown()

	q.Launch(func() { panic("silent") })
	q.Flush()
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	q := New(Config{})

	ran := 0
	for i := 0; i < 10; i++ {
		q.Launch(func() { ran++ })
	}

	q.Shutdown()

	if ran != 10 {
		t.Fatalf("expected Shutdown to drain pending tasks, got %d of 10", ran)
	}

	// Launches after shutdown are dropped rather than queued or panicking.
	q.Launch(func() { ran++ })
	q.Shutdown()

	if ran != 10 {
		t.Fatalf("expected post-shutdown launches to be dropped, got %d", ran)
	}
}

func TestConcurrentLaunch(t *testing.T) {
	t.Parallel()

	q := New(Config{})
	defer q.Shutdown()

	const producers = 8
	const perProducer = 200

	counts := make(map[int]int)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Launch(func() { counts[p]++ })
			}
		}(p)
	}
	wg.Wait()
	q.Flush()

	for p := 0; p < producers; p++ {
		if counts[p] != perProducer {
			t.Fatalf("producer %d: expected %d tasks run, got %d", p, perProducer, counts[p])
		}
	}
}

func TestTestMode(t *testing.T) {
	t.Parallel()

	q := New(Config{})
	defer q.Shutdown()

	if q.TestMode() {
		t.Fatal("expected test mode off by default")
	}

	q.SetTestMode(true)
	if !q.TestMode() {
		t.Fatal("expected test mode on after SetTestMode(true)")
	}

	q.SetTestMode(false)
	if q.TestMode() {
		t.Fatal("expected test mode off after SetTestMode(false)")
	}
}

func TestDefaultIsShared(t *testing.T) {
	t.Parallel()

	if Default() != Default() {
		t.Fatal("expected Default to return the process-wide queue")
	}
}

func ExampleQueue_Flush() {
	q := New(Config{})
	defer q.Shutdown()

	q.Launch(func() { fmt.Println("first") })
	q.Launch(func() { fmt.Println("second") })
	q.Flush()

	// Output:
	// first
	// second
}
