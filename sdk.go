package sdk

import (
	"sync/atomic"

	"github.com/beacon-project/sdk/dispatch"
	"github.com/beacon-project/sdk/logging"
)

// DefaultNamespace is used when no explicit namespace is provided.
const DefaultNamespace = "beacon"

// initialized gates all metric recording. Operations invoked before New
// completes are dropped without side effects.
var initialized atomic.Bool

// Config provides configuration options for SDK initialization.
type Config struct {
	// Namespace controls the function namespace to use for host callbacks.
	// If empty, DefaultNamespace is used.
	Namespace string

	// Queue overrides the dispatch queue that metric operations are
	// serialized onto. If nil, the process-wide default queue is used.
	Queue *dispatch.Queue
}

// RuntimeConfig carries configuration that is used during creation of SDK components.
type RuntimeConfig struct {
	// Namespace is the function namespace used to scope host interactions.
	Namespace string
}

// SDK represents the initialized telemetry runtime.
type SDK struct {
	// runtime holds the current runtime configuration snapshot.
	runtime RuntimeConfig

	// queue is the serial dispatch queue bound at initialization.
	queue *dispatch.Queue
}

// New initializes the telemetry system and marks it ready for recording.
// Metric operations invoked before New returns are silently dropped.
func New(config Config) (*SDK, error) {
	// Create runtime configuration with defaults
	cfg := RuntimeConfig{Namespace: DefaultNamespace}

	// Override defaults with provided configuration
	if config.Namespace != "" {
		cfg.Namespace = config.Namespace
	}

	queue := config.Queue
	if queue == nil {
		queue = dispatch.Default()

		// Recovered task panics on the default queue are reported through
		// the host logging capability. Callers supplying their own queue
		// keep full control of its logger.
		if logger, logErr := logging.New(logging.Config{Namespace: cfg.Namespace}); logErr == nil {
			queue.SetLogger(logger)
		}
	}

	s := &SDK{
		runtime: cfg,
		queue:   queue,
	}

	initialized.Store(true)

	return s, nil
}

// Shutdown marks the telemetry system as no longer recording and waits for
// every operation already enqueued on the dispatch queue to complete.
func (s *SDK) Shutdown() {
	initialized.Store(false)
	s.queue.Flush()
}

// Config returns the current runtime configuration snapshot.
func (s *SDK) Config() RuntimeConfig { return s.runtime }

// Initialized reports whether the telemetry system has completed setup.
// Metric types consult this before recording.
func Initialized() bool { return initialized.Load() }
