package metrics

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jonboulle/clockwork"
	wapc "github.com/wapc/wapc-guest-tinygo"

	sdk "github.com/beacon-project/sdk"
	"github.com/beacon-project/sdk/dispatch"
	"github.com/beacon-project/sdk/wire"
)

const (
	capabilityName = "metrics"

	fnTimespanCreate   = "timespan_create"
	fnTimespanDestroy  = "timespan_destroy"
	fnShouldRecord     = "should_record"
	fnTimespanSetStart = "timespan_set_start"
	fnTimespanSetStop  = "timespan_set_stop"
	fnTimespanCancel   = "timespan_cancel"
	fnTimespanSetRaw   = "timespan_set_raw"
	fnTimespanHasValue = "timespan_test_has_value"
	fnTimespanGetValue = "timespan_test_get_value"
)

var (
	// ErrInvalidMetricName indicates a metric name that does not match the supported format.
	ErrInvalidMetricName = errors.New("metric name is invalid")

	// ErrInvalidCategory indicates a metric category that does not match the supported format.
	ErrInvalidCategory = errors.New("metric category is invalid")

	// ErrNoPings indicates a metric configured without any ping to send in.
	ErrNoPings = errors.New("metric must send in at least one ping")

	// isMetricNameValid validates metric names using the same pattern as host callback validation.
	isMetricNameValid = regexp.MustCompile(`^[a-zA-Z0-9_:][a-zA-Z0-9_:]*$`)

	// isCategoryValid additionally permits dots, used to nest categories.
	isCategoryValid = regexp.MustCompile(`^[a-zA-Z0-9_:.][a-zA-Z0-9_:.]*$`)
)

// TimeUnit is the resolution a timespan's elapsed duration is reported in.
// The integer codes are part of the host contract.
type TimeUnit uint32

const (
	Nanosecond TimeUnit = iota
	Microsecond
	Millisecond
	Second
	Minute
	Hour
)

// String returns the host-facing name of the time unit.
func (u TimeUnit) String() string {
	switch u {
	case Nanosecond:
		return "nanosecond"
	case Microsecond:
		return "microsecond"
	case Millisecond:
		return "millisecond"
	case Second:
		return "second"
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	}
	return "unknown"
}

// Lifetime is the policy governing when a metric's stored value resets. The
// reset itself happens host-side; the codes only cross the boundary at
// creation and are part of the host contract.
type Lifetime uint32

const (
	// LifetimePing resets the value whenever the owning ping is collected.
	LifetimePing Lifetime = iota

	// LifetimeApplication resets the value when the process ends.
	LifetimeApplication

	// LifetimeUser persists the value across process runs.
	LifetimeUser
)

// HostCall defines the waPC host function signature used by metrics operations.
type HostCall func(string, string, string, []byte) ([]byte, error)

// Client defines the metrics capability interface.
type Client interface {
	// NewTimespan registers a timespan metric with the host and returns its handle.
	NewTimespan(opts TimespanOptions) (*Timespan, error)
}

// Config controls how a Client instance interacts with the host runtime.
type Config struct {
	// SDKConfig provides the runtime namespace used for host calls.
	SDKConfig sdk.RuntimeConfig

	// HostCall overrides the waPC host function used for metrics operations.
	HostCall HostCall

	// Queue overrides the serial dispatch queue mutating operations are
	// deferred onto. If nil, the process-wide default queue is used.
	Queue *dispatch.Queue

	// Clock overrides the steady clock used for timestamp capture. Mainly
	// useful with a fake clock in tests.
	Clock clockwork.Clock

	// Ready overrides the readiness gate. If nil, sdk.Initialized is used.
	Ready func() bool
}

// HostMetrics is the metrics capability client implementation.
type HostMetrics struct {
	runtime  sdk.RuntimeConfig
	hostCall HostCall
	queue    *dispatch.Queue
	clock    clockwork.Clock
	ready    func() bool
}

// TimespanOptions describes a timespan metric at registration time. All
// fields are fixed once the metric is created.
type TimespanOptions struct {
	// Category groups related metrics, dot-separated for nesting.
	Category string

	// Name identifies the metric within its category.
	Name string

	// SendInPings lists the pings this metric's value is bundled into, in
	// order. The first entry is the default ping for test queries.
	SendInPings []string

	// Lifetime governs when the stored value resets host-side.
	Lifetime Lifetime

	// Disabled excludes the metric from recording without removing the
	// instrumentation call sites.
	Disabled bool

	// Unit is the resolution elapsed durations are reported in.
	Unit TimeUnit
}

// Timespan is a handle for one timespan metric. It records an elapsed
// duration between a Start and Stop pair, or an explicit raw duration.
//
// All mutating operations are best-effort: they gate synchronously on the
// caller's goroutine, then defer the recording itself onto the dispatch
// queue. They never fail and never block past the enqueue.
type Timespan struct {
	handle      uint64
	sendInPings []string
	unit        TimeUnit
	namespace   string
	hostCall    HostCall
	queue       *dispatch.Queue
	clock       clockwork.Clock
	ready       func() bool

	// epoch anchors the monotonic timestamps sent across the boundary.
	// Only differences between timestamps are ever stored, so the anchor
	// instant is arbitrary.
	epoch time.Time
}

// Ensure HostMetrics satisfies the Client interface at compile time.
var _ Client = (*HostMetrics)(nil)

// New creates a metrics client with namespace, host-call, queue, and clock defaults.
func New(config Config) (*HostMetrics, error) {
	runtime := config.SDKConfig
	if runtime.Namespace == "" {
		runtime.Namespace = sdk.DefaultNamespace
	}

	hostCall := config.HostCall
	if hostCall == nil {
		hostCall = wapc.HostCall
	}

	queue := config.Queue
	if queue == nil {
		queue = dispatch.Default()
	}

	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ready := config.Ready
	if ready == nil {
		ready = sdk.Initialized
	}

	return &HostMetrics{runtime: runtime, hostCall: hostCall, queue: queue, clock: clock, ready: ready}, nil
}

// NewTimespan registers a timespan metric with the host and returns its
// handle. Registration is synchronous; the returned Timespan is bound to a
// live storage slot and ready to record.
func (c *HostMetrics) NewTimespan(opts TimespanOptions) (*Timespan, error) {
	if !isCategoryValid.MatchString(opts.Category) {
		return nil, ErrInvalidCategory
	}
	if !isMetricNameValid.MatchString(opts.Name) {
		return nil, ErrInvalidMetricName
	}
	if len(opts.SendInPings) == 0 {
		return nil, ErrNoPings
	}

	req := wire.TimespanCreate{
		Category:    opts.Category,
		Name:        opts.Name,
		SendInPings: opts.SendInPings,
		Lifetime:    uint32(opts.Lifetime),
		Disabled:    opts.Disabled,
		TimeUnit:    uint32(opts.Unit),
	}

	resp, err := c.hostCall(c.runtime.Namespace, capabilityName, fnTimespanCreate, req.Marshal())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sdk.ErrHostCall, err)
	}

	var handle wire.HandleResponse
	if err := handle.Unmarshal(resp); err != nil {
		return nil, fmt.Errorf("%w: %v", sdk.ErrHostResponseInvalid, err)
	}
	if handle.Handle == 0 {
		return nil, fmt.Errorf("%w: host returned the unbound sentinel handle", sdk.ErrHostResponseInvalid)
	}

	pings := make([]string, len(opts.SendInPings))
	copy(pings, opts.SendInPings)

	return &Timespan{
		handle:      handle.Handle,
		sendInPings: pings,
		unit:        opts.Unit,
		namespace:   c.runtime.Namespace,
		hostCall:    c.hostCall,
		queue:       c.queue,
		clock:       c.clock,
		ready:       c.ready,
		epoch:       c.clock.Now(),
	}, nil
}

// Start begins tracking an elapsed duration. The timestamp is captured on
// the calling goroutine before the operation is enqueued, so it reflects the
// instant of the call rather than the instant the queue drains. If the timer
// is already running the host keeps the original start and counts an
// invalid-state error.
func (t *Timespan) Start() {
	if !t.shouldRecord() {
		return
	}

	payload := (&wire.TimestampRequest{Handle: t.handle, TimestampNanos: t.nowNanos()}).Marshal()
	t.queue.Launch(func() {
		_, _ = t.hostCall(t.namespace, capabilityName, fnTimespanSetStart, payload)
	})
}

// Stop ends tracking and commits the elapsed duration, converted to the
// metric's time unit. If no timer is running the host records nothing and
// counts an invalid-state error.
func (t *Timespan) Stop() {
	if !t.shouldRecord() {
		return
	}

	payload := (&wire.TimestampRequest{Handle: t.handle, TimestampNanos: t.nowNanos()}).Marshal()
	t.queue.Launch(func() {
		_, _ = t.hostCall(t.namespace, capabilityName, fnTimespanSetStop, payload)
	})
}

// Cancel abandons a running timer without recording a value. Cancelling when
// no timer is running is a no-op and counts no error.
func (t *Timespan) Cancel() {
	if !t.shouldRecord() {
		return
	}

	payload := (&wire.HandleRequest{Handle: t.handle}).Marshal()
	t.queue.Launch(func() {
		_, _ = t.hostCall(t.namespace, capabilityName, fnTimespanCancel, payload)
	})
}

// SetRawNanos records an explicit duration measured outside the Start/Stop
// pair. Raw values are advisory: the host silently refuses to overwrite a
// running timer or a value the structured timer already committed.
func (t *Timespan) SetRawNanos(nanos int64) {
	if !t.shouldRecord() {
		return
	}

	payload := (&wire.RawRequest{Handle: t.handle, Nanos: nanos}).Marshal()
	t.queue.Launch(func() {
		_, _ = t.hostCall(t.namespace, capabilityName, fnTimespanSetRaw, payload)
	})
}

// Unit returns the resolution this metric's recorded durations are
// reported in.
func (t *Timespan) Unit() TimeUnit { return t.unit }

// Time runs fn between a Start/Stop pair. If fn panics the measurement is
// cancelled before the panic propagates, so no partial value is committed.
func (t *Timespan) Time(fn func()) {
	t.Start()

	committed := false
	defer func() {
		if !committed {
			t.Cancel()
		}
	}()

	fn()

	committed = true
	t.Stop()
}

// Destroy releases the metric's host-side storage slot. It is synchronous,
// safe to call on a metric that was never recorded to, and idempotent: the
// handle is invalidated so a second call is a no-op.
func (t *Timespan) Destroy() {
	if t.handle == 0 {
		return
	}

	payload := (&wire.HandleRequest{Handle: t.handle}).Marshal()
	_, _ = t.hostCall(t.namespace, capabilityName, fnTimespanDestroy, payload)
	t.handle = 0
}

// TestHasValue reports whether a value is stored for the given ping,
// defaulting to the metric's first ping. It may only be called with the
// dispatch queue in test mode and flushes the queue before querying.
func (t *Timespan) TestHasValue(pings ...string) bool {
	resp, err := t.testQuery(fnTimespanHasValue, pings)
	if err != nil {
		return false
	}

	var b wire.BoolResponse
	if err := b.Unmarshal(resp); err != nil {
		return false
	}
	return b.Value
}

// TestGetValue returns the stored value for the given ping in the metric's
// configured time unit, defaulting to the metric's first ping. It fails with
// sdk.ErrValueNotFound when nothing is stored. It may only be called with
// the dispatch queue in test mode and flushes the queue before querying.
func (t *Timespan) TestGetValue(pings ...string) (int64, error) {
	resp, err := t.testQuery(fnTimespanGetValue, pings)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", sdk.ErrValueNotFound, err)
	}

	var v wire.ValueResponse
	if err := v.Unmarshal(resp); err != nil {
		return 0, fmt.Errorf("%w: %v", sdk.ErrHostResponseInvalid, err)
	}
	return v.Nanos, nil
}

// shouldRecord gates a mutating operation. It runs synchronously on the
// caller's goroutine so that nothing is enqueued, and no timestamp captured,
// for an operation that will not record.
func (t *Timespan) shouldRecord() bool {
	if t.handle == 0 || !t.ready() {
		return false
	}

	payload := (&wire.HandleRequest{Handle: t.handle}).Marshal()
	resp, err := t.hostCall(t.namespace, capabilityName, fnShouldRecord, payload)
	if err != nil {
		return false
	}

	var b wire.BoolResponse
	if err := b.Unmarshal(resp); err != nil {
		return false
	}
	return b.Value
}

// testQuery enforces the test-accessor contract: test mode only, and a full
// queue drain before the synchronous host query.
func (t *Timespan) testQuery(fn string, pings []string) ([]byte, error) {
	if !t.queue.TestMode() {
		panic("metrics: test accessors may only be used with the dispatch queue in test mode")
	}

	ping := t.sendInPings[0]
	if len(pings) > 0 {
		ping = pings[0]
	}

	t.queue.Flush()

	payload := (&wire.QueryRequest{Handle: t.handle, Ping: ping}).Marshal()
	return t.hostCall(t.namespace, capabilityName, fn, payload)
}

// nowNanos reports nanoseconds elapsed on the steady clock since the
// metric's creation.
func (t *Timespan) nowNanos() int64 {
	return t.clock.Since(t.epoch).Nanoseconds()
}
