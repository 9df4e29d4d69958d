package coremock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/beacon-project/sdk/wire"
)

// Function names understood by the mock core. The host side of the contract
// owns these; they mirror what the metrics client sends.
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

// ErrorKindInvalidState is counted when a timer operation arrives in a state
// it is not valid for (double start, stop without start).
const ErrorKindInvalidState = "invalid_state"

var (
	// ErrUnexpectedNamespace is returned when the namespace is not as expected.
	ErrUnexpectedNamespace = errors.New("unexpected namespace")

	// ErrUnexpectedCapability is returned when the capability is not the metrics capability.
	ErrUnexpectedCapability = errors.New("unexpected capability")

	// ErrUnknownFunction is returned for a function name outside the contract.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrUnknownHandle is returned when an operation addresses a handle with no slot.
	ErrUnknownHandle = errors.New("unknown metric handle")

	// ErrNoPings is returned when a metric is registered without any ping.
	ErrNoPings = errors.New("metric must send in at least one ping")

	// ErrNoValue is returned by the get-value query when nothing is stored.
	ErrNoValue = errors.New("no value stored")

	// ErrOperationFailed is returned when Fail is set without a custom error.
	ErrOperationFailed = errors.New("operation failed")
)

// Config represents the configuration for creating a Core instance.
type Config struct {
	// ExpectedNamespace defines the namespace expected in host calls. Leave
	// blank for a wildcard.
	ExpectedNamespace string

	// Error is the error to return if the mock is configured to fail.
	Error error

	// Fail indicates whether the mock should return an error for every call.
	Fail bool
}

// Core simulates the host-side metrics core: metric slot storage, the
// timespan state machine, and diagnostic error counting. It is safe for
// concurrent use, although the dispatch queue normally serializes all
// mutating calls onto one goroutine anyway.
type Core struct {
	// ExpectedNamespace defines the namespace expected in host calls.
	ExpectedNamespace string

	// Error is the error to return if the mock is configured to fail.
	Error error

	// Fail indicates whether the mock should return an error for every call.
	Fail bool

	mu            sync.Mutex
	nextHandle    uint64
	slots         map[uint64]*slot
	errorCounts   map[errorKey]int
	uploadEnabled bool
	destroyCount  int
}

// slot is one metric's storage: its registration metadata, the running
// timer's start timestamp if any, and the committed value per ping.
type slot struct {
	meta       wire.TimespanCreate
	startNanos *int64
	values     map[string]int64
}

type errorKey struct {
	category string
	name     string
	kind     string
}

// New creates a mock core based on the provided Config. Upload starts
// enabled.
func New(config Config) (*Core, error) {
	return &Core{
		ExpectedNamespace: config.ExpectedNamespace,
		Error:             config.Error,
		Fail:              config.Fail,
		slots:             make(map[uint64]*slot),
		errorCounts:       make(map[errorKey]int),
		uploadEnabled:     true,
	}, nil
}

// HostCall implements the metrics host contract against in-memory state. It
// has the waPC host call signature so it can be injected directly into the
// metrics client.
func (c *Core) HostCall(namespace, capability, function string, payload []byte) ([]byte, error) {
	// Return user-defined error if Fail is set
	if c.Fail && c.Error != nil {
		return nil, c.Error
	}

	// Return default error if Fail is set but no custom error is provided
	if c.Fail {
		return nil, ErrOperationFailed
	}

	// Validate namespace when one is expected
	if c.ExpectedNamespace != "" && c.ExpectedNamespace != namespace {
		return nil, fmt.Errorf(
			"%w: expected namespace %s, got %s",
			ErrUnexpectedNamespace,
			c.ExpectedNamespace,
			namespace,
		)
	}

	if capability != capabilityName {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrUnexpectedCapability, capabilityName, capability)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch function {
	case fnTimespanCreate:
		return c.create(payload)
	case fnTimespanDestroy:
		return c.destroy(payload)
	case fnShouldRecord:
		return c.shouldRecord(payload)
	case fnTimespanSetStart:
		return c.setStart(payload)
	case fnTimespanSetStop:
		return c.setStop(payload)
	case fnTimespanCancel:
		return c.cancel(payload)
	case fnTimespanSetRaw:
		return c.setRaw(payload)
	case fnTimespanHasValue:
		return c.hasValue(payload)
	case fnTimespanGetValue:
		return c.getValue(payload)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, function)
}

func (c *Core) create(payload []byte) ([]byte, error) {
	var req wire.TimespanCreate
	if err := req.Unmarshal(payload); err != nil {
		return nil, err
	}
	if len(req.SendInPings) == 0 {
		return nil, ErrNoPings
	}

	c.nextHandle++
	handle := c.nextHandle
	c.slots[handle] = &slot{
		meta:   req,
		values: make(map[string]int64),
	}

	return (&wire.HandleResponse{Handle: handle}).Marshal(), nil
}

func (c *Core) destroy(payload []byte) ([]byte, error) {
	var req wire.HandleRequest
	if err := req.Unmarshal(payload); err != nil {
		return nil, err
	}
	if _, ok := c.slots[req.Handle]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, req.Handle)
	}

	delete(c.slots, req.Handle)
	c.destroyCount++

	return nil, nil
}

func (c *Core) shouldRecord(payload []byte) ([]byte, error) {
	var req wire.HandleRequest
	if err := req.Unmarshal(payload); err != nil {
		return nil, err
	}
	s, ok := c.slots[req.Handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, req.Handle)
	}

	record := c.uploadEnabled && !s.meta.Disabled
	return (&wire.BoolResponse{Value: record}).Marshal(), nil
}

func (c *Core) setStart(payload []byte) ([]byte, error) {
	var req wire.TimestampRequest
	if err := req.Unmarshal(payload); err != nil {
		return nil, err
	}
	s, ok := c.slots[req.Handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, req.Handle)
	}

	// A second start keeps the original timestamp and is counted as misuse.
	if s.startNanos != nil {
		c.countError(s, ErrorKindInvalidState)
		return nil, nil
	}

	ts := req.TimestampNanos
	s.startNanos = &ts
	return nil, nil
}

func (c *Core) setStop(payload []byte) ([]byte, error) {
	var req wire.TimestampRequest
	if err := req.Unmarshal(payload); err != nil {
		return nil, err
	}
	s, ok := c.slots[req.Handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, req.Handle)
	}

	// Stop without a running timer stores nothing and is counted as misuse.
	if s.startNanos == nil {
		c.countError(s, ErrorKindInvalidState)
		return nil, nil
	}

	elapsed := req.TimestampNanos - *s.startNanos
	s.startNanos = nil

	if elapsed < 0 {
		c.countError(s, ErrorKindInvalidState)
		return nil, nil
	}

	value := convert(elapsed, s.meta.TimeUnit)
	for _, ping := range s.meta.SendInPings {
		s.values[ping] = value
	}
	return nil, nil
}

func (c *Core) cancel(payload []byte) ([]byte, error) {
	var req wire.HandleRequest
	if err := req.Unmarshal(payload); err != nil {
		return nil, err
	}
	s, ok := c.slots[req.Handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, req.Handle)
	}

	// Always safe: no error even when nothing is running.
	s.startNanos = nil
	return nil, nil
}

func (c *Core) setRaw(payload []byte) ([]byte, error) {
	var req wire.RawRequest
	if err := req.Unmarshal(payload); err != nil {
		return nil, err
	}
	s, ok := c.slots[req.Handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, req.Handle)
	}

	// Raw values lose precedence to the structured timer: a running timer
	// and already-committed values are left untouched, silently.
	if s.startNanos != nil {
		return nil, nil
	}

	value := convert(req.Nanos, s.meta.TimeUnit)
	for _, ping := range s.meta.SendInPings {
		if _, exists := s.values[ping]; exists {
			continue
		}
		s.values[ping] = value
	}
	return nil, nil
}

func (c *Core) hasValue(payload []byte) ([]byte, error) {
	var req wire.QueryRequest
	if err := req.Unmarshal(payload); err != nil {
		return nil, err
	}
	s, ok := c.slots[req.Handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, req.Handle)
	}

	_, exists := s.values[req.Ping]
	return (&wire.BoolResponse{Value: exists}).Marshal(), nil
}

func (c *Core) getValue(payload []byte) ([]byte, error) {
	var req wire.QueryRequest
	if err := req.Unmarshal(payload); err != nil {
		return nil, err
	}
	s, ok := c.slots[req.Handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, req.Handle)
	}

	value, exists := s.values[req.Ping]
	if !exists {
		return nil, fmt.Errorf("%w: %s.%s in ping %q", ErrNoValue, s.meta.Category, s.meta.Name, req.Ping)
	}
	return (&wire.ValueResponse{Nanos: value}).Marshal(), nil
}

// countError increments the diagnostic counter for one metric and error
// kind. The real core reports these through its own error-metrics ping; the
// mock exposes them via ErrorCount.
func (c *Core) countError(s *slot, kind string) {
	c.errorCounts[errorKey{category: s.meta.Category, name: s.meta.Name, kind: kind}]++
}

// convert truncates a nanosecond duration into the metric's time unit. The
// unit codes match the metrics client's TimeUnit constants.
func convert(nanos int64, unit uint32) int64 {
	switch unit {
	case 1: // microsecond
		return nanos / 1e3
	case 2: // millisecond
		return nanos / 1e6
	case 3: // second
		return nanos / 1e9
	case 4: // minute
		return nanos / (60 * 1e9)
	case 5: // hour
		return nanos / (3600 * 1e9)
	}
	return nanos
}

// SetUploadEnabled toggles the global upload switch consulted by
// should-record.
func (c *Core) SetUploadEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploadEnabled = enabled
}

// ErrorCount returns the diagnostic error count recorded for one metric and
// error kind.
func (c *Core) ErrorCount(category, name, kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorCounts[errorKey{category: category, name: name, kind: kind}]
}

// SlotCount returns the number of live metric slots.
func (c *Core) SlotCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// DestroyCount returns how many slots have been released.
func (c *Core) DestroyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyCount
}
