package logging

import (
	"fmt"

	wapc "github.com/wapc/wapc-guest-tinygo"

	"github.com/beacon-project/sdk/dispatch"
)

const capabilityName = "logging"

// defaultNamespace matches sdk.DefaultNamespace. It is declared here rather
// than imported so the SDK root can wire a logging client into the dispatch
// queue without an import cycle.
const defaultNamespace = "beacon"

// Host-side level function names.
const (
	fnInfo  = "info"
	fnWarn  = "warn"
	fnError = "error"
	fnDebug = "debug"
	fnTrace = "trace"
)

// Client exposes convenience helpers for sending log entries to the host runtime.
type Client interface {
	Info(message string)
	Warn(message string)
	Error(message string)
	Debug(message string)
	Trace(message string)

	// Errorf formats and logs an error-level entry.
	Errorf(format string, args ...any)
}

// Config controls how a Client instance interacts with the host runtime.
type Config struct {
	// Namespace scopes host interactions. If empty, the SDK default
	// namespace is used.
	Namespace string

	// HostCall overrides the waPC host function used for logging operations.
	HostCall func(string, string, string, []byte) ([]byte, error)
}

// client implements Client using the configured host call entrypoint.
type client struct {
	namespace string
	hostCall  func(string, string, string, []byte) ([]byte, error)
}

// The logging client doubles as the dispatch queue's panic reporter.
var _ dispatch.Logger = (*client)(nil)

// New creates a Client that emits logs through the configured host capability.
func New(cfg Config) (Client, error) {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	hostCall := cfg.HostCall
	if hostCall == nil {
		hostCall = wapc.HostCall
	}

	return &client{
		namespace: namespace,
		hostCall:  hostCall,
	}, nil
}

func (c *client) Info(message string)  { c.log(fnInfo, message) }
func (c *client) Warn(message string)  { c.log(fnWarn, message) }
func (c *client) Error(message string) { c.log(fnError, message) }
func (c *client) Debug(message string) { c.log(fnDebug, message) }
func (c *client) Trace(message string) { c.log(fnTrace, message) }

func (c *client) Errorf(format string, args ...any) {
	c.log(fnError, fmt.Sprintf(format, args...))
}

// log is best-effort: a failed host call must never interrupt the caller.
func (c *client) log(fn string, message string) {
	_, _ = c.hostCall(c.namespace, capabilityName, fn, []byte(message))
}
