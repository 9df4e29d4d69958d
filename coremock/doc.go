/*
Package coremock provides a friendly pretend metrics core for waPC calls.

It's designed for SDK development and tests where you want a host that
actually behaves like one-storing timespan state and counting timer
misuse-without needing a real runtime underneath. No real hosts were harmed
in the making of these tests.

Why use coremock?

  - Validate routing: calls must use the metrics capability, and the expected
    namespace when you set one.
  - Observe semantics: double starts and stray stops increment diagnostic
    error counters you can assert on with ErrorCount.
  - Script failures: set Fail (and optionally Error) to simulate a broken
    host and prove your instrumentation stays best-effort.

Quick start

	core, _ := coremock.New(coremock.Config{ExpectedNamespace: "beacon"})

	c, _ := metrics.New(metrics.Config{HostCall: core.HostCall})

Behavior

  - If Fail is true and Error is set, HostCall returns that error.
  - If Fail is true and Error is nil, HostCall returns ErrOperationFailed.
  - Otherwise HostCall decodes the payload and applies the operation to the
    in-memory slot table: first start wins, stop without start is a counted
    no-op, cancel is always safe, and raw sets never overwrite a running
    timer or an existing value.

Values are stored per ping, truncated into the metric's configured time
unit, exactly as the get-value query returns them.
*/
package coremock
