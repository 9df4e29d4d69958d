/*
Package metrics provides clients for recording telemetry metrics through the
Beacon host runtime.

The package exposes a constructor for Timespan metric handles, backed by
protobuf payloads sent over waPC host calls. A Timespan measures the elapsed
duration between a Start and Stop call, or accepts an explicit duration via
SetRawNanos. All metric storage, error counting, and ping assembly live
host-side; the handle only addresses a storage slot.

Recording methods are intentionally best-effort and do not return errors.
Operations invoked before the SDK is initialized, or while the metric is
disabled or upload is off, are dropped silently. Misuse such as a double
Start is resolved host-side with a diagnostic error count rather than a
caller-visible failure, so instrumentation can never crash or branch
application logic.

Mutating operations are serialized onto a dispatch queue and observe a total
order matching call order. The TestHasValue and TestGetValue accessors exist
for test harnesses only: they require the queue to be in test mode, and they
flush it before querying so results are unambiguous.
*/
package metrics
