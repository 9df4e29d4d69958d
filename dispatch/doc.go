/*
Package dispatch provides the serial task queue that metric operations are
deferred onto.

All mutating metric operations funnel through one Queue, which executes them
on a single worker goroutine in exactly launch order. Callers never block
past the enqueue itself, and the host-side cost of a recording operation
(locking, persistence) is paid by the worker rather than the instrumented
code path.

Flush is the drain barrier used by test accessors: after Flush returns, every
previously launched operation has been applied, so querying metric state is
unambiguous. Outside of tests there is no reason to call it on the hot path.
*/
package dispatch
