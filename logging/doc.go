/*
Package logging offers a client for emitting log entries from Beacon
WebAssembly functions to the host runtime.

The package exposes a small interface with convenience methods for common log
levels (Info, Warn, Error, Debug, Trace). A client instance handles the host
interaction behind the scenes, so guest code can focus on writing logs. The
client also satisfies dispatch.Logger, letting the dispatch queue report
recovered task panics through the host.
*/
package logging
