/*
Package sdk provides the core entry point and runtime configuration for
recording telemetry from Beacon WebAssembly functions.

The package exposes New to mark the telemetry system ready and a
RuntimeConfig that is shared by metric and logging clients. DefaultNamespace
is used when a namespace is not explicitly provided. Until New has been
called, every metric recording operation is dropped silently.
*/
package sdk
