// Package observe provides the gateway's logging, tracing and metrics.
//
// Logging is structured JSON through zerolog, optionally written to a
// rotating file. Tracing and metrics are OpenTelemetry providers whose
// exporters are chosen by name (see package exporters). Middleware ties the
// three together around each inbound call, and CallInfo lets the gateway
// annotate the call with its fingerprint and cache outcome.
package observe
