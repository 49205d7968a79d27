// Package poll drives one observation session of a pipeline process:
// connect, fetch the topology once, then fetch, render and publish a
// snapshot every interval until the pipeline finishes, the connection
// fails, or the context is cancelled.
//
// The scheduler is strictly sequential and single-use. Everything a
// presentation layer needs arrives through the EventSink: one event per
// phase transition and one per completed cycle.
package poll
