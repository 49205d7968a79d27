// Package pipeline defines the data model of an observed pipeline: its static
// topology, per-node execution state and port counters, and the snapshot of
// all node statuses captured in one poll cycle.
//
// Counters are kept as one optional slot per port so that edges can address
// them by port index. A nil slot means the counter has not been observed,
// which the renderer treats differently from zero.
package pipeline
