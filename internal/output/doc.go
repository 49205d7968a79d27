// Package output turns poll events into durable or line-oriented output: a
// graph file rewritten every cycle, and a plain printer for non-terminal
// use.
package output
