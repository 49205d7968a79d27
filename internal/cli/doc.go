// Package cli wires the teleop commands to the poll scheduler and its
// presentations: the terminal dashboard, plain line output and the HTTP
// viewer.
package cli
