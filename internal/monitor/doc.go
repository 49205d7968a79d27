// Package monitor implements the full-screen dashboard for one watched
// pipeline process.
//
// # Architecture
//
// The package uses the Bubble Tea framework (Model-Update-View):
//
//   - Model: the latest snapshot, topology, connection phase and layout
//   - Update: processes poll events, keystrokes and spinner ticks
//   - View: renders header, node and edge tables, and footer
//
// # Message Flow
//
// The poll scheduler runs in its own goroutine and owns all timing. Its
// EventSink pushes into a channel that the model drains one event at a
// time:
//
//  1. waitForEvent() blocks on the channel and returns an eventMsg
//  2. Update applies the event and, for cycle events, rewrites the graph file
//  3. Update returns waitForEvent() again until the channel closes
//
// Quitting cancels the scheduler's context, which closes the connection.
//
// # Keyboard Shortcuts
//
//	q, Ctrl+C   - Quit
//	+ / -       - Scale the output image by 10%
//	j/k, ↑/↓    - Scroll
//	?           - Toggle help overlay
package monitor
