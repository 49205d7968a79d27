// Package render turns a topology and a status snapshot into a Graphviz DOT
// document, and DOT into an SVG image.
//
// DOT is pure and deterministic: the same inputs always produce the same
// text. Node colors encode execution state and edge colors encode backlog,
// the number of records written by the tail port but not yet read by the
// head port.
package render
