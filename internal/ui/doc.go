// Package ui provides terminal UI components for teleop's CLI output.
//
// # Components Overview
//
//	Indicator     - Connection indicator derived from poll events
//	PickProcess   - Interactive process selection using Huh forms
//	Tables        - Bubbles tables and plain process listings
//	RenderHeader  - Branded header for list and config output
//
// # Color Scheme
//
// Colors are defined as ANSI codes for broad terminal compatibility:
//
//	ColorSuccess   (green)  - Connected, succeeded
//	ColorError     (red)    - Failures and errors
//	ColorWarning   (yellow) - Warnings
//	ColorInfo      (cyan)   - Finished pipelines, informational messages
//	ColorMuted     (gray)   - Secondary text
//	ColorSecondary (blue)   - Accents
//
// Use DisableColors() to switch to monochrome output (for --plain or pipes).
package ui
