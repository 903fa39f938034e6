// Package types provides the shared data structures of the overlay.
//
// Core Types:
//   - Bounds, Point, Size: window geometry
//   - WindowName, WindowTypeConfig, WindowTable: the static per-window
//     configuration used by creation and crash recovery
//   - LayoutRequest, LayoutResult: calculator input/output
//   - AppState, WindowState: persisted state
//   - CrashReport: one-per-incident crash record
//   - IntentMessage, IntentReply: renderer bridge envelopes
package types
