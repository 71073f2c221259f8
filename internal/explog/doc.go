// Package explog reconstructs a per-tick timeline of robot exploration state
// from the text log printed by the multi-robot exploration simulator.
//
// Responsibilities: line cursor (LineSource), robot record and local-map
// recognisers, alignment of each robot's local grid into world coordinates,
// and the tick state machine (Builder) that emits immutable Frames into an
// append-only FrameStore.
//
// All per-line, per-robot and per-frame anomalies are absorbed here and
// summarised in a Report; nothing in this package aborts a parse.
package explog
