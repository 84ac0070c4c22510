// Package frameloop is a single-goroutine host for package tempo: a clock, a
// delayed-callback scheduler and a property interpolator that all share one
// virtual timeline.
//
// Tests drive a Loop directly with Advance. Long-running programs wrap it in
// a Runner, which advances it from a wall-clock ticker, and talk to it from
// other goroutines with Post and Do.
package frameloop
