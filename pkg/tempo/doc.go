// Package tempo turns a host's "call me after d" and "animate to these values"
// primitives into timers and transitions that can be paused, resumed,
// cancelled and played back at a different speed without losing their place.
//
// A Scheduler owns every handle it creates. Handles are plain state machines
// (scheduled, paused, removed); the Scheduler adds bulk operations over them
// and a periodic Cleanup to drop the ones that finished on their own.
//
// Everything in this package runs on a single goroutine: the one that drives
// the host's Delayer and Interpolator. See package frameloop for a host that
// provides both.
package tempo
