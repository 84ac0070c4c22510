package tempo

import "time"

// Clock reports monotonic time since an arbitrary origin. It must never go
// backwards.
type Clock interface {
	Now() time.Duration
}

// BookingID identifies one reservation made with a Delayer or Interpolator.
// The zero value means "no booking".
type BookingID uint64

// Delayer is the host's one-shot/repeat callback primitive.
//
// Schedule runs fn every delay, repeat times (0 = until cancelled).
// Cancel must be idempotent and safe on bookings that already fired.
type Delayer interface {
	Schedule(delay time.Duration, fn func(), repeat int) BookingID
	Cancel(id BookingID)
}

// Interpolator is the host's property tweening primitive.
//
// Animate moves every property named in to from its current value on obj to
// the target value over d, then calls done once. A cancelled animation never
// calls done.
type Interpolator interface {
	Animate(obj Target, to Props, d time.Duration, done func()) BookingID
	Cancel(id BookingID)
}

// Target is an object whose numeric properties can be animated.
type Target interface {
	Get(prop string) (float64, bool)
	Set(prop string, v float64)
}

// Props is a set of property values. It is itself a Target, which makes it
// the simplest thing to animate.
type Props map[string]float64

func (p Props) Get(prop string) (float64, bool) {
	v, ok := p[prop]
	return v, ok
}

func (p Props) Set(prop string, v float64) { p[prop] = v }

// Clone returns a shallow copy (nil stays nil).
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
