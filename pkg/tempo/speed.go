package tempo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Speed multiplies every duration at the moment it is (re)scheduled.
// Lower values play faster.
type Speed float64

const (
	SpeedNormal Speed = 1
	SpeedFast   Speed = 0.5
	SpeedSlow   Speed = 2

	// MaxSpeed is the slowest accepted speed.
	MaxSpeed Speed = 1e6
)

var ErrInvalidSpeed = errors.New("speed must be a positive number no greater than 1e6")

// Scale converts a nominal duration into a scheduled one. Results beyond
// the range of time.Duration saturate.
func (s Speed) Scale(d time.Duration) time.Duration {
	return saturate(float64(d) * float64(s))
}

// Unscale converts a scheduled (wall) duration back into nominal time.
func (s Speed) Unscale(d time.Duration) time.Duration {
	if s <= 0 {
		return d
	}
	return saturate(float64(d) / float64(s))
}

func saturate(f float64) time.Duration {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return time.Duration(f)
}

// Valid reports whether s is a positive speed no greater than MaxSpeed.
func (s Speed) Valid() bool { return s > 0 && s <= MaxSpeed }

func (s Speed) String() string {
	switch s {
	case SpeedNormal:
		return "normal"
	case SpeedFast:
		return "fast"
	case SpeedSlow:
		return "slow"
	}
	return strconv.FormatFloat(float64(s), 'g', -1, 64)
}

// ParseSpeed accepts a preset name (normal, fast, slow) or a positive decimal.
// An empty string means normal.
func ParseSpeed(raw string) (Speed, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "", "normal":
		return SpeedNormal, nil
	case "fast":
		return SpeedFast, nil
	case "slow":
		return SpeedSlow, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid speed %q (use normal, fast, slow or a number): %w", raw, err)
	}
	if !Speed(f).Valid() {
		return 0, fmt.Errorf("invalid speed %q: %w", raw, ErrInvalidSpeed)
	}
	return Speed(f), nil
}
