package carcontrol

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

// AngleLimits are speed breakpoints (m/s) and the allowed magnitude / per
// cycle rate (degrees) at each of them.
type AngleLimits struct {
	MaxBP       []float64 `toml:"max_bp"`
	MaxV        []float64 `toml:"max_v"`
	DeltaBP     []float64 `toml:"delta_bp"`
	DeltaWindup []float64 `toml:"delta_windup"`
	DeltaUnwind []float64 `toml:"delta_unwind"`
}

func (l AngleLimits) Validate() error {
	if err := validateTable("angle max", l.MaxBP, l.MaxV); err != nil {
		return err
	}
	if err := validateTable("angle windup", l.DeltaBP, l.DeltaWindup); err != nil {
		return err
	}
	return validateTable("angle unwind", l.DeltaBP, l.DeltaUnwind)
}

func validateTable(name string, bp, v []float64) error {
	if len(bp) < 2 {
		return fmt.Errorf("%s: need at least 2 breakpoints, got %d", name, len(bp))
	}
	if len(bp) != len(v) {
		return fmt.Errorf("%s: %d breakpoints but %d values", name, len(bp), len(v))
	}
	for i := 1; i < len(bp); i++ {
		if bp[i] <= bp[i-1] {
			return fmt.Errorf("%s: breakpoints must be strictly increasing", name)
		}
	}
	for _, x := range v {
		if x < 0 {
			return errors.New(name + ": values must be non-negative")
		}
	}
	return nil
}

// AngleLimiter clips a target steering angle to a speed dependent magnitude
// and rate. Winding further into a turn is slower than unwinding.
type AngleLimiter struct {
	max    interp.PiecewiseLinear
	windup interp.PiecewiseLinear
	unwind interp.PiecewiseLinear
}

func NewAngleLimiter(l AngleLimits) (*AngleLimiter, error) {
	// Fit panics on malformed tables.
	if err := l.Validate(); err != nil {
		return nil, err
	}
	a := &AngleLimiter{}
	if err := a.max.Fit(l.MaxBP, l.MaxV); err != nil {
		return nil, err
	}
	if err := a.windup.Fit(l.DeltaBP, l.DeltaWindup); err != nil {
		return nil, err
	}
	if err := a.unwind.Fit(l.DeltaBP, l.DeltaUnwind); err != nil {
		return nil, err
	}
	return a, nil
}

// MaxAngle is the allowed magnitude at speed, held flat outside the table.
func (a *AngleLimiter) MaxAngle(speed float64) float64 {
	return a.max.Predict(speed)
}

func (a *AngleLimiter) RateLimit(speed float64, windup bool) float64 {
	if windup {
		return a.windup.Predict(speed)
	}
	return a.unwind.Predict(speed)
}

// IsWindup reports whether moving from last to next grows the angle in the
// direction it already points.
func IsWindup(last, next float64) bool {
	return last*next > 0 && math.Abs(next) > math.Abs(last)
}

// Limit returns the angle to command given the target, the last commanded
// angle and the current speed. The magnitude bound is applied again after the
// rate clip so a speed increase can never leave the output above it.
func (a *AngleLimiter) Limit(target, last, speed float64) float64 {
	lim := a.MaxAngle(speed)
	angle := clip(target, -lim, lim)

	rate := a.RateLimit(speed, IsWindup(last, angle))
	angle = clip(angle, last-rate, last+rate)
	return clip(angle, -lim, lim)
}
