package carcontrol

// AccelHysteresis holds the accel command steady for oscillations within gap.
// Disabled always yields zero and resets the steady value, otherwise a stale
// command would fault the ACC when it is re-enabled.
func AccelHysteresis(accel, steady float64, enabled bool, gap float64) (float64, float64) {
	switch {
	case !enabled:
		steady = 0
	case accel > steady+gap:
		steady = accel - gap
	case accel < steady-gap:
		steady = accel + gap
	}
	return steady, steady
}

// AccelLimits bounds the longitudinal command in m/s^2.
type AccelLimits struct {
	Max           float64 `toml:"max"`
	Min           float64 `toml:"min"`
	HysteresisGap float64 `toml:"hysteresis_gap"`
	// InterceptorOffset is added to -brake when a gas interceptor handles
	// positive accel, which keeps the ABS pump quiet while engaged.
	InterceptorOffset float64 `toml:"interceptor_offset"`
}

func (l AccelLimits) scale() float64 {
	return max(l.Max, -l.Min)
}

// applyAccel runs the accel pipeline and returns the command, the clipped gas
// and the next steady value.
func applyAccel(cmd ActuatorCommand, steady float64, enabled, interceptor bool, l AccelLimits) (accel, gas, steadyNext float64) {
	gas = clip(cmd.Gas, 0, 1)
	if interceptor {
		accel = l.InterceptorOffset - cmd.Brake
	} else {
		accel = cmd.Gas - cmd.Brake
	}
	accel, steadyNext = AccelHysteresis(accel, steady, enabled, l.HysteresisGap)
	accel = clip(accel*l.scale(), l.Min, l.Max)
	return accel, gas, steadyNext
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clipInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
