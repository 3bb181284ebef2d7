package carcontrol

import "math"

// TorqueLimits are EPS torque bounds in raw command units.
type TorqueLimits struct {
	Max       int `toml:"max"`
	DeltaUp   int `toml:"delta_up"`   // per cycle, 1.5s to peak at 100 Hz
	DeltaDown int `toml:"delta_down"` // the RAV4 faults above 45
	ErrorMax  int `toml:"error_max"`  // commanded vs motor torque
}

// TorqueLimiter rate and fault limits a desired steer torque.
type TorqueLimiter interface {
	Limit(desired, last int, motorTorque float64) int
}

// ToyotaTorqueLimiter keeps the command within ErrorMax of the measured motor
// torque and slews it from the last applied value.
type ToyotaTorqueLimiter struct {
	Limits TorqueLimits
}

func (t ToyotaTorqueLimiter) Limit(desired, last int, motorTorque float64) int {
	l := t.Limits
	errMax := float64(l.ErrorMax)
	steerMax := float64(l.Max)

	maxLim := math.Min(math.Max(motorTorque+errMax, errMax), steerMax)
	minLim := math.Max(math.Min(motorTorque-errMax, -errMax), -steerMax)
	torque := clip(float64(desired), minLim, maxLim)

	lastF := float64(last)
	up, down := float64(l.DeltaUp), float64(l.DeltaDown)
	if last > 0 {
		torque = clip(torque, math.Max(lastF-down, -up), lastF+up)
	} else {
		torque = clip(torque, lastF-up, math.Min(lastF+down, up))
	}
	return int(math.Round(torque))
}
