package main

import (
	"errors"
	"fmt"
)

// PIDConfig holds the velocity planner gains. Output is a normalized pedal
// demand: positive is gas, negative is brake.
type PIDConfig struct {
	TargetVelocityMPS float64 `json:"target_velocity_mps"`
	Kp                float64 `json:"kp"`
	Ki                float64 `json:"ki"`
	Kd                float64 `json:"kd"`
	MaxGas            float64 `json:"max_gas"`
	MaxBrake          float64 `json:"max_brake"`
	IntegralLimit     float64 `json:"integral_limit"`
}

func (c PIDConfig) Validate() error {
	if c.TargetVelocityMPS < 0 {
		return fmt.Errorf("invalid target_velocity_mps: %f", c.TargetVelocityMPS)
	}
	if c.MaxGas <= 0 || c.MaxGas > 1 {
		return fmt.Errorf("max_gas %f outside (0, 1]", c.MaxGas)
	}
	if c.MaxBrake < 0 || c.MaxBrake > 1 {
		return fmt.Errorf("max_brake %f outside [0, 1]", c.MaxBrake)
	}
	if c.IntegralLimit < 0 {
		return errors.New("integral_limit must be >= 0")
	}
	return nil
}

// PIDController implements a discrete PID controller for velocity tracking
type PIDController struct {
	cfg PIDConfig

	integral    float64
	prevError   float64
	initialized bool
}

func NewPIDController(cfg PIDConfig) *PIDController {
	return &PIDController{cfg: cfg}
}

// Reset clears the PID state
func (pid *PIDController) Reset() {
	pid.integral = 0
	pid.prevError = 0
	pid.initialized = false
}

// Update computes the pedal demand in [-MaxBrake, MaxGas] for the measured
// velocity.
func (pid *PIDController) Update(currentVelocity, dt float64) float64 {
	err := pid.cfg.TargetVelocityMPS - currentVelocity
	if !pid.initialized {
		// no derivative on the first sample
		pid.prevError = err
		pid.initialized = true
	}

	p := pid.cfg.Kp * err

	pid.integral += err * dt
	pid.integral = clamp(pid.integral, -pid.cfg.IntegralLimit, pid.cfg.IntegralLimit)
	i := pid.cfg.Ki * pid.integral

	var d float64
	if dt > 0 {
		d = pid.cfg.Kd * (err - pid.prevError) / dt
	}

	u := p + i + d
	lo, hi := -pid.cfg.MaxBrake, pid.cfg.MaxGas
	if u > hi || u < lo {
		u = clamp(u, lo, hi)
		// back-calculate so the integrator does not wind past saturation
		if pid.cfg.Ki != 0 {
			pid.integral = clamp((u-p-d)/pid.cfg.Ki, -pid.cfg.IntegralLimit, pid.cfg.IntegralLimit)
		}
	}

	pid.prevError = err
	return u
}

// PIDDiagnostics contains PID internal state for monitoring
type PIDDiagnostics struct {
	Error    float64
	Integral float64
	P        float64
	I        float64
}

func (pid *PIDController) Diagnostics() PIDDiagnostics {
	return PIDDiagnostics{
		Error:    pid.prevError,
		Integral: pid.integral,
		P:        pid.cfg.Kp * pid.prevError,
		I:        pid.cfg.Ki * pid.integral,
	}
}

func (pid *PIDController) TargetVelocity() float64 { return pid.cfg.TargetVelocityMPS }

// SetTargetVelocity changes the setpoint. The integrator is kept.
func (pid *PIDController) SetTargetVelocity(target float64) {
	pid.cfg.TargetVelocityMPS = target
}

// splitPedals maps a signed demand onto the gas and brake channels.
func splitPedals(u float64) (gas, brake float64) {
	if u >= 0 {
		return u, 0
	}
	return 0, -u
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
