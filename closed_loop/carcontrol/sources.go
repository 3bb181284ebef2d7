package carcontrol

import "sync/atomic"

// SteerRequest is the lane-centering source's output for one cycle.
type SteerRequest struct {
	Steer float64 // normalized torque, -1..1
	Angle float64 // degrees, used under angle control
}

// SteerSource supplies the lateral request (lane centering / lane change).
type SteerSource interface {
	Produce(in CycleInput) SteerRequest
}

// Override is a manual steering override. Steer is in raw torque units.
type Override struct {
	Active bool
	Steer  float64
	Angle  float64
}

// OverrideSource supplies a manual override that supersedes the steer source
// while active.
type OverrideSource interface {
	Produce(in CycleInput) Override
}

// ActuatorSteer passes the planner's steer and angle through unchanged.
type ActuatorSteer struct{}

func (ActuatorSteer) Produce(in CycleInput) SteerRequest {
	return SteerRequest{Steer: in.Actuators.Steer, Angle: in.Actuators.SteerAngle}
}

// NoOverride never overrides.
type NoOverride struct{}

func (NoOverride) Produce(CycleInput) Override { return Override{} }

// ManualOverride holds an override set from outside the control loop. The
// loop only ever loads it.
type ManualOverride struct {
	v atomic.Pointer[Override]
}

func (m *ManualOverride) Set(o Override) { m.v.Store(&o) }

func (m *ManualOverride) Clear() { m.v.Store(nil) }

func (m *ManualOverride) Produce(CycleInput) Override {
	if o := m.v.Load(); o != nil {
		return *o
	}
	return Override{}
}
