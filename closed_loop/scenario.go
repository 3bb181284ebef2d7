package main

import (
	"encoding/json"
	"fmt"
	"os"

	"lkas-actuation-core/closed_loop/carcontrol"
)

const (
	modeOpenLoop    = "open_loop"
	modeVelocityPID = "velocity_pid"
)

// Scenario defines a complete drive: defaults plus timed overrides.
type Scenario struct {
	Meta      ScenarioMeta      `json:"meta"`
	Timing    ScenarioTiming    `json:"timing"`
	Defaults  CycleCmd          `json:"defaults"`
	Segments  []ScenarioSegment `json:"segments"`
	PIDConfig *PIDConfig        `json:"pid_config,omitempty"` // required for velocity_pid
}

type ScenarioMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
	ControlMode string `json:"control_mode,omitempty"` // "open_loop" or "velocity_pid"
}

type ScenarioTiming struct {
	DurationS float64 `json:"duration_s"`
	// StatusHz is how often a status snapshot is published. Zero disables it.
	StatusHz float64 `json:"status_hz"`
}

// CycleCmd is the planner side of one control cycle.
type CycleCmd struct {
	Enabled          bool                    `json:"enabled"`
	Gas              float64                 `json:"gas"`
	Brake            float64                 `json:"brake"`
	Steer            float64                 `json:"steer"`
	SteerAngleDeg    float64                 `json:"steer_angle_deg"`
	CancelRequest    bool                    `json:"cancel_request"`
	VisualAlert      carcontrol.VisualAlert  `json:"visual_alert"`
	AudibleAlert     carcontrol.AudibleAlert `json:"audible_alert"`
	ForwardingCamera bool                    `json:"forwarding_camera"`
	LeftLine         bool                    `json:"left_line"`
	RightLine        bool                    `json:"right_line"`
	Lead             bool                    `json:"lead"`
	LeftLaneDepart   bool                    `json:"left_lane_depart"`
	RightLaneDepart  bool                    `json:"right_lane_depart"`
}

// ScenarioSegment overrides the defaults inside [T0, T1). A negative T1 runs
// to the end of the scenario. Only fields present in the JSON override.
type ScenarioSegment struct {
	T0                float64                  `json:"t0"`
	T1                float64                  `json:"t1"`
	Enabled           *bool                    `json:"enabled,omitempty"`
	Gas               *float64                 `json:"gas,omitempty"`
	Brake             *float64                 `json:"brake,omitempty"`
	Steer             *float64                 `json:"steer,omitempty"`
	SteerAngleDeg     *float64                 `json:"steer_angle_deg,omitempty"`
	CancelRequest     *bool                    `json:"cancel_request,omitempty"`
	VisualAlert       *carcontrol.VisualAlert  `json:"visual_alert,omitempty"`
	AudibleAlert      *carcontrol.AudibleAlert `json:"audible_alert,omitempty"`
	Lead              *bool                    `json:"lead,omitempty"`
	LeftLaneDepart    *bool                    `json:"left_lane_depart,omitempty"`
	RightLaneDepart   *bool                    `json:"right_lane_depart,omitempty"`
	TargetVelocityMPS *float64                 `json:"target_velocity_mps,omitempty"`
	Comment           string                   `json:"comment,omitempty"`
}

// LoadScenario loads a scenario from JSON file
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read file: %w", err)
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (Scenario, error) {
	var scen Scenario
	if err := json.Unmarshal(data, &scen); err != nil {
		return Scenario{}, fmt.Errorf("unmarshal: %w", err)
	}

	if scen.Timing.DurationS <= 0 {
		return Scenario{}, fmt.Errorf("invalid duration_s: %f", scen.Timing.DurationS)
	}
	if scen.Timing.StatusHz < 0 {
		return Scenario{}, fmt.Errorf("invalid status_hz: %f", scen.Timing.StatusHz)
	}

	if scen.Meta.ControlMode == "" {
		scen.Meta.ControlMode = modeOpenLoop
	}
	switch scen.Meta.ControlMode {
	case modeOpenLoop:
	case modeVelocityPID:
		if scen.PIDConfig == nil {
			return Scenario{}, fmt.Errorf("velocity_pid mode requires pid_config")
		}
		if err := scen.PIDConfig.Validate(); err != nil {
			return Scenario{}, fmt.Errorf("pid_config: %w", err)
		}
	default:
		return Scenario{}, fmt.Errorf("unknown control_mode %q", scen.Meta.ControlMode)
	}

	for i, seg := range scen.Segments {
		if seg.T1 >= 0 && seg.T1 <= seg.T0 {
			return Scenario{}, fmt.Errorf("segment %d: t1 %.3f not after t0 %.3f", i, seg.T1, seg.T0)
		}
	}
	return scen, nil
}

// ActiveSegment returns the first segment covering t, or nil.
func (s *Scenario) ActiveSegment(t float64) *ScenarioSegment {
	for i := range s.Segments {
		seg := &s.Segments[i]
		t1 := seg.T1
		if t1 < 0 {
			t1 = s.Timing.DurationS
		}
		if t >= seg.T0 && t < t1 {
			return seg
		}
	}
	return nil
}

// EvalCycleCmd evaluates the scenario at time t.
func EvalCycleCmd(scen *Scenario, t float64) CycleCmd {
	cmd := scen.Defaults
	seg := scen.ActiveSegment(t)
	if seg == nil {
		return cmd
	}
	setIf(&cmd.Enabled, seg.Enabled)
	setIf(&cmd.Gas, seg.Gas)
	setIf(&cmd.Brake, seg.Brake)
	setIf(&cmd.Steer, seg.Steer)
	setIf(&cmd.SteerAngleDeg, seg.SteerAngleDeg)
	setIf(&cmd.CancelRequest, seg.CancelRequest)
	setIf(&cmd.VisualAlert, seg.VisualAlert)
	setIf(&cmd.AudibleAlert, seg.AudibleAlert)
	setIf(&cmd.Lead, seg.Lead)
	setIf(&cmd.LeftLaneDepart, seg.LeftLaneDepart)
	setIf(&cmd.RightLaneDepart, seg.RightLaneDepart)
	return cmd
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// CycleInput combines the command with the latest bus state.
func (c CycleCmd) CycleInput(cs carcontrol.VehicleState, cycle uint64) carcontrol.CycleInput {
	return carcontrol.CycleInput{
		State:   cs,
		Enabled: c.Enabled,
		Cycle:   cycle,
		Actuators: carcontrol.ActuatorCommand{
			Gas:        c.Gas,
			Brake:      c.Brake,
			Steer:      c.Steer,
			SteerAngle: c.SteerAngleDeg,
		},
		CancelRequest:    c.CancelRequest,
		VisualAlert:      c.VisualAlert,
		AudibleAlert:     c.AudibleAlert,
		ForwardingCamera: c.ForwardingCamera,
		LeftLine:         c.LeftLine,
		RightLine:        c.RightLine,
		Lead:             c.Lead,
		LeftLaneDepart:   c.LeftLaneDepart,
		RightLaneDepart:  c.RightLaneDepart,
	}
}
