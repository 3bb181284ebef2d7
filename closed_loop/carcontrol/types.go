package carcontrol

import (
	"fmt"
	"strings"

	"go.einride.tech/can"
)

// VehicleState is the parsed bus state for one cycle. Read only.
type VehicleState struct {
	SpeedMPS          float64 // v_ego
	SteerAngleDeg     float64 // measured steering wheel angle
	MotorTorque       float64 // EPS reported motor torque
	SteerFaultCode    int     // EPS LKA state
	LeftBlinker       bool
	RightBlinker      bool
	IPASActive        bool // park-assist angle control accepted by the EPS
	CruiseStatus      int  // PCM cruise state code, 0 is off and 8 is standstill-capable
	Standstill        bool
	LaneAssistEnabled bool
}

// ActuatorCommand is what the planner wants this cycle.
type ActuatorCommand struct {
	Gas        float64 // 0..1
	Brake      float64 // 0..1
	Steer      float64 // normalized torque, -1..1
	SteerAngle float64 // degrees
}

type VisualAlert int

const (
	VisualAlertNone VisualAlert = iota
	VisualAlertFCW
	VisualAlertSteerRequired
	VisualAlertOther
)

var visualAlertNames = map[string]VisualAlert{
	"none":           VisualAlertNone,
	"fcw":            VisualAlertFCW,
	"steer_required": VisualAlertSteerRequired,
	"other":          VisualAlertOther,
}

func (v *VisualAlert) UnmarshalText(text []byte) error {
	a, ok := visualAlertNames[strings.ToLower(string(text))]
	if !ok {
		return fmt.Errorf("unknown visual alert %q", text)
	}
	*v = a
	return nil
}

type AudibleAlert int

const (
	AudibleAlertNone AudibleAlert = iota
	AudibleAlertChimeEngage
	AudibleAlertChimeDisengage
	AudibleAlertChimeError
	AudibleAlertChimePrompt
	AudibleAlertChimeWarning1
	AudibleAlertChimeWarning2
	AudibleAlertChimeWarningRepeat
)

var audibleAlertNames = map[string]AudibleAlert{
	"none":                 AudibleAlertNone,
	"chime_engage":         AudibleAlertChimeEngage,
	"chime_disengage":      AudibleAlertChimeDisengage,
	"chime_error":          AudibleAlertChimeError,
	"chime_prompt":         AudibleAlertChimePrompt,
	"chime_warning1":       AudibleAlertChimeWarning1,
	"chime_warning2":       AudibleAlertChimeWarning2,
	"chime_warning_repeat": AudibleAlertChimeWarningRepeat,
}

func (a *AudibleAlert) UnmarshalText(text []byte) error {
	v, ok := audibleAlertNames[strings.ToLower(string(text))]
	if !ok {
		return fmt.Errorf("unknown audible alert %q", text)
	}
	*a = v
	return nil
}

// CycleInput is everything the controller needs for one tick.
type CycleInput struct {
	State            VehicleState
	Enabled          bool
	Cycle            uint64
	Actuators        ActuatorCommand
	CancelRequest    bool
	VisualAlert      VisualAlert
	AudibleAlert     AudibleAlert
	ForwardingCamera bool
	LeftLine         bool
	RightLine        bool
	Lead             bool
	LeftLaneDepart   bool
	RightLaneDepart  bool
	FollowDistance   bool // follow-distance button latched by the UI layer
}

// ControlOutput is the result of the limiter chain for one cycle.
type ControlOutput struct {
	Steer             int
	SteerRequest      bool
	Accel             float64
	Gas               float64
	Angle             float64
	AngleEnabled      bool
	StandstillRequest bool
	CancelRequest     bool
	InCutout          bool
}

// Frame is a CAN frame tagged with the bus it goes out on.
type Frame struct {
	Bus int
	can.Frame
}

func newFrame(bus int, addr uint32, data []byte) Frame {
	f := Frame{Bus: bus}
	f.ID = addr
	f.Length = uint8(len(data))
	copy(f.Data[:], data)
	return f
}

// Payload returns the used bytes of the frame data.
func (f Frame) Payload() []byte {
	return f.Data[:f.Length]
}
