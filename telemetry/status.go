package telemetry

import (
	"strconv"

	"lkas-actuation-core/closed_loop/carcontrol"
)

// Status is the controller snapshot published for dashboards.
type Status struct {
	Session      string
	Cycle        uint64
	Enabled      bool
	Steer        int
	SteerRequest bool
	Accel        float64
	Angle        float64
	AngleEnabled bool
	InCutout     bool
	FaultCycles  uint64
	CutoutCycles uint64
	EncodeErrors uint64
}

func NewStatus(session string, cycle uint64, enabled bool, out carcontrol.ControlOutput, st carcontrol.Stats) Status {
	return Status{
		Session:      session,
		Cycle:        cycle,
		Enabled:      enabled,
		Steer:        out.Steer,
		SteerRequest: out.SteerRequest,
		Accel:        out.Accel,
		Angle:        out.Angle,
		AngleEnabled: out.AngleEnabled,
		InCutout:     out.InCutout,
		FaultCycles:  st.FaultCycles,
		CutoutCycles: st.CutoutCycles,
		EncodeErrors: st.EncodeErrors,
	}
}

// Fields flattens the status into redis hash fields.
func (s Status) Fields() map[string]any {
	return map[string]any{
		"session":       s.Session,
		"cycle":         strconv.FormatUint(s.Cycle, 10),
		"enabled":       strconv.FormatBool(s.Enabled),
		"steer":         strconv.Itoa(s.Steer),
		"steer-request": strconv.FormatBool(s.SteerRequest),
		"accel":         strconv.FormatFloat(s.Accel, 'f', 3, 64),
		"angle":         strconv.FormatFloat(s.Angle, 'f', 2, 64),
		"angle-enabled": strconv.FormatBool(s.AngleEnabled),
		"cutout":        strconv.FormatBool(s.InCutout),
		"fault-cycles":  strconv.FormatUint(s.FaultCycles, 10),
		"cutout-cycles": strconv.FormatUint(s.CutoutCycles, 10),
		"encode-errors": strconv.FormatUint(s.EncodeErrors, 10),
	}
}
