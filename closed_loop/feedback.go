package main

import (
	"fmt"

	"lkas-actuation-core/closed_loop/carcontrol"
	"lkas-actuation-core/utils"
)

// Inbound frames the rx loop decodes. Everything else on the bus is ignored.
const (
	fbSteerAngle  = "STEER_ANGLE_SENSOR"
	fbSpeed       = "SPEED"
	fbCruise      = "PCM_CRUISE"
	fbSteerTorque = "STEER_TORQUE_SENSOR"
	fbEPSStatus   = "EPS_STATUS"
	fbSteerLevers = "STEERING_LEVERS"

	ipasStateOn     = 3
	turnSignalLeft  = 1
	turnSignalRight = 2
)

const kphToMPS = 1 / 3.6

var feedbackFrames = []string{fbSteerAngle, fbSpeed, fbCruise, fbSteerTorque, fbEPSStatus, fbSteerLevers}

// SensorFeedback is one decoded inbound frame.
type SensorFeedback struct {
	Frame  string
	Values map[string]float64
}

// feedbackDecoder resolves tracked frame IDs once and decodes raw frames.
type feedbackDecoder struct {
	cmap  *utils.CANMap
	names map[uint32]string
}

func newFeedbackDecoder(cmap *utils.CANMap) (*feedbackDecoder, error) {
	d := &feedbackDecoder{cmap: cmap, names: make(map[uint32]string, len(feedbackFrames))}
	for _, name := range feedbackFrames {
		fd, err := cmap.FrameByName(name)
		if err != nil {
			return nil, fmt.Errorf("feedback frame: %w", err)
		}
		d.names[fd.ID] = name
	}
	return d, nil
}

// Decode returns false for frames that are not tracked.
func (d *feedbackDecoder) Decode(id uint32, data []byte) (SensorFeedback, bool, error) {
	name, ok := d.names[id]
	if !ok {
		return SensorFeedback{}, false, nil
	}
	vals, err := d.cmap.DecodeFrame(id, data)
	if err != nil {
		return SensorFeedback{}, true, fmt.Errorf("decode %s: %w", name, err)
	}
	return SensorFeedback{Frame: name, Values: vals}, true, nil
}

// stateTracker folds feedback into the VehicleState handed to the
// controller. It is owned by the tx loop.
type stateTracker struct {
	state      carcontrol.VehicleState
	lkasSwitch bool
}

// newStateTracker starts with lane assist on; the LKAS switch toggles it.
func newStateTracker() *stateTracker {
	return &stateTracker{state: carcontrol.VehicleState{LaneAssistEnabled: true}}
}

func (t *stateTracker) State() carcontrol.VehicleState { return t.state }

func (t *stateTracker) Apply(fb SensorFeedback) {
	v := fb.Values
	s := &t.state
	switch fb.Frame {
	case fbSteerAngle:
		s.SteerAngleDeg = v["STEER_ANGLE"] + v["STEER_FRACTION"]
	case fbSpeed:
		s.SpeedMPS = v["SPEED"] * kphToMPS
	case fbCruise:
		s.CruiseStatus = int(v["CRUISE_STATE"])
		s.Standstill = v["STANDSTILL_ON"] != 0
	case fbSteerTorque:
		s.MotorTorque = v["STEER_TORQUE_EPS"]
	case fbEPSStatus:
		s.SteerFaultCode = int(v["LKA_STATE"])
		s.IPASActive = int(v["IPAS_STATE"]) == ipasStateOn
	case fbSteerLevers:
		turn := int(v["TURN_SIGNALS"])
		s.LeftBlinker = turn == turnSignalLeft
		s.RightBlinker = turn == turnSignalRight
		pressed := v["LKAS_SWITCH"] != 0
		if pressed && !t.lkasSwitch {
			s.LaneAssistEnabled = !s.LaneAssistEnabled
		}
		t.lkasSwitch = pressed
	}
}
