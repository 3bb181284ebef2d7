package carcontrol

import (
	"go.einride.tech/can"

	"lkas-actuation-core/utils"
)

// Encoder packs a named message from physical signal values.
type Encoder interface {
	EncodeFrame(name string, values map[string]float64) (can.Frame, error)
}

const (
	msgSteerLKA      = "STEERING_LKA"
	msgSteerIPAS     = "STEERING_IPAS"
	msgSteerIPASComa = "STEERING_IPAS_COMMA"
	msgACCControl    = "ACC_CONTROL"
	msgGasCommand    = "GAS_COMMAND"
	msgLKASHUD       = "LKAS_HUD"
	msgACCHUD        = "ACC_HUD"

	blindspotDiagAddr = 0x750
)

// VideoTargetIDs are the radar target slots the camera fills when it is
// emulated and the real camera is not being forwarded.
var VideoTargetIDs = []uint32{
	0x340, 0x341, 0x342, 0x343, 0x344, 0x345,
	0x363, 0x364, 0x365, 0x370, 0x371, 0x372,
	0x373, 0x374, 0x375, 0x380, 0x381, 0x382,
	0x383,
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func encode(enc Encoder, bus int, name string, values map[string]float64) (Frame, error) {
	f, err := enc.EncodeFrame(name, values)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Bus: bus, Frame: f}, nil
}

func steerCommand(enc Encoder, steer int, req bool, cycle uint64) (Frame, error) {
	return encode(enc, 0, msgSteerLKA, map[string]float64{
		"STEER_REQUEST":    b2f(req),
		"STEER_TORQUE_CMD": float64(steer),
		"COUNTER":          float64(cycle),
		"SET_ME_1":         1,
	})
}

func ipasSteerCommand(enc Encoder, angle float64, enabled, apgs bool) (Frame, error) {
	move := 0x40
	switch {
	case angle < 0:
		move = 0x60
		angle = 0xfff + angle + 1
	case angle > 0:
		move = 0x20
	}
	mode := 1.0
	if enabled {
		mode = 3
	}
	name := msgSteerIPASComa
	if apgs {
		name = msgSteerIPAS
	}
	return encode(enc, 0, name, map[string]float64{
		"STATE":         mode,
		"DIRECTION_CMD": float64(move),
		"ANGLE":         angle,
		"SET_ME_X10":    0x10,
		"SET_ME_X40":    0x40,
	})
}

func accelCommand(enc Encoder, accel float64, cancel, standstillReq, lead, distance bool) (Frame, error) {
	return encode(enc, 0, msgACCControl, map[string]float64{
		"ACCEL_CMD":          accel,
		"SET_ME_X01":         1,
		"DISTANCE":           b2f(distance),
		"MINI_CAR":           b2f(lead),
		"SET_ME_X3":          3,
		"SET_ME_1":           1,
		"RELEASE_STANDSTILL": b2f(!standstillReq),
		"CANCEL_REQ":         b2f(cancel),
	})
}

// gasCommand drives the pedal interceptor. Exactly zero is sent for zero gas
// since the interceptor uses the max of the pedal and the command.
func gasCommand(enc Encoder, gas float64, idx uint64) (Frame, error) {
	enable := gas > 0.001
	values := map[string]float64{
		"ENABLE":        b2f(enable),
		"COUNTER_PEDAL": float64(idx & 0xf),
	}
	if enable {
		values["GAS_COMMAND"] = gas * 255
		values["GAS_COMMAND2"] = gas * 255
	}
	return encode(enc, 0, msgGasCommand, values)
}

func videoTarget(counter uint64, addr uint32) Frame {
	data := []byte{byte(counter & 0xff), 0x03, 0xff, 0x00, 0x00, 0x00, 0x00, 0x00}
	data[7] = utils.ToyotaChecksum(addr, data)
	return newFrame(1, addr, data)
}

func lineState(depart, visible bool) float64 {
	switch {
	case depart:
		return 3
	case visible:
		return 1
	default:
		return 2
	}
}

type uiParams struct {
	hud         HUDSignals
	leftLine    bool
	rightLine   bool
	leftDepart  bool
	rightDepart bool
}

func uiCommand(enc Encoder, p uiParams) (Frame, error) {
	barriers := 0.0
	if p.leftDepart || p.rightDepart {
		barriers = 3
	}
	return encode(enc, 0, msgLKASHUD, map[string]float64{
		"RIGHT_LINE":     lineState(p.rightDepart, p.rightLine),
		"LEFT_LINE":      lineState(p.leftDepart, p.leftLine),
		"BARRIERS":       barriers,
		"SET_ME_X0C":     0x0c,
		"SET_ME_X2C":     0x2c,
		"SET_ME_X38":     0x38,
		"SET_ME_X02":     0x02,
		"SET_ME_X01":     1,
		"SET_ME_X01_2":   1,
		"REPEATED_BEEPS": b2f(p.hud.ChimeRepeat),
		"TWO_BEEPS":      b2f(p.hud.ChimeSingle),
		"LDA_ALERT":      b2f(p.hud.SteerRequired),
	})
}

func fcwCommand(enc Encoder, fcw bool) (Frame, error) {
	return encode(enc, 0, msgACCHUD, map[string]float64{
		"FCW":        b2f(fcw),
		"SET_ME_X20": 0x20,
		"SET_ME_X10": 0x10,
		"SET_ME_X80": 0x80,
	})
}

// blindspotFrame builds a diagnostic request to one blind-spot radar.
func blindspotFrame(cmd BlindspotCommand) Frame {
	var req []byte
	switch cmd.Action {
	case BlindspotEnable:
		req = []byte{0x02, 0x10, 0x60}
	case BlindspotDisable:
		req = []byte{0x02, 0x10, 0x01}
	default:
		req = []byte{0x02, 0x21, 0x69}
	}
	data := make([]byte, 8)
	data[0] = cmd.Side.ecu()
	copy(data[1:], req)
	return newFrame(0, blindspotDiagAddr, data)
}
