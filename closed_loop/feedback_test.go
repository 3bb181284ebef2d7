package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lkas-actuation-core/utils"
)

func loadVehicleDBC(t *testing.T) *utils.CANMap {
	t.Helper()
	m, err := utils.LoadCANMap(filepath.Join("..", "config", "dbc", "toyota_lkas.dbc"))
	require.NoError(t, err)
	return m
}

// feed encodes an inbound frame and runs it through decoder and tracker.
func feed(t *testing.T, m *utils.CANMap, d *feedbackDecoder, tr *stateTracker, name string, vals map[string]float64) {
	t.Helper()
	f, err := m.EncodeFrame(name, vals)
	require.NoError(t, err)
	fb, tracked, err := d.Decode(f.ID, f.Data[:f.Length])
	require.NoError(t, err)
	require.True(t, tracked, name)
	assert.Equal(t, name, fb.Frame)
	tr.Apply(fb)
}

func TestFeedbackToVehicleState(t *testing.T) {
	m := loadVehicleDBC(t)
	d, err := newFeedbackDecoder(m)
	require.NoError(t, err)
	tr := newStateTracker()

	feed(t, m, d, tr, fbSpeed, map[string]float64{"SPEED": 72})
	feed(t, m, d, tr, fbSteerAngle, map[string]float64{"STEER_ANGLE": -30, "STEER_FRACTION": -0.3})
	feed(t, m, d, tr, fbSteerTorque, map[string]float64{"STEER_TORQUE_EPS": -420})
	feed(t, m, d, tr, fbEPSStatus, map[string]float64{"LKA_STATE": 25, "IPAS_STATE": 3})
	feed(t, m, d, tr, fbCruise, map[string]float64{"CRUISE_STATE": 8, "STANDSTILL_ON": 1})
	feed(t, m, d, tr, fbSteerLevers, map[string]float64{"TURN_SIGNALS": turnSignalRight})

	cs := tr.State()
	assert.InDelta(t, 20.0, cs.SpeedMPS, 1e-9)
	assert.InDelta(t, -30.3, cs.SteerAngleDeg, 1e-9)
	assert.Equal(t, -420.0, cs.MotorTorque)
	assert.Equal(t, 25, cs.SteerFaultCode)
	assert.True(t, cs.IPASActive)
	assert.Equal(t, 8, cs.CruiseStatus)
	assert.True(t, cs.Standstill)
	assert.False(t, cs.LeftBlinker)
	assert.True(t, cs.RightBlinker)
	assert.True(t, cs.LaneAssistEnabled)

	feed(t, m, d, tr, fbEPSStatus, map[string]float64{"LKA_STATE": 1, "IPAS_STATE": 1})
	assert.False(t, tr.State().IPASActive)
	assert.Equal(t, 1, tr.State().SteerFaultCode)
}

func TestLKASSwitchToggles(t *testing.T) {
	m := loadVehicleDBC(t)
	d, err := newFeedbackDecoder(m)
	require.NoError(t, err)
	tr := newStateTracker()

	press := map[string]float64{"LKAS_SWITCH": 1, "TURN_SIGNALS": turnSignalLeft}
	release := map[string]float64{"LKAS_SWITCH": 0}

	feed(t, m, d, tr, fbSteerLevers, press)
	assert.False(t, tr.State().LaneAssistEnabled)
	assert.True(t, tr.State().LeftBlinker)

	// held switch does not toggle again
	feed(t, m, d, tr, fbSteerLevers, press)
	assert.False(t, tr.State().LaneAssistEnabled)

	feed(t, m, d, tr, fbSteerLevers, release)
	assert.False(t, tr.State().LaneAssistEnabled)
	assert.False(t, tr.State().LeftBlinker)

	feed(t, m, d, tr, fbSteerLevers, press)
	assert.True(t, tr.State().LaneAssistEnabled)
}

func TestFeedbackDecoderIgnoresOtherFrames(t *testing.T) {
	m := loadVehicleDBC(t)
	d, err := newFeedbackDecoder(m)
	require.NoError(t, err)

	// our own steering command is on the bus too
	f, err := m.EncodeFrame("STEERING_LKA", nil)
	require.NoError(t, err)
	_, tracked, err := d.Decode(f.ID, f.Data[:f.Length])
	assert.NoError(t, err)
	assert.False(t, tracked)

	_, tracked, err = d.Decode(180, []byte{0x00})
	assert.True(t, tracked)
	assert.Error(t, err, "short SPEED frame")
}

func TestFeedbackDecoderNeedsFrames(t *testing.T) {
	m, err := utils.LoadCANMap(filepath.Join("..", "utils", "testdata", "lkas_subset.dbc"))
	require.NoError(t, err)
	_, err = newFeedbackDecoder(m)
	assert.Error(t, err)
}
