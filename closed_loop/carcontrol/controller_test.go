package carcontrol

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lkas-actuation-core/utils"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BlindspotDebug = false
	return cfg
}

func newTestController(t *testing.T, cfg Config, opts ...Option) (*Controller, *fakeEncoder) {
	t.Helper()
	enc := newFakeEncoder()
	opts = append([]Option{WithLogger(utils.NopLogger())}, opts...)
	c, err := NewController(cfg, enc, opts...)
	require.NoError(t, err)
	return c, enc
}

func engaged(cycle uint64) CycleInput {
	return CycleInput{
		Cycle:     cycle,
		Enabled:   true,
		State:     VehicleState{SpeedMPS: 20, LaneAssistEnabled: true},
		Actuators: ActuatorCommand{Steer: 0.5},
	}
}

func TestNewControllerRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Accel.Min = 1
	_, err := NewController(cfg, newFakeEncoder())
	assert.Error(t, err)

	bad := StaticMessage{Address: 0x100, Cars: []CarModel{CarPrius}}
	_, err = NewController(testConfig(), newFakeEncoder(), WithStaticTable([]StaticMessage{bad}))
	assert.Error(t, err)
}

func TestControllerRampsTorque(t *testing.T) {
	c, enc := newTestController(t, testConfig())
	_, out := c.Update(engaged(0))
	assert.Equal(t, 10, out.Steer)
	assert.True(t, out.SteerRequest)
	assert.Equal(t, 10.0, enc.last[msgSteerLKA]["STEER_TORQUE_CMD"])

	_, out = c.Update(engaged(1))
	assert.Equal(t, 20, out.Steer)
	assert.Equal(t, 20, c.State().LastSteer)
}

func TestControllerFaultCutout(t *testing.T) {
	c, _ := newTestController(t, testConfig())

	in := engaged(0)
	in.State.SteerFaultCode = 3
	_, out := c.Update(in)
	assert.Zero(t, out.Steer)
	assert.False(t, out.SteerRequest)
	assert.True(t, out.InCutout)

	for cycle := uint64(1); cycle < 200; cycle++ {
		_, out = c.Update(engaged(cycle))
		require.Zero(t, out.Steer, "cycle %d", cycle)
		require.False(t, out.SteerRequest, "cycle %d", cycle)
	}

	_, out = c.Update(engaged(200))
	assert.False(t, out.InCutout)
	assert.Equal(t, 10, out.Steer)
	assert.True(t, out.SteerRequest)

	st := c.Stats()
	assert.Equal(t, uint64(1), st.FaultCycles)
	assert.Equal(t, uint64(200), st.CutoutCycles)
	assert.Equal(t, uint64(201), st.Cycles)
}

func TestControllerOverrideCutoutIsShorter(t *testing.T) {
	ovr := &ManualOverride{}
	ovr.Set(Override{Active: true, Steer: 500})
	c, _ := newTestController(t, testConfig(), WithOverrideSource(ovr))

	in := engaged(0)
	in.State.SteerFaultCode = 25
	c.Update(in)
	for cycle := uint64(1); cycle < 100; cycle++ {
		_, out := c.Update(engaged(cycle))
		require.True(t, out.InCutout, "cycle %d", cycle)
	}
	_, out := c.Update(engaged(100))
	assert.False(t, out.InCutout)
	assert.Equal(t, 10, out.Steer)
}

func TestControllerSanityGates(t *testing.T) {
	tests := []struct {
		name     string
		angle    float64
		override *Override
		laneAsst bool
		want     int
	}{
		{"normal", 20, nil, true, 10},
		{"steer source above bound", 150, nil, true, 0},
		{"override within its bound", 150, &Override{Active: true, Steer: 500}, true, 10},
		{"override above its bound", 450, &Override{Active: true, Steer: 500}, true, 0},
		{"lane assist off", 20, nil, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.override != nil {
				m := &ManualOverride{}
				m.Set(*tt.override)
				opts = append(opts, WithOverrideSource(m))
			}
			c, _ := newTestController(t, testConfig(), opts...)
			in := engaged(1)
			in.State.SteerAngleDeg = tt.angle
			in.State.LaneAssistEnabled = tt.laneAsst
			_, out := c.Update(in)
			assert.Equal(t, tt.want, out.Steer)
		})
	}
}

func TestManualOverrideClear(t *testing.T) {
	m := &ManualOverride{}
	assert.Equal(t, Override{}, m.Produce(CycleInput{}))
	m.Set(Override{Active: true, Angle: 3})
	assert.Equal(t, Override{Active: true, Angle: 3}, m.Produce(CycleInput{}))
	m.Clear()
	assert.False(t, m.Produce(CycleInput{}).Active)
}

type fixedSteer struct{ req SteerRequest }

func (f fixedSteer) Produce(CycleInput) SteerRequest { return f.req }

func TestControllerSteerSource(t *testing.T) {
	c, _ := newTestController(t, testConfig(), WithSteerSource(fixedSteer{SteerRequest{Steer: -1}}))
	_, out := c.Update(engaged(0))
	assert.Equal(t, -10, out.Steer)
}

func TestControllerNudgeWhileDisengaged(t *testing.T) {
	c, enc := newTestController(t, testConfig())
	in := CycleInput{
		State:          VehicleState{SpeedMPS: 20, LaneAssistEnabled: true},
		LeftLaneDepart: true,
	}
	_, out := c.Update(in)
	assert.Equal(t, -3, out.Steer)
	assert.True(t, out.SteerRequest)
	assert.Equal(t, -3.0, enc.last[msgSteerLKA]["STEER_TORQUE_CMD"])

	in.Cycle = 1
	_, out = c.Update(in)
	assert.Equal(t, -6, out.Steer)

	in.Cycle = 2
	in.LeftLaneDepart = false
	_, out = c.Update(in)
	assert.Zero(t, out.Steer)
	assert.False(t, out.SteerRequest)
}

func TestControllerCancel(t *testing.T) {
	c, _ := newTestController(t, testConfig())

	_, out := c.Update(CycleInput{State: VehicleState{CruiseStatus: 1}})
	assert.True(t, out.CancelRequest, "cruise on while disengaged")

	in := engaged(1)
	in.State.CruiseStatus = 1
	_, out = c.Update(in)
	assert.False(t, out.CancelRequest)

	in.Cycle = 2
	in.CancelRequest = true
	_, out = c.Update(in)
	assert.True(t, out.CancelRequest)
}

func TestControllerStandstillRequest(t *testing.T) {
	cfg := testConfig()
	cfg.StandstillRequest = true
	c, _ := newTestController(t, cfg)

	in := engaged(0)
	in.State.Standstill = true
	in.State.CruiseStatus = 8
	_, out := c.Update(in)
	assert.True(t, out.StandstillRequest)

	in.Cycle = 1
	_, out = c.Update(in)
	assert.True(t, out.StandstillRequest, "held while cruise stays in standstill state")

	in.Cycle = 2
	in.State.CruiseStatus = 7
	_, out = c.Update(in)
	assert.False(t, out.StandstillRequest)

	in.Cycle = 3
	in.State.CruiseStatus = 8
	_, out = c.Update(in)
	assert.False(t, out.StandstillRequest, "no new rising edge")
}

func TestControllerStandstillRequestDisabled(t *testing.T) {
	c, _ := newTestController(t, testConfig())
	in := engaged(0)
	in.State.Standstill = true
	in.State.CruiseStatus = 8
	_, out := c.Update(in)
	assert.False(t, out.StandstillRequest)
}

func TestControllerAngleControl(t *testing.T) {
	cfg := testConfig()
	cfg.AngleControl = true
	cfg.EnableAPGS = true
	c, enc := newTestController(t, cfg)

	in := engaged(0)
	in.State.SpeedMPS = 0
	in.State.IPASActive = true
	in.Actuators.SteerAngle = 100

	_, out := c.Update(in)
	assert.True(t, out.AngleEnabled)
	assert.InDelta(t, 5, out.Angle, 1e-9)
	assert.Equal(t, 3.0, enc.last[msgSteerIPAS]["STATE"])

	in.Cycle = 1
	_, out = c.Update(in)
	assert.InDelta(t, 10, out.Angle, 1e-9)

	in.Cycle = 2
	in.State.IPASActive = false
	in.State.SteerAngleDeg = 12
	_, out = c.Update(in)
	assert.True(t, out.AngleEnabled, "one disagreeing cycle is tolerated")
	assert.InDelta(t, 12, out.Angle, 1e-9)
}

func TestControllerLeadAssumedAtLowSpeed(t *testing.T) {
	cfg := testConfig()
	cfg.EnableDSU = true
	c, enc := newTestController(t, cfg)

	in := engaged(0)
	in.State.SpeedMPS = 5
	c.Update(in)
	assert.Equal(t, 1.0, enc.last[msgACCControl]["MINI_CAR"])

	in.Cycle = 3
	in.State.SpeedMPS = 20
	c.Update(in)
	assert.Equal(t, 0.0, enc.last[msgACCControl]["MINI_CAR"])
}

func TestControllerUIOnAlertEdge(t *testing.T) {
	c, _ := newTestController(t, testConfig())
	in := engaged(101)
	in.VisualAlert = VisualAlertSteerRequired

	frames, _ := c.Update(in)
	assert.GreaterOrEqual(t, indexOf(frames, 0x412), 0)

	in.Cycle = 102
	frames, _ = c.Update(in)
	assert.Equal(t, -1, indexOf(frames, 0x412))

	in.Cycle = 103
	in.VisualAlert = VisualAlertNone
	frames, _ = c.Update(in)
	assert.GreaterOrEqual(t, indexOf(frames, 0x412), 0)
}

func TestControllerBlindspotDebug(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Blindspot.StartupDelay = 0
	cfg.Blindspot.LeftPollAfter = 1
	cfg.Blindspot.RightPollAfter = 5
	c, _ := newTestController(t, cfg)

	in := engaged(0)
	in.State.LeftBlinker = true
	var frames []Frame
	for cycle := uint64(0); cycle < 10; cycle++ {
		in.Cycle = cycle
		frames, _ = c.Update(in)
	}
	require.NotEmpty(t, frames)
	assert.Equal(t, uint32(0x750), frames[0].ID)
	assert.True(t, c.State().Blindspot.Left.Enabled)
}

func randomInput(r *rand.Rand, cycle uint64) CycleInput {
	return CycleInput{
		Cycle:   cycle,
		Enabled: r.Intn(20) > 0,
		State: VehicleState{
			SpeedMPS:          r.Float64() * 30,
			SteerAngleDeg:     r.Float64()*60 - 30,
			MotorTorque:       float64(r.Intn(1000) - 500),
			SteerFaultCode:    []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 3}[r.Intn(10)],
			LeftBlinker:       r.Intn(5) == 0,
			IPASActive:        r.Intn(2) == 0,
			CruiseStatus:      r.Intn(9),
			LaneAssistEnabled: true,
		},
		Actuators: ActuatorCommand{
			Gas:        r.Float64(),
			Brake:      r.Float64(),
			Steer:      r.Float64()*2 - 1,
			SteerAngle: r.Float64()*200 - 100,
		},
		VisualAlert:     VisualAlert(r.Intn(4)),
		AudibleAlert:    AudibleAlert(r.Intn(8)),
		LeftLaneDepart:  r.Intn(7) == 0,
		RightLaneDepart: r.Intn(7) == 0,
		Lead:            r.Intn(2) == 0,
	}
}

func TestControllerDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableDSU = true
	cfg.EnableAPGS = true
	cfg.GasInterceptor = true
	a, _ := newTestController(t, cfg)
	b, _ := newTestController(t, cfg)

	r := rand.New(rand.NewSource(42))
	for cycle := uint64(0); cycle < 1500; cycle++ {
		in := randomInput(r, cycle)
		fa, oa := a.Update(in)
		fb, ob := b.Update(in)
		if diff := cmp.Diff(fa, fb); diff != "" {
			t.Fatalf("cycle %d frames differ (-a +b):\n%s", cycle, diff)
		}
		require.Equal(t, oa, ob)
	}
	assert.Equal(t, a.State(), b.State())
	assert.NotEqual(t, a.Session(), b.Session())
}

func TestControllerSafetyBounds(t *testing.T) {
	cfg := DefaultConfig()
	c, _ := newTestController(t, cfg)
	r := rand.New(rand.NewSource(5))
	last := 0
	for cycle := uint64(0); cycle < 3000; cycle++ {
		in := randomInput(r, cycle)
		_, out := c.Update(in)

		require.LessOrEqual(t, out.Steer, cfg.Steer.Max)
		require.GreaterOrEqual(t, out.Steer, -cfg.Steer.Max)
		require.GreaterOrEqual(t, out.Accel, cfg.Accel.Min)
		require.LessOrEqual(t, out.Accel, cfg.Accel.Max)
		if out.InCutout {
			require.Zero(t, out.Steer, "cycle %d", cycle)
			require.False(t, out.SteerRequest, "cycle %d", cycle)
		}
		if !in.Enabled && out.SteerRequest && abs(last) < cfg.Nudge.Cap {
			require.LessOrEqual(t, abs(out.Steer-last), cfg.Nudge.Step, "cycle %d", cycle)
		}
		last = out.Steer
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type recordingSender struct {
	batches [][]Frame
	err     error
}

func (s *recordingSender) SendBatch(_ context.Context, frames []Frame) error {
	s.batches = append(s.batches, frames)
	return s.err
}

func TestControllerCycleSends(t *testing.T) {
	c, _ := newTestController(t, testConfig())
	s := &recordingSender{}

	out := c.Cycle(context.Background(), engaged(0), s)
	assert.Equal(t, 10, out.Steer)
	require.Len(t, s.batches, 1)
	assert.Equal(t, uint32(0x2e4), s.batches[0][0].ID)

	s.err = errors.New("bus off")
	out = c.Cycle(context.Background(), engaged(1), s)
	assert.Equal(t, 20, out.Steer, "send failure does not stall the loop")
	assert.Len(t, s.batches, 2)
	assert.Equal(t, uint64(2), c.Stats().Cycles)
}

func TestControllerEncodeErrorsInStats(t *testing.T) {
	c, enc := newTestController(t, testConfig())
	enc.fail[msgSteerLKA] = true
	frames, _ := c.Update(engaged(1))
	assert.Empty(t, frames)
	assert.Equal(t, uint64(1), c.Stats().EncodeErrors)
}
