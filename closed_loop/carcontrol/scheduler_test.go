package carcontrol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(enc Encoder, cfg SchedulerConfig) *Scheduler {
	if cfg.Car == "" {
		cfg.Car = CarPrius
	}
	if cfg.FCWExcluded == nil {
		cfg.FCWExcluded = TSS2Cars
	}
	return NewScheduler(enc, cfg, nil)
}

var priusCamStatic = []uint32{0x367, 0x414, 0x466, 0x489, 0x48a, 0x48b, 0x4d3, 0x130, 0x240, 0x241, 0x244, 0x245, 0x248}

func TestAssembleCycleZeroOrder(t *testing.T) {
	s := newTestScheduler(newFakeEncoder(), SchedulerConfig{
		Capabilities: NewCapabilities(ECUCam),
		Static:       DefaultStaticTable(),
	})
	frames := s.Assemble(ScheduleInput{Cycle: 0})

	want := []uint32{0x2e4}
	want = append(want, VideoTargetIDs...)
	want = append(want, 0x412)
	want = append(want, priusCamStatic...)
	if diff := cmp.Diff(want, frameIDs(frames)); diff != "" {
		t.Errorf("frame order mismatch (-want +got):\n%s", diff)
	}

	for _, f := range frames[1 : 1+len(VideoTargetIDs)] {
		assert.Equal(t, 1, f.Bus)
	}
}

func TestAssembleOffCycle(t *testing.T) {
	s := newTestScheduler(newFakeEncoder(), SchedulerConfig{
		Capabilities: NewCapabilities(ECUCam),
		Static:       DefaultStaticTable(),
	})
	assert.Equal(t, []uint32{0x2e4}, frameIDs(s.Assemble(ScheduleInput{Cycle: 1})))
	assert.Equal(t, []uint32{0x2e4, 0x412}, frameIDs(s.Assemble(ScheduleInput{Cycle: 1, SendUI: true})))
}

func TestAssembleForwardingCamera(t *testing.T) {
	s := newTestScheduler(newFakeEncoder(), SchedulerConfig{
		Capabilities: NewCapabilities(ECUCam),
		Static:       DefaultStaticTable(),
	})
	frames := s.Assemble(ScheduleInput{Cycle: 0, ForwardingCamera: true})
	assert.Equal(t, []uint32{0x2e4, 0x412}, frameIDs(frames))
}

func TestAssembleBlindspotFirst(t *testing.T) {
	s := newTestScheduler(newFakeEncoder(), SchedulerConfig{Capabilities: NewCapabilities(ECUCam)})
	frames := s.Assemble(ScheduleInput{
		Cycle:     7,
		Blindspot: []BlindspotCommand{{SideLeft, BlindspotDisable}, {SideRight, BlindspotEnable}},
	})
	require.Len(t, frames, 3)
	assert.Equal(t, []uint32{0x750, 0x750, 0x2e4}, frameIDs(frames))
	assert.Equal(t, byte(0x41), frames[0].Data[0])
	assert.Equal(t, byte(0x42), frames[1].Data[0])
}

func TestAssembleDSU(t *testing.T) {
	enc := newFakeEncoder()
	s := newTestScheduler(enc, SchedulerConfig{
		Capabilities: NewCapabilities(ECUCam, ECUDSU),
		Static:       DefaultStaticTable(),
	})
	frames := s.Assemble(ScheduleInput{
		Cycle: 0,
		Out:   ControlOutput{Accel: 1.2, StandstillRequest: true},
		HUD:   HUDSignals{FCW: true},
		Lead:  true,
	})

	iSteer, iAccel, iUI, iFCW := indexOf(frames, 0x2e4), indexOf(frames, 0x343), indexOf(frames, 0x412), indexOf(frames, 0x411)
	require.True(t, iSteer >= 0 && iAccel >= 0 && iUI >= 0 && iFCW >= 0)
	assert.Less(t, iSteer, iAccel)
	assert.Less(t, iAccel, indexOf(frames, VideoTargetIDs[0]))
	assert.Less(t, iUI, iFCW)
	assert.Less(t, iFCW, indexOf(frames, 0x128))

	acc := enc.last[msgACCControl]
	assert.Equal(t, 1.2, acc["ACCEL_CMD"])
	assert.Equal(t, 0.0, acc["RELEASE_STANDSTILL"])
	assert.Equal(t, 1.0, acc["MINI_CAR"])
	assert.Equal(t, 1.0, enc.last[msgACCHUD]["FCW"])

	// accel only every third cycle
	assert.Equal(t, -1, indexOf(s.Assemble(ScheduleInput{Cycle: 1}), 0x343))
	assert.GreaterOrEqual(t, indexOf(s.Assemble(ScheduleInput{Cycle: 3}), 0x343), 0)
}

func TestAssembleFCWExcluded(t *testing.T) {
	s := newTestScheduler(newFakeEncoder(), SchedulerConfig{
		Capabilities: NewCapabilities(ECUCam, ECUDSU),
		Car:          CarCorollaTSS2,
		Static:       DefaultStaticTable(),
	})
	frames := s.Assemble(ScheduleInput{Cycle: 0})
	assert.Equal(t, -1, indexOf(frames, 0x411))
	assert.GreaterOrEqual(t, indexOf(frames, 0x343), 0)
}

func TestAssembleCancelWithoutDSU(t *testing.T) {
	enc := newFakeEncoder()
	s := newTestScheduler(enc, SchedulerConfig{Capabilities: NewCapabilities(ECUCam)})
	frames := s.Assemble(ScheduleInput{Cycle: 1, Out: ControlOutput{Accel: 2, CancelRequest: true, StandstillRequest: true}})
	assert.Equal(t, []uint32{0x2e4, 0x343}, frameIDs(frames))

	acc := enc.last[msgACCControl]
	assert.Equal(t, 1.0, acc["CANCEL_REQ"])
	assert.Equal(t, 0.0, acc["ACCEL_CMD"])
	assert.Equal(t, 1.0, acc["RELEASE_STANDSTILL"])
}

func TestAssembleGasInterceptor(t *testing.T) {
	enc := newFakeEncoder()
	s := newTestScheduler(enc, SchedulerConfig{GasInterceptor: true})

	frames := s.Assemble(ScheduleInput{Cycle: 0, Out: ControlOutput{Gas: 0.5}})
	assert.Equal(t, []uint32{0x200}, frameIDs(frames))
	assert.Equal(t, map[string]float64{
		"ENABLE":        1,
		"COUNTER_PEDAL": 0,
		"GAS_COMMAND":   127.5,
		"GAS_COMMAND2":  127.5,
	}, enc.last[msgGasCommand])

	assert.Empty(t, s.Assemble(ScheduleInput{Cycle: 1, Out: ControlOutput{Gas: 0.5}}))

	s.Assemble(ScheduleInput{Cycle: 34})
	assert.Equal(t, map[string]float64{"ENABLE": 0, "COUNTER_PEDAL": 1}, enc.last[msgGasCommand])
}

func TestAssembleAngleControl(t *testing.T) {
	enc := newFakeEncoder()
	s := newTestScheduler(enc, SchedulerConfig{
		Capabilities: NewCapabilities(ECUCam, ECUAPGS),
		AngleControl: true,
	})
	frames := s.Assemble(ScheduleInput{Cycle: 1, Out: ControlOutput{Steer: 300, SteerRequest: true, Angle: -10, AngleEnabled: true}})
	assert.Equal(t, []uint32{0x2e4, 0x266}, frameIDs(frames))

	assert.Equal(t, 0.0, enc.last[msgSteerLKA]["STEER_TORQUE_CMD"])
	assert.Equal(t, 0.0, enc.last[msgSteerLKA]["STEER_REQUEST"])
	assert.Equal(t, map[string]float64{"STATE": 3, "DIRECTION_CMD": 0x60, "ANGLE": 4086, "SET_ME_X10": 0x10, "SET_ME_X40": 0x40}, enc.last[msgSteerIPAS])

	s = newTestScheduler(enc, SchedulerConfig{Capabilities: NewCapabilities(ECUCam), AngleControl: true})
	frames = s.Assemble(ScheduleInput{Cycle: 1, Out: ControlOutput{Angle: 12}})
	assert.Equal(t, []uint32{0x2e4, 0x167}, frameIDs(frames))
	assert.Equal(t, map[string]float64{"STATE": 1, "DIRECTION_CMD": 0x20, "ANGLE": 12, "SET_ME_X10": 0x10, "SET_ME_X40": 0x40}, enc.last[msgSteerIPASComa])
}

func TestAssembleAPGSWithoutAngleControl(t *testing.T) {
	enc := newFakeEncoder()
	s := newTestScheduler(enc, SchedulerConfig{Capabilities: NewCapabilities(ECUAPGS)})
	frames := s.Assemble(ScheduleInput{Cycle: 1, Out: ControlOutput{Angle: 30, AngleEnabled: true}})
	assert.Equal(t, []uint32{0x266}, frameIDs(frames))
	assert.Equal(t, map[string]float64{"STATE": 1, "DIRECTION_CMD": 0x40, "ANGLE": 0, "SET_ME_X10": 0x10, "SET_ME_X40": 0x40}, enc.last[msgSteerIPAS])
}

func TestAssembleDropsFailedEncode(t *testing.T) {
	enc := newFakeEncoder()
	enc.fail[msgLKASHUD] = true
	s := newTestScheduler(enc, SchedulerConfig{
		Capabilities: NewCapabilities(ECUCam),
		Static:       DefaultStaticTable(),
	})

	frames := s.Assemble(ScheduleInput{Cycle: 0})
	assert.Equal(t, -1, indexOf(frames, 0x412))
	assert.Len(t, frames, 1+len(VideoTargetIDs)+len(priusCamStatic))
	assert.Equal(t, uint64(1), s.EncodeErrors())

	s.Assemble(ScheduleInput{Cycle: 100})
	assert.Equal(t, uint64(2), s.EncodeErrors())

	delete(enc.fail, msgLKASHUD)
	frames = s.Assemble(ScheduleInput{Cycle: 200})
	assert.GreaterOrEqual(t, indexOf(frames, 0x412), 0)
	assert.Equal(t, uint64(2), s.EncodeErrors())
}

func TestAssembleUILines(t *testing.T) {
	enc := newFakeEncoder()
	s := newTestScheduler(enc, SchedulerConfig{Capabilities: NewCapabilities(ECUCam)})
	s.Assemble(ScheduleInput{
		Cycle:           0,
		HUD:             HUDSignals{SteerRequired: true, ChimeRepeat: true},
		LeftLine:        true,
		RightLaneDepart: true,
	})
	ui := enc.last[msgLKASHUD]
	assert.Equal(t, 1.0, ui["LEFT_LINE"])
	assert.Equal(t, 3.0, ui["RIGHT_LINE"])
	assert.Equal(t, 3.0, ui["BARRIERS"])
	assert.Equal(t, 1.0, ui["LDA_ALERT"])
	assert.Equal(t, 1.0, ui["REPEATED_BEEPS"])
	assert.Equal(t, 0.0, ui["TWO_BEEPS"])
}

func TestVideoTargetChecksum(t *testing.T) {
	f := videoTarget(0x1234, 0x340)
	assert.Equal(t, byte(0x34), f.Data[0])
	// len + addr bytes + payload bytes, low byte
	sum := 8 + 0x03 + 0x40 + 0x34 + 0x03 + 0xff
	assert.Equal(t, byte(sum&0xff), f.Data[7])
}
