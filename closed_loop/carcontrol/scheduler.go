package carcontrol

import "lkas-actuation-core/utils"

// Cadences in cycles at 100 Hz.
const (
	accelPeriod       = 3
	gasPeriod         = 2
	videoTargetPeriod = 10
	uiPeriod          = 100
	fcwPeriod         = 100
)

// ScheduleInput is what the scheduler needs from one controller cycle.
type ScheduleInput struct {
	Cycle            uint64
	Out              ControlOutput
	Blindspot        []BlindspotCommand
	HUD              HUDSignals
	SendUI           bool
	ForwardingCamera bool
	Lead             bool
	FollowDistance   bool
	LeftLine         bool
	RightLine        bool
	LeftLaneDepart   bool
	RightLaneDepart  bool
}

// Scheduler assembles the ordered outbound frame list for a cycle.
type Scheduler struct {
	enc            Encoder
	caps           Capabilities
	car            CarModel
	angleControl   bool
	gasInterceptor bool
	fcwExcluded    []CarModel
	static         []StaticMessage
	log            *utils.Logger

	failing      map[string]bool
	encodeErrors uint64
}

type SchedulerConfig struct {
	Capabilities   Capabilities
	Car            CarModel
	AngleControl   bool
	GasInterceptor bool
	FCWExcluded    []CarModel
	Static         []StaticMessage
}

func NewScheduler(enc Encoder, cfg SchedulerConfig, log *utils.Logger) *Scheduler {
	if log == nil {
		log = utils.NopLogger()
	}
	return &Scheduler{
		enc:            enc,
		caps:           cfg.Capabilities,
		car:            cfg.Car,
		angleControl:   cfg.AngleControl,
		gasInterceptor: cfg.GasInterceptor,
		fcwExcluded:    cfg.FCWExcluded,
		static:         cfg.Static,
		log:            log,
		failing:        map[string]bool{},
	}
}

// EncodeErrors is the number of frames dropped because they failed to encode.
func (s *Scheduler) EncodeErrors() uint64 { return s.encodeErrors }

// add appends f unless encoding failed, in which case the frame is skipped
// for this cycle. The failure is logged once until the message recovers.
func (s *Scheduler) add(frames []Frame, name string, f Frame, err error) []Frame {
	if err != nil {
		s.encodeErrors++
		if !s.failing[name] {
			s.failing[name] = true
			s.log.Error("encode %s failed, dropping until it recovers: %v", name, err)
		}
		return frames
	}
	if s.failing[name] {
		delete(s.failing, name)
		s.log.Info("encode %s recovered", name)
	}
	return append(frames, f)
}

// Assemble returns the frames to send this cycle in send order: blind-spot
// diagnostics, steer, angle, accel, gas, video targets, UI, FCW, then static
// rows in table order.
func (s *Scheduler) Assemble(in ScheduleInput) []Frame {
	frames := make([]Frame, 0, 32)
	cycle := in.Cycle
	out := in.Out

	for _, cmd := range in.Blindspot {
		frames = append(frames, blindspotFrame(cmd))
	}

	// Sent at 100 Hz even though the stock camera runs at 42 Hz; the EPS
	// rate limit is applied per message.
	if s.caps.Has(ECUCam) {
		var f Frame
		var err error
		if s.angleControl {
			f, err = steerCommand(s.enc, 0, false, cycle)
		} else {
			f, err = steerCommand(s.enc, out.Steer, out.SteerRequest, cycle)
		}
		frames = s.add(frames, msgSteerLKA, f, err)
	}

	if s.angleControl {
		f, err := ipasSteerCommand(s.enc, out.Angle, out.AngleEnabled, s.caps.Has(ECUAPGS))
		frames = s.add(frames, msgSteerIPAS, f, err)
	} else if s.caps.Has(ECUAPGS) {
		f, err := ipasSteerCommand(s.enc, 0, false, true)
		frames = s.add(frames, msgSteerIPAS, f, err)
	}

	// The cancel request is spammed even with lateral-only control.
	if (cycle%accelPeriod == 0 && s.caps.Has(ECUDSU)) || (out.CancelRequest && s.caps.Has(ECUCam)) {
		var f Frame
		var err error
		if s.caps.Has(ECUDSU) {
			f, err = accelCommand(s.enc, out.Accel, out.CancelRequest, out.StandstillRequest, in.Lead, in.FollowDistance)
		} else {
			f, err = accelCommand(s.enc, 0, out.CancelRequest, false, in.Lead, in.FollowDistance)
		}
		frames = s.add(frames, msgACCControl, f, err)
	}

	if cycle%gasPeriod == 0 && s.gasInterceptor {
		f, err := gasCommand(s.enc, out.Gas, cycle/gasPeriod)
		frames = s.add(frames, msgGasCommand, f, err)
	}

	if cycle%videoTargetPeriod == 0 && s.caps.Has(ECUCam) && !in.ForwardingCamera {
		for _, addr := range VideoTargetIDs {
			frames = append(frames, videoTarget(cycle/videoTargetPeriod, addr))
		}
	}

	if (cycle%uiPeriod == 0 || in.SendUI) && s.caps.Has(ECUCam) {
		f, err := uiCommand(s.enc, uiParams{
			hud:         in.HUD,
			leftLine:    in.LeftLine,
			rightLine:   in.RightLine,
			leftDepart:  in.LeftLaneDepart,
			rightDepart: in.RightLaneDepart,
		})
		frames = s.add(frames, msgLKASHUD, f, err)
	}

	if cycle%fcwPeriod == 0 && s.caps.Has(ECUDSU) && !containsCar(s.fcwExcluded, s.car) {
		f, err := fcwCommand(s.enc, in.HUD.FCW)
		frames = s.add(frames, msgACCHUD, f, err)
	}

	for _, m := range s.static {
		if !m.due(cycle) || !s.caps.Has(m.ECU) || !containsCar(m.Cars, s.car) {
			continue
		}
		if m.ECU == ECUCam && in.ForwardingCamera {
			continue
		}
		frames = append(frames, m.Frame(cycle))
	}
	return frames
}
