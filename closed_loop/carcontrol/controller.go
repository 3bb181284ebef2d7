// Package carcontrol turns planner setpoints into the bounded, rate limited
// CAN frames sent to the steering and longitudinal actuators each cycle.
package carcontrol

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"lkas-actuation-core/utils"
)

// State is everything the controller carries from one cycle to the next.
type State struct {
	LastSteer      int
	LastAngle      float64
	AccelSteady    float64
	Fault          FaultState
	IPAS           IPASState
	Blindspot      BlindspotState
	AlertActive    bool
	LastStandstill bool
	StandstillReq  bool
	InCutout       bool
}

// Stats are running counters for monitoring.
type Stats struct {
	Cycles       uint64
	FaultCycles  uint64 // cycles that reported a known fault code
	CutoutCycles uint64 // cycles with steering forced off by a fault
	EncodeErrors uint64
	FramesBuilt  uint64
}

// Sender takes the assembled batch for one cycle.
type Sender interface {
	SendBatch(ctx context.Context, frames []Frame) error
}

type Option func(*Controller)

func WithSteerSource(s SteerSource) Option {
	return func(c *Controller) { c.steerSrc = s }
}

func WithOverrideSource(s OverrideSource) Option {
	return func(c *Controller) { c.override = s }
}

func WithTorqueLimiter(t TorqueLimiter) Option {
	return func(c *Controller) { c.torque = t }
}

func WithStaticTable(rows []StaticMessage) Option {
	return func(c *Controller) { c.static = rows }
}

func WithLogger(l *utils.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller owns all cross-cycle state. It is not safe for concurrent use;
// Update must be called from the control loop only.
type Controller struct {
	cfg      Config
	caps     Capabilities
	session  uuid.UUID
	angle    *AngleLimiter
	torque   TorqueLimiter
	steerSrc SteerSource
	override OverrideSource
	static   []StaticMessage
	sched    *Scheduler
	log      *utils.Logger

	state       State
	stats       Stats
	sendFailing bool
}

func NewController(cfg Config, enc Encoder, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	angle, err := NewAngleLimiter(cfg.Angle)
	if err != nil {
		return nil, fmt.Errorf("angle limiter: %w", err)
	}

	c := &Controller{
		cfg:      cfg,
		caps:     cfg.Capabilities(),
		session:  uuid.New(),
		angle:    angle,
		torque:   ToyotaTorqueLimiter{Limits: cfg.Steer},
		steerSrc: ActuatorSteer{},
		override: NoOverride{},
		static:   DefaultStaticTable(),
		log:      utils.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, m := range c.static {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	c.log = c.log.With("session", c.session.String())

	c.sched = NewScheduler(enc, SchedulerConfig{
		Capabilities:   c.caps,
		Car:            cfg.Car,
		AngleControl:   cfg.AngleControl,
		GasInterceptor: cfg.GasInterceptor,
		FCWExcluded:    cfg.FCWExcludedCars,
		Static:         c.static,
	}, c.log)

	c.log.Info("controller ready: car=%q ecus=%s angle_control=%v interceptor=%v static_rows=%d",
		cfg.Car, c.caps, cfg.AngleControl, cfg.GasInterceptor, len(c.static))
	return c, nil
}

func (c *Controller) Session() uuid.UUID         { return c.session }
func (c *Controller) Capabilities() Capabilities { return c.caps }
func (c *Controller) State() State               { return c.state }

func (c *Controller) Stats() Stats {
	s := c.stats
	s.EncodeErrors = c.sched.EncodeErrors()
	return s
}

// Cycle runs Update and hands the batch to the sender. A send error is
// logged once until a batch goes through again; the next cycle proceeds
// regardless.
func (c *Controller) Cycle(ctx context.Context, in CycleInput, sender Sender) ControlOutput {
	frames, out := c.Update(in)
	err := sender.SendBatch(ctx, frames)
	switch {
	case err != nil && !c.sendFailing:
		c.sendFailing = true
		c.log.Warn("cycle %d: send: %v", in.Cycle, err)
	case err == nil && c.sendFailing:
		c.sendFailing = false
		c.log.Info("cycle %d: send recovered", in.Cycle)
	}
	return out
}

// Update advances the controller by one cycle and returns the frames to send,
// in order, along with the computed control values.
func (c *Controller) Update(in CycleInput) ([]Frame, ControlOutput) {
	cfg := &c.cfg
	cs := in.State
	prev := c.state
	next := prev
	var out ControlOutput

	out.Accel, out.Gas, next.AccelSteady = applyAccel(in.Actuators, prev.AccelSteady, in.Enabled, cfg.GasInterceptor, cfg.Accel)

	req := c.steerSrc.Produce(in)
	ovr := c.override.Produce(in)

	desired := c.desiredTorque(cs, req, ovr)

	next.Fault = StepFault(prev.Fault, cs.SteerFaultCode, in.Cycle, cfg.Fault)
	if next.Fault.Seen && next.Fault.LastFaultCycle == in.Cycle {
		c.stats.FaultCycles++
		if !prev.InCutout {
			c.log.Warn("cycle %d: steer fault code %d, cutting steering", in.Cycle, cs.SteerFaultCode)
		}
	}
	next.InCutout = next.Fault.InCutout(in.Cycle, cfg.Fault.window(ovr.Active))
	if prev.InCutout && !next.InCutout {
		c.log.Info("cycle %d: steer fault cutout elapsed", in.Cycle)
	}
	if next.InCutout {
		c.stats.CutoutCycles++
	}
	out.InCutout = next.InCutout

	steer := c.torque.Limit(desired, prev.LastSteer, cs.MotorTorque)
	steer, steerReq := applyCutout(steer, prev.LastSteer, in.Enabled, next.InCutout)
	out.Steer, out.SteerRequest = nudge(steer, steerReq, prev.LastSteer, nudgeInput{
		enabled:      in.Enabled,
		inCutout:     next.InCutout,
		speed:        cs.SpeedMPS,
		leftDepart:   in.LeftLaneDepart,
		rightDepart:  in.RightLaneDepart,
		leftBlinker:  cs.LeftBlinker,
		rightBlinker: cs.RightBlinker,
	}, cfg.Nudge)

	next.IPAS = StepIPAS(prev.IPAS, in.Enabled, cs.IPASActive, cfg.IPASDisagreeLimit)
	if next.IPAS.Enabled != prev.IPAS.Enabled {
		c.log.Debug("cycle %d: angle control enabled=%v", in.Cycle, next.IPAS.Enabled)
	}
	out.AngleEnabled = next.IPAS.Enabled
	out.Angle = c.commandAngle(cs, req, ovr, next.IPAS.Enabled && !next.InCutout, prev.LastAngle)

	out.CancelRequest = in.CancelRequest || (!in.Enabled && cs.CruiseStatus != 0)

	next.StandstillReq = prev.StandstillReq
	if cfg.StandstillRequest && cs.Standstill && !prev.LastStandstill {
		next.StandstillReq = true
	}
	if cs.CruiseStatus != cfg.StandstillCruiseStatus {
		next.StandstillReq = false
	}
	out.StandstillRequest = next.StandstillReq

	next.LastSteer = out.Steer
	next.LastAngle = out.Angle
	next.LastStandstill = cs.Standstill

	var bsCmds []BlindspotCommand
	if cfg.BlindspotDebug {
		next.Blindspot, bsCmds = StepBlindspot(prev.Blindspot, BlindspotInput{
			LeftBlinker:  cs.LeftBlinker,
			RightBlinker: cs.RightBlinker,
			Speed:        cs.SpeedMPS,
		}, cfg.Blindspot)
		for _, cmd := range bsCmds {
			if cmd.Action != BlindspotPoll {
				c.log.Debug("cycle %d: blindspot %s diagnostic %s", in.Cycle, cmd.Side, cmd.Action)
			}
		}
	}

	hud := MapAlerts(in.VisualAlert, in.AudibleAlert)
	var sendUI bool
	next.AlertActive, sendUI = stepAlertEdge(prev.AlertActive, hud)

	lead := in.Lead || cs.SpeedMPS < cfg.LeadAssumedBelow

	frames := c.sched.Assemble(ScheduleInput{
		Cycle:            in.Cycle,
		Out:              out,
		Blindspot:        bsCmds,
		HUD:              hud,
		SendUI:           sendUI,
		ForwardingCamera: in.ForwardingCamera,
		Lead:             lead,
		FollowDistance:   in.FollowDistance,
		LeftLine:         in.LeftLine,
		RightLine:        in.RightLine,
		LeftLaneDepart:   in.LeftLaneDepart,
		RightLaneDepart:  in.RightLaneDepart,
	})

	c.state = next
	c.stats.Cycles++
	c.stats.FramesBuilt += uint64(len(frames))
	return frames, out
}

// desiredTorque picks the override or lane-centering torque, gated on the
// measured wheel angle and the lane-assist toggle.
func (c *Controller) desiredTorque(cs VehicleState, req SteerRequest, ovr Override) int {
	var torque int
	if ovr.Active {
		torque = int(math.Round(ovr.Steer))
		if math.Abs(cs.SteerAngleDeg) > c.cfg.OverrideSanityDeg {
			torque = 0
		}
	} else {
		torque = int(math.Round(req.Steer * float64(c.cfg.Steer.Max)))
		if math.Abs(cs.SteerAngleDeg) > c.cfg.SteerSanityDeg {
			torque = 0
		}
	}
	if !cs.LaneAssistEnabled {
		torque = 0
	}
	return torque
}

// commandAngle returns the limited angle command when angle control is both
// arbitrated on and accepted by the EPS, otherwise the measured angle so the
// limiter starts from where the wheel is.
func (c *Controller) commandAngle(cs VehicleState, req SteerRequest, ovr Override, allowed bool, last float64) float64 {
	if !allowed || !cs.IPASActive {
		return cs.SteerAngleDeg
	}
	target := req.Angle
	if ovr.Active && math.Abs(ovr.Angle) <= c.angle.MaxAngle(0) {
		target = ovr.Angle
	}
	return c.angle.Limit(target, last, cs.SpeedMPS)
}
