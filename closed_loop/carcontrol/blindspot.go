package carcontrol

// Side selects a blind-spot radar.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// diagnostic ECU sub-addresses on 0x750
func (s Side) ecu() byte {
	if s == SideLeft {
		return 0x41
	}
	return 0x42
}

type BlindspotAction int

const (
	BlindspotEnable BlindspotAction = iota
	BlindspotDisable
	BlindspotPoll
)

func (a BlindspotAction) String() string {
	switch a {
	case BlindspotEnable:
		return "enable"
	case BlindspotDisable:
		return "disable"
	default:
		return "poll"
	}
}

type BlindspotCommand struct {
	Side   Side
	Action BlindspotAction
}

// BlindspotParams configure when diagnostic mode is entered and polled.
type BlindspotParams struct {
	StartupDelay   uint64  `toml:"startup_delay"`
	LeftThreshold  uint32  `toml:"left_threshold"`
	RightThreshold uint32  `toml:"right_threshold"`
	RightMinSpeed  float64 `toml:"right_min_speed"` // polling at low speed switches the camera off
	PollPeriod     uint64  `toml:"poll_period"`
	LeftPollPhase  uint64  `toml:"left_poll_phase"`
	RightPollPhase uint64  `toml:"right_poll_phase"`
	LeftPollAfter  uint64  `toml:"left_poll_after"`
	RightPollAfter uint64  `toml:"right_poll_after"`
}

type BlindspotSide struct {
	Enabled      bool
	BlinkCounter uint32
}

type BlindspotState struct {
	PollCounter uint64
	Left        BlindspotSide
	Right       BlindspotSide
}

type BlindspotInput struct {
	LeftBlinker  bool
	RightBlinker bool
	Speed        float64
}

// StepBlindspot advances the per-side diagnostic mode machine by one cycle
// and returns the diagnostic commands to send, in send order.
func StepBlindspot(prev BlindspotState, in BlindspotInput, p BlindspotParams) (BlindspotState, []BlindspotCommand) {
	s := prev
	s.PollCounter++

	var cmds []BlindspotCommand
	if s.PollCounter > p.StartupDelay {
		switch {
		case in.LeftBlinker:
			s.Left.BlinkCounter++
		case in.RightBlinker:
			s.Right.BlinkCounter++
		default:
			s.Left.BlinkCounter = 0
			s.Right.BlinkCounter = 0
			if s.Left.Enabled {
				cmds = append(cmds, BlindspotCommand{SideLeft, BlindspotDisable})
				s.Left.Enabled = false
			}
			if s.Right.Enabled {
				cmds = append(cmds, BlindspotCommand{SideRight, BlindspotDisable})
				s.Right.Enabled = false
			}
		}

		if s.Left.BlinkCounter > p.LeftThreshold && !s.Left.Enabled {
			cmds = append(cmds, BlindspotCommand{SideLeft, BlindspotEnable})
			s.Left.Enabled = true
		}
		if s.Right.BlinkCounter > p.RightThreshold && !s.Right.Enabled && in.Speed > p.RightMinSpeed {
			cmds = append(cmds, BlindspotCommand{SideRight, BlindspotEnable})
			s.Right.Enabled = true
		}
	}

	// left and right poll out of phase so they never share a cycle
	if s.Left.Enabled && s.PollCounter%p.PollPeriod == p.LeftPollPhase && s.PollCounter > p.LeftPollAfter {
		cmds = append(cmds, BlindspotCommand{SideLeft, BlindspotPoll})
	}
	if s.Right.Enabled && s.PollCounter%p.PollPeriod == p.RightPollPhase && s.PollCounter > p.RightPollAfter {
		cmds = append(cmds, BlindspotCommand{SideRight, BlindspotPoll})
	}
	return s, cmds
}
