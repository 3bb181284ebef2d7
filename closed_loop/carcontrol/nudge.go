package carcontrol

// NudgeParams drive the lane-departure nudge applied while disengaged.
type NudgeParams struct {
	Step     int     `toml:"step"`
	Cap      int     `toml:"cap"`
	MinSpeed float64 `toml:"min_speed"`
}

type nudgeInput struct {
	enabled      bool
	inCutout     bool
	speed        float64
	leftDepart   bool
	rightDepart  bool
	leftBlinker  bool
	rightBlinker bool
}

// nudge steers away from a detected lane departure by Step from the last
// applied torque. When both sides depart in the same cycle the left nudge
// wins. Nothing is applied during a fault cutout.
func nudge(steer int, req bool, last int, in nudgeInput, p NudgeParams) (int, bool) {
	if in.enabled || in.inCutout || in.speed <= p.MinSpeed {
		return steer, req
	}
	if in.leftDepart && !in.leftBlinker {
		return max(last-p.Step, -p.Cap), true
	}
	if in.rightDepart && !in.rightBlinker {
		return min(last+p.Step, p.Cap), true
	}
	return steer, req
}
