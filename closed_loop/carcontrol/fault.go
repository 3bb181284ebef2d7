package carcontrol

// FaultParams control the steering cutout after an EPS fault.
type FaultParams struct {
	Codes []int `toml:"codes"` // LKA states that count as a fault
	// Cutout windows in cycles. The override source gets the shorter one.
	Cutout         uint64 `toml:"cutout"`
	OverrideCutout uint64 `toml:"override_cutout"`
}

func (p FaultParams) isFault(code int) bool {
	for _, c := range p.Codes {
		if c == code {
			return true
		}
	}
	return false
}

func (p FaultParams) window(overrideActive bool) uint64 {
	if overrideActive {
		return p.OverrideCutout
	}
	return p.Cutout
}

// FaultState remembers the last cycle a known fault code was reported.
type FaultState struct {
	Seen           bool
	LastFaultCycle uint64
}

// StepFault records a fault if code is one of the known fault codes.
func StepFault(prev FaultState, code int, cycle uint64, p FaultParams) FaultState {
	if p.isFault(code) {
		return FaultState{Seen: true, LastFaultCycle: cycle}
	}
	return prev
}

// InCutout reports whether cycle is within window cycles of the last fault.
func (f FaultState) InCutout(cycle, window uint64) bool {
	return f.Seen && cycle >= f.LastFaultCycle && cycle-f.LastFaultCycle < window
}

// applyCutout zeroes steering when disabled or inside the cutout window and
// drops the request when nothing is being or was just applied.
func applyCutout(steer, last int, enabled, inCutout bool) (int, bool) {
	if !enabled || inCutout {
		return 0, false
	}
	if steer == 0 && last == 0 {
		return 0, false
	}
	return steer, true
}
