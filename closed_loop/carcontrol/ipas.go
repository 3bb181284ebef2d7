package carcontrol

// IPASState is the angle-control arbitration state.
type IPASState struct {
	Enabled      bool
	ResetCounter int
}

// StepIPAS advances angle-control arbitration by one cycle. Entry is
// immediate once the system is enabled; leaving requires the EPS to report
// inactive for more than disagreeLimit consecutive cycles.
func StepIPAS(prev IPASState, systemEnabled, hwActive bool, disagreeLimit int) IPASState {
	if !systemEnabled {
		return IPASState{}
	}
	if !prev.Enabled {
		return IPASState{Enabled: true}
	}

	next := prev
	if hwActive {
		next.ResetCounter = 0
	} else {
		next.ResetCounter++
	}
	if next.ResetCounter > disagreeLimit {
		return IPASState{}
	}
	return next
}
