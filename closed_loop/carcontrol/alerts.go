package carcontrol

// HUDSignals are the discrete lines the LKAS/ACC HUD messages carry.
type HUDSignals struct {
	SteerRequired bool
	FCW           bool
	ChimeRepeat   bool
	// ChimeSingle covers every other audible alert; the HUD has no way to
	// tell them apart.
	ChimeSingle bool
}

func (h HUDSignals) Any() bool {
	return h.SteerRequired || h.FCW || h.ChimeRepeat || h.ChimeSingle
}

// MapAlerts maps abstract alert kinds onto HUD signal lines.
func MapAlerts(visual VisualAlert, audible AudibleAlert) HUDSignals {
	var h HUDSignals
	switch visual {
	case VisualAlertFCW:
		h.FCW = true
	case VisualAlertSteerRequired:
		h.SteerRequired = true
	}
	switch audible {
	case AudibleAlertNone:
	case AudibleAlertChimeWarningRepeat:
		h.ChimeRepeat = true
	default:
		h.ChimeSingle = true
	}
	return h
}

// stepAlertEdge flips the remembered alert flag on either edge and reports
// whether the UI must be refreshed now.
func stepAlertEdge(active bool, h HUDSignals) (bool, bool) {
	if h.Any() != active {
		return !active, true
	}
	return active, false
}
