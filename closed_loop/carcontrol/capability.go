package carcontrol

import (
	"fmt"
	"strings"
)

// ECU is an actuator role this installation can stand in for.
type ECU uint8

const (
	ECUCam  ECU = 1 << iota // camera: LKA steering and HUD
	ECUDSU                  // driving support unit: ACC
	ECUAPGS                 // park assist: IPAS angle steering
)

func (e ECU) String() string {
	switch e {
	case ECUCam:
		return "cam"
	case ECUDSU:
		return "dsu"
	case ECUAPGS:
		return "apgs"
	default:
		return fmt.Sprintf("ecu(%d)", uint8(e))
	}
}

func ParseECU(s string) (ECU, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cam", "camera":
		return ECUCam, nil
	case "dsu":
		return ECUDSU, nil
	case "apgs", "apg":
		return ECUAPGS, nil
	}
	return 0, fmt.Errorf("unknown ecu %q", s)
}

func (e *ECU) UnmarshalText(text []byte) error {
	v, err := ParseECU(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Capabilities is the set of emulated ECUs. Fixed for a session.
type Capabilities uint8

func NewCapabilities(ecus ...ECU) Capabilities {
	var c Capabilities
	for _, e := range ecus {
		c |= Capabilities(e)
	}
	return c
}

func (c Capabilities) Has(e ECU) bool {
	return c&Capabilities(e) != 0
}

func (c Capabilities) String() string {
	var parts []string
	for _, e := range []ECU{ECUCam, ECUDSU, ECUAPGS} {
		if c.Has(e) {
			parts = append(parts, e.String())
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}
