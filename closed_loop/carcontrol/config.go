package carcontrol

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the per-installation controller configuration.
type Config struct {
	Car            CarModel `toml:"car"`
	EnableCamera   bool     `toml:"enable_camera"`
	EnableDSU      bool     `toml:"enable_dsu"`
	EnableAPGS     bool     `toml:"enable_apgs"`
	GasInterceptor bool     `toml:"gas_interceptor"`
	// AngleControl routes steering through the IPAS angle message instead of
	// LKA torque. Nothing switches it at runtime.
	AngleControl bool `toml:"angle_control"`
	// BlindspotDebug enables the blind-spot diagnostic mode machine.
	BlindspotDebug bool `toml:"blindspot_debug"`
	// StandstillRequest asks the PCM to hold at standstill on entry.
	StandstillRequest bool `toml:"standstill_request"`

	FCWExcludedCars []CarModel `toml:"fcw_excluded_cars"`
	// StaticTable is a TOML file with [[static_message]] rows. Empty uses
	// the built-in table.
	StaticTable string `toml:"static_table"`

	Steer TorqueLimits `toml:"steer"`
	Angle AngleLimits  `toml:"angle"`
	Accel AccelLimits  `toml:"accel"`
	Fault FaultParams  `toml:"fault"`
	Nudge NudgeParams  `toml:"nudge"`

	Blindspot BlindspotParams `toml:"blindspot"`

	// IPASDisagreeLimit is how many consecutive cycles the EPS may report
	// angle control inactive before arbitration drops it.
	IPASDisagreeLimit int `toml:"ipas_disagree_limit"`
	// Measured wheel angle above which torque is not applied, for the
	// lane-centering and override sources respectively.
	SteerSanityDeg    float64 `toml:"steer_sanity_deg"`
	OverrideSanityDeg float64 `toml:"override_sanity_deg"`
	// LeadAssumedBelow forces the lead flag at low speed so ACC can engage.
	LeadAssumedBelow float64 `toml:"lead_assumed_below"`
	// StandstillCruiseStatus is the cruise state that permits a standstill
	// request.
	StandstillCruiseStatus int `toml:"standstill_cruise_status"`
}

func DefaultConfig() Config {
	return Config{
		Car:             CarPrius,
		EnableCamera:    true,
		EnableDSU:       false,
		EnableAPGS:      false,
		BlindspotDebug:  true,
		FCWExcludedCars: append([]CarModel(nil), TSS2Cars...),
		Steer: TorqueLimits{
			Max:       1500,
			DeltaUp:   10,
			DeltaDown: 25,
			ErrorMax:  350,
		},
		Angle: AngleLimits{
			MaxBP:       []float64{0, 5},
			MaxV:        []float64{510, 300},
			DeltaBP:     []float64{0, 5, 15},
			DeltaWindup: []float64{5, 0.8, 0.15},
			DeltaUnwind: []float64{5, 3.5, 0.4},
		},
		Accel: AccelLimits{
			Max:               3.5,
			Min:               -4.0,
			HysteresisGap:     0.02,
			InterceptorOffset: 0.06,
		},
		Fault: FaultParams{
			Codes:          []int{3, 7, 9, 11, 25},
			Cutout:         200,
			OverrideCutout: 100,
		},
		Nudge: NudgeParams{
			Step:     3,
			Cap:      800,
			MinSpeed: 12.5,
		},
		Blindspot: BlindspotParams{
			StartupDelay:   1000,
			LeftThreshold:  9,
			RightThreshold: 5,
			RightMinSpeed:  6,
			PollPeriod:     20,
			LeftPollPhase:  0,
			RightPollPhase: 10,
			LeftPollAfter:  1001,
			RightPollAfter: 1005,
		},
		IPASDisagreeLimit:      10,
		SteerSanityDeg:         100,
		OverrideSanityDeg:      400,
		LeadAssumedBelow:       12,
		StandstillCruiseStatus: 8,
	}
}

// LoadConfig decodes a TOML file on top of DefaultConfig. Unknown keys are an
// error so a typo cannot silently keep a default limit.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if und := md.Undecoded(); len(und) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown keys %v", path, und)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Capabilities() Capabilities {
	var ecus []ECU
	if c.EnableCamera {
		ecus = append(ecus, ECUCam)
	}
	if c.EnableDSU {
		ecus = append(ecus, ECUDSU)
	}
	if c.EnableAPGS {
		ecus = append(ecus, ECUAPGS)
	}
	return NewCapabilities(ecus...)
}

func (c Config) Validate() error {
	var errs []error
	if c.Car == "" {
		errs = append(errs, errors.New("car must be set"))
	}
	if c.Steer.Max <= 0 || c.Steer.DeltaUp <= 0 || c.Steer.DeltaDown <= 0 || c.Steer.ErrorMax <= 0 {
		errs = append(errs, errors.New("steer limits must be positive"))
	}
	if err := c.Angle.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Accel.Min >= 0 || c.Accel.Max <= 0 {
		errs = append(errs, fmt.Errorf("accel range [%v, %v] must straddle zero", c.Accel.Min, c.Accel.Max))
	}
	if c.Accel.HysteresisGap < 0 {
		errs = append(errs, errors.New("accel hysteresis gap must be non-negative"))
	}
	if c.Fault.Cutout == 0 || c.Fault.OverrideCutout == 0 {
		errs = append(errs, errors.New("fault cutout windows must be positive"))
	}
	if c.Nudge.Cap < 0 || c.Nudge.Step < 0 || c.Nudge.Cap > c.Steer.Max {
		errs = append(errs, errors.New("nudge step and cap must be within [0, steer.max]"))
	}
	if c.Blindspot.PollPeriod == 0 {
		errs = append(errs, errors.New("blindspot poll period must be positive"))
	} else if c.Blindspot.LeftPollPhase == c.Blindspot.RightPollPhase {
		errs = append(errs, errors.New("blindspot poll phases must differ"))
	}
	if c.IPASDisagreeLimit < 0 {
		errs = append(errs, errors.New("ipas disagree limit must be non-negative"))
	}
	return errors.Join(errs...)
}
