// Package loads implements the spacecraft load scheduler: a profile of
// named load modes gated by trigger condition, evaluated as a
// time-averaged continuous draw rather than a square-wave gate so the
// ODE right-hand side stays continuous (spec.md §4.9).
package loads

import "github.com/arobi/cubesat-eps/simerr"

// Trigger selects when a load mode contributes power draw.
type Trigger int

const (
	Always Trigger = iota
	Sunlight
	Eclipse
)

func (t Trigger) String() string {
	switch t {
	case Always:
		return "always"
	case Sunlight:
		return "sunlight"
	case Eclipse:
		return "eclipse"
	default:
		return "unknown"
	}
}

// matches reports whether the trigger contributes given the current
// eclipse state.
func (t Trigger) matches(inEclipse bool) bool {
	switch t {
	case Always:
		return true
	case Sunlight:
		return !inEclipse
	case Eclipse:
		return inEclipse
	default:
		return false
	}
}

// Mode is a single named load.
type Mode struct {
	Name       string  `yaml:"name"`
	PowerW     float64 `yaml:"power_w"`
	DutyCycle  float64 `yaml:"duty_cycle"`
	Trigger    Trigger `yaml:"trigger"`
	Priority   int     `yaml:"priority"`
}

// Validate checks spec.md §3's LoadMode invariants.
func (m Mode) Validate() error {
	if m.PowerW < 0 {
		return simerr.NewConfigError("loads", "PowerW", "must be non-negative")
	}
	if m.DutyCycle < 0 || m.DutyCycle > 1 {
		return simerr.NewConfigError("loads", "DutyCycle", "must be in [0,1]")
	}
	return nil
}

// Profile is an ordered, construction-time-fixed list of load modes.
type Profile struct {
	modes []Mode
}

// NewProfile validates and wraps a list of modes. The returned Profile's
// mode list is never mutated afterward (spec.md §3: "mutated only at
// construction time").
func NewProfile(modes []Mode) (*Profile, error) {
	for _, m := range modes {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	cp := make([]Mode, len(modes))
	copy(cp, modes)
	return &Profile{modes: cp}, nil
}

// Modes returns a defensive copy of the profile's modes.
func (p *Profile) Modes() []Mode {
	cp := make([]Mode, len(p.modes))
	copy(cp, p.modes)
	return cp
}

// PowerAt returns the total continuous-average power draw at time t,
// given the current eclipse state: the sum over triggered modes of
// power_w * duty_cycle.
func (p *Profile) PowerAt(t float64, inEclipse bool) float64 {
	var total float64
	for _, m := range p.modes {
		if m.Trigger.matches(inEclipse) {
			total += m.PowerW * m.DutyCycle
		}
	}
	return total
}

// ActiveModes returns the subset of modes currently contributing (i.e.
// whose trigger matches the eclipse state), regardless of duty cycle.
// Time t is accepted for interface symmetry with PowerAt; triggers in
// this model do not otherwise depend on t.
func (p *Profile) ActiveModes(t float64, inEclipse bool) []Mode {
	var active []Mode
	for _, m := range p.modes {
		if m.Trigger.matches(inEclipse) {
			active = append(active, m)
		}
	}
	return active
}

// OrbitAveragePower returns the duty-cycle-weighted average power over
// one orbit given the fraction of the orbit spent in eclipse, used by
// the power budget report.
func (p *Profile) OrbitAveragePower(eclipseFraction float64) float64 {
	sunlightFraction := 1 - eclipseFraction
	var total float64
	for _, m := range p.modes {
		avg := m.PowerW * m.DutyCycle
		switch m.Trigger {
		case Always:
			total += avg
		case Sunlight:
			total += avg * sunlightFraction
		case Eclipse:
			total += avg * eclipseFraction
		}
	}
	return total
}
