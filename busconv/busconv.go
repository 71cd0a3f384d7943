// Package busconv models the power-bus converter efficiency curve and the
// algebraic bus-balance solve for battery current (spec.md §4.10).
package busconv

import "github.com/arobi/cubesat-eps/simerr"

// ConverterConfig describes a bus converter. If RatedPower <= 0 the
// converter uses a constant NominalEfficiency; otherwise a piecewise
// curve (two quadratic pieces and a linear droop) pinned at four load
// fractions is used.
type ConverterConfig struct {
	NominalEfficiency float64 `yaml:"nominal_efficiency"`
	RatedPower        float64 `yaml:"rated_power,omitempty"`
	PeakEfficiency    float64 `yaml:"peak_efficiency,omitempty"`   // at ~0.5*rated
	LightLoadEff      float64 `yaml:"light_load_efficiency,omitempty"` // at load -> 0
}

// Validate checks the invariants implied by spec.md §3's Converter.
func (c ConverterConfig) Validate() error {
	if c.NominalEfficiency <= 0 || c.NominalEfficiency > 1 {
		return simerr.NewConfigError("busconv", "NominalEfficiency", "must be in (0,1]")
	}
	if c.RatedPower > 0 {
		if c.PeakEfficiency <= 0 || c.PeakEfficiency > 1 {
			return simerr.NewConfigError("busconv", "PeakEfficiency", "must be in (0,1] when RatedPower is set")
		}
		if c.LightLoadEff <= 0 || c.LightLoadEff > c.PeakEfficiency {
			return simerr.NewConfigError("busconv", "LightLoadEff", "must be in (0, PeakEfficiency] when RatedPower is set")
		}
		if c.NominalEfficiency > c.PeakEfficiency {
			return simerr.NewConfigError("busconv", "NominalEfficiency", "must be <= PeakEfficiency when RatedPower is set")
		}
	}
	return nil
}

// Converter evaluates efficiency and performs the bus-balance solve.
type Converter struct {
	cfg ConverterConfig
}

// New validates cfg and returns a Converter.
func New(cfg ConverterConfig) (*Converter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Converter{cfg: cfg}, nil
}

// Efficiency returns eta_c(P_load): constant if the converter is not
// load-dependent, otherwise a piecewise curve pinned at
// (0, light_load_eff), (0.5*rated, peak_eff), (rated, nominal_eff), and
// (1.5*rated, nominal_eff - droop): a quadratic rise to the peak, a
// quadratic descent to the declared nominal value at rated power, and a
// linear droop below nominal that is held constant beyond 1.5x rated.
func (c *Converter) Efficiency(pLoad float64) float64 {
	if c.cfg.RatedPower <= 0 {
		return c.cfg.NominalEfficiency
	}

	rated := c.cfg.RatedPower
	frac := pLoad / rated
	if frac < 0 {
		frac = 0
	}

	const droopFrac = 0.02 // fractional droop from nominal by 1.5x rated
	peak := c.cfg.PeakEfficiency
	light := c.cfg.LightLoadEff
	nominal := c.cfg.NominalEfficiency
	droop := nominal * droopFrac

	switch {
	case frac <= 0.5:
		// Quadratic rise from light-load to peak.
		x := frac / 0.5
		return light + (peak-light)*x*(2-x)
	case frac <= 1.0:
		// Quadratic descent from peak at 0.5*rated to the declared
		// nominal efficiency at rated power.
		x := (frac - 0.5) / 0.5
		return peak - (peak-nominal)*x*x
	default:
		// Mild droop past rated power, saturating at 1.5x rated.
		x := frac - 1.0
		if x > 0.5 {
			x = 0.5
		}
		end := nominal - droop
		return nominal - (nominal-end)*(x/0.5)
	}
}

// NetBatteryCurrent returns I_bat such that the bus balances: in
// sunlight P_solar*eta_c = P_load + P_bat_charge (I_bat<0 charging); in
// eclipse P_bat_discharge*eta_c = P_load (solar contributes nothing).
// I_bat > 0 means discharging.
func (c *Converter) NetBatteryCurrent(pSolar, pLoad, vBat float64) float64 {
	eta := c.Efficiency(pLoad)
	netPower := pLoad - pSolar*eta

	var pBat float64
	if netPower > 0 {
		pBat = netPower / eta
	} else {
		pBat = netPower * eta
	}
	return pBat / vBat
}
