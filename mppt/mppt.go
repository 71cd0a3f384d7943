// Package mppt models maximum-power-point-tracking efficiency: a fixed
// peak efficiency, or a power-dependent exponential droop (spec.md §4.7).
package mppt

import (
	"math"

	"github.com/arobi/cubesat-eps/simerr"
)

// Config describes a tracker. RatedPower <= 0 selects constant
// peak-efficiency tracking.
type Config struct {
	PeakEff    float64 `yaml:"peak_eff"`
	RatedPower float64 `yaml:"rated_power,omitempty"`
	MinEff     float64 `yaml:"min_eff,omitempty"`
}

// Validate checks the invariants implied by spec.md §3's MpptModel.
func (c Config) Validate() error {
	if c.PeakEff <= 0 || c.PeakEff > 1 {
		return simerr.NewConfigError("mppt", "PeakEff", "must be in (0, 1]")
	}
	if c.RatedPower > 0 {
		if c.MinEff <= 0 || c.MinEff > c.PeakEff {
			return simerr.NewConfigError("mppt", "MinEff", "must be in (0, PeakEff] when RatedPower is set")
		}
	}
	return nil
}

// Model evaluates tracking efficiency for a validated Config.
type Model struct {
	cfg Config
}

// New validates cfg and returns a Model.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg}, nil
}

// TrackingEfficiency returns peak efficiency if the model is not
// power-dependent, otherwise the exponential droop toward MinEff as
// generated power p falls short of RatedPower.
func (m *Model) TrackingEfficiency(p float64) float64 {
	if m.cfg.RatedPower <= 0 {
		return m.cfg.PeakEff
	}
	return m.cfg.PeakEff - (m.cfg.PeakEff-m.cfg.MinEff)*math.Exp(-5*p/m.cfg.RatedPower)
}
