// Package battery implements the equivalent-circuit battery model: an
// OCV(SoC) lookup table, Arrhenius-scaled series resistance, two R-C
// Thevenin relaxation branches, and series/parallel pack scaling
// (spec.md §4.8). Grounded on the teacher's discharge-curve lookup and
// config/derived-state split in Valkyrie's electric.BatteryModel.
package battery

import (
	"math"
	"sort"

	"github.com/arobi/cubesat-eps/constants"
	"github.com/arobi/cubesat-eps/simerr"
)

// OCVPoint is one entry of the open-circuit-voltage-vs-SoC table.
type OCVPoint struct {
	SoC     float64 `yaml:"soc"`
	Voltage float64 `yaml:"voltage"`
}

// CellParams describes a single cell's equivalent-circuit parameters.
type CellParams struct {
	CapacityAh              float64    `yaml:"capacity_ah"`
	NominalVoltage          float64    `yaml:"nominal_voltage"`
	MinVoltage               float64   `yaml:"min_voltage"`
	MaxVoltage               float64   `yaml:"max_voltage"`
	R0Ref                    float64   `yaml:"r0_ref"` // ohm, at RefTempK
	R1                       float64   `yaml:"r1"`
	C1                       float64   `yaml:"c1"`
	R2                       float64   `yaml:"r2"`
	C2                       float64   `yaml:"c2"`
	ActivationEnergyJPerMol  float64   `yaml:"activation_energy_j_per_mol"` // default 19000
	RefTempK                 float64   `yaml:"ref_temp_k"`                  // default 298.15
	OCVTable                 []OCVPoint `yaml:"ocv_table"`
}

// DefaultCellParams fills in the spec's documented defaults.
func DefaultCellParams() CellParams {
	return CellParams{
		ActivationEnergyJPerMol: 19000,
		RefTempK:                constants.DefaultRefTemp,
	}
}

// Validate checks the invariants in spec.md §3: positivity, min<nominal<max,
// and a monotone non-decreasing OCV table over SoC in [0,1].
func (p CellParams) Validate() error {
	if p.CapacityAh <= 0 {
		return simerr.NewConfigError("battery", "CapacityAh", "must be positive")
	}
	if p.MinVoltage <= 0 || p.NominalVoltage <= p.MinVoltage || p.MaxVoltage <= p.NominalVoltage {
		return simerr.NewConfigError("battery", "Voltage", "must satisfy 0 < MinVoltage < NominalVoltage < MaxVoltage")
	}
	if p.R0Ref <= 0 || p.R1 <= 0 || p.C1 <= 0 || p.R2 <= 0 || p.C2 <= 0 {
		return simerr.NewConfigError("battery", "RC", "R0Ref, R1, C1, R2, C2 must be positive")
	}
	if p.ActivationEnergyJPerMol <= 0 {
		return simerr.NewConfigError("battery", "ActivationEnergyJPerMol", "must be positive")
	}
	if p.RefTempK <= 0 {
		return simerr.NewConfigError("battery", "RefTempK", "must be positive")
	}
	if len(p.OCVTable) < 2 {
		return simerr.NewConfigError("battery", "OCVTable", "must have at least two points")
	}
	sorted := make([]OCVPoint, len(p.OCVTable))
	copy(sorted, p.OCVTable)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SoC < sorted[j].SoC })
	for i, pt := range sorted {
		if pt.SoC < 0 || pt.SoC > 1 {
			return simerr.NewConfigError("battery", "OCVTable", "SoC entries must lie in [0,1]")
		}
		if i > 0 && pt.Voltage < sorted[i-1].Voltage {
			return simerr.NewConfigError("battery", "OCVTable", "voltage must be non-decreasing with SoC")
		}
	}
	return nil
}

// Cell is a validated single-cell model.
type Cell struct {
	p      CellParams
	sorted []OCVPoint
}

// NewCell validates params and returns a Cell.
func NewCell(p CellParams) (*Cell, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sorted := make([]OCVPoint, len(p.OCVTable))
	copy(sorted, p.OCVTable)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SoC < sorted[j].SoC })
	return &Cell{p: p, sorted: sorted}, nil
}

// OCV returns the open-circuit voltage for a given state of charge, by
// linear interpolation on the table with clamping at the endpoints.
func (c *Cell) OCV(soc float64) float64 {
	tbl := c.sorted
	if soc <= tbl[0].SoC {
		return tbl[0].Voltage
	}
	last := len(tbl) - 1
	if soc >= tbl[last].SoC {
		return tbl[last].Voltage
	}
	for i := 0; i < last; i++ {
		lo, hi := tbl[i], tbl[i+1]
		if soc >= lo.SoC && soc <= hi.SoC {
			frac := (soc - lo.SoC) / (hi.SoC - lo.SoC)
			return lo.Voltage + frac*(hi.Voltage-lo.Voltage)
		}
	}
	return tbl[last].Voltage
}

// R0 returns the Arrhenius-scaled series resistance at temperature t (K).
func (c *Cell) R0(t float64) float64 {
	return c.p.R0Ref * arrhenius(c.p.ActivationEnergyJPerMol, t, c.p.RefTempK)
}

func arrhenius(eaJPerMol, t, tRef float64) float64 {
	return math.Exp(eaJPerMol / constants.GasConstant * (1/t - 1/tRef))
}

// Params returns the cell's validated parameters.
func (c *Cell) Params() CellParams { return c.p }

// Pack is a series/parallel arrangement of identical cells.
type Pack struct {
	Cell     *Cell
	NSeries   int
	NParallel int
}

// NewPack validates and builds a pack from a validated cell.
func NewPack(cell *Cell, nSeries, nParallel int) (*Pack, error) {
	if cell == nil {
		return nil, simerr.NewConfigError("battery", "Cell", "must not be nil")
	}
	if nSeries < 1 {
		return nil, simerr.NewConfigError("battery", "NSeries", "must be >= 1")
	}
	if nParallel < 1 {
		return nil, simerr.NewConfigError("battery", "NParallel", "must be >= 1")
	}
	return &Pack{Cell: cell, NSeries: nSeries, NParallel: nParallel}, nil
}

// Derated returns a new, independent Pack whose total capacity has been
// replaced with capacityAh, leaving all other cell parameters unchanged.
// Used by the lifetime driver to produce a derated copy of a simulation's
// battery each segment without mutating (or aliasing) the original
// (spec.md §4.14, Design Note on cross-segment mutation).
func (p *Pack) Derated(capacityAh float64) (*Pack, error) {
	if capacityAh <= 0 {
		return nil, simerr.NewConfigError("battery", "capacityAh", "must be positive")
	}
	cellParams := p.Cell.Params()
	cellParams.CapacityAh = capacityAh / float64(p.NParallel)
	newCell, err := NewCell(cellParams)
	if err != nil {
		return nil, err
	}
	return NewPack(newCell, p.NSeries, p.NParallel)
}

// CapacityAh returns the pack's total amp-hour capacity.
func (p *Pack) CapacityAh() float64 {
	return p.Cell.Params().CapacityAh * float64(p.NParallel)
}

// NominalVoltage returns the pack's nominal terminal voltage.
func (p *Pack) NominalVoltage() float64 {
	return p.Cell.Params().NominalVoltage * float64(p.NSeries)
}

// MinVoltage and MaxVoltage scale the cell bounds by NSeries.
func (p *Pack) MinVoltage() float64 { return p.Cell.Params().MinVoltage * float64(p.NSeries) }
func (p *Pack) MaxVoltage() float64 { return p.Cell.Params().MaxVoltage * float64(p.NSeries) }

func (p *Pack) scaleR(cellR float64) float64 {
	return cellR * float64(p.NSeries) / float64(p.NParallel)
}

func (p *Pack) scaleC(cellC float64) float64 {
	return cellC * float64(p.NParallel) / float64(p.NSeries)
}

// R0 returns the pack's Arrhenius-scaled series resistance at temperature t.
func (p *Pack) R0(t float64) float64 {
	return p.scaleR(p.Cell.R0(t))
}

// R1, C1, R2, C2 return the pack-scaled Thevenin branch parameters.
func (p *Pack) R1() float64 { return p.scaleR(p.Cell.Params().R1) }
func (p *Pack) C1() float64 { return p.scaleC(p.Cell.Params().C1) }
func (p *Pack) R2() float64 { return p.scaleR(p.Cell.Params().R2) }
func (p *Pack) C2() float64 { return p.scaleC(p.Cell.Params().C2) }

// OCV returns the pack open-circuit voltage at a given SoC.
func (p *Pack) OCV(soc float64) float64 {
	return p.Cell.OCV(soc) * float64(p.NSeries)
}

// TerminalVoltage returns the pack terminal voltage under load, per
// spec.md §4.8. iOut > 0 means discharging.
func (p *Pack) TerminalVoltage(soc, iOut, t, vRC1, vRC2 float64) float64 {
	return p.OCV(soc) - iOut*p.R0(t) - vRC1 - vRC2
}

// Derivatives returns dSoC/dt, dVrc1/dt, dVrc2/dt for the given pack
// terminal current and RC branch states.
func (p *Pack) Derivatives(iOut, vRC1, vRC2, soc float64) (dSoC, dVRC1, dVRC2 float64) {
	capAh := p.CapacityAh()
	dSoC = -iOut / (capAh * 3600)
	r1, c1 := p.R1(), p.C1()
	r2, c2 := p.R2(), p.C2()
	dVRC1 = iOut/c1 - vRC1/(r1*c1)
	dVRC2 = iOut/c2 - vRC2/(r2*c2)
	return dSoC, dVRC1, dVRC2
}
