// Package solarcell implements the single-diode solar cell model with a
// fill-factor maximum-power-point approximation (spec.md §4.5).
package solarcell

import (
	"math"

	"github.com/arobi/cubesat-eps/constants"
	"github.com/arobi/cubesat-eps/simerr"
)

// siliconBandgapEV is the assumed diode bandgap used for the Arrhenius
// temperature dependence of the saturation current. The spec gives no
// per-cell bandgap parameter, so a representative silicon value is used;
// see DESIGN.md.
const siliconBandgapEV = 1.12

// Params describes a solar cell's electrical and thermal characteristics.
type Params struct {
	AreaM2          float64
	VocRef          float64 // V
	IscRef          float64 // A
	VmpRef          float64 // V
	ImpRef          float64 // A
	IdealityFactor  float64
	Rs              float64 // ohm
	Rsh             float64 // ohm
	DVocDT          float64 // V/K
	DIscDT          float64 // A/K
	DPmpDT          float64 // W/K
	RefTempK        float64 // default 301.15
	RefIrradiance   float64 // default 1361
	Absorptance     float64
	Emittance       float64
	PackingFactor   float64
}

// DefaultParams fills in the spec's documented defaults for the fields an
// implementer is allowed to omit.
func DefaultParams() Params {
	return Params{
		RefTempK:      301.15,
		RefIrradiance: constants.SolarConstant,
	}
}

// Validate checks the invariants in spec.md §3: all positive, Vmp<Voc,
// Imp<Isc.
func (p Params) Validate() error {
	positive := map[string]float64{
		"AreaM2": p.AreaM2, "VocRef": p.VocRef, "IscRef": p.IscRef,
		"VmpRef": p.VmpRef, "ImpRef": p.ImpRef, "IdealityFactor": p.IdealityFactor,
		"Rsh": p.Rsh, "RefTempK": p.RefTempK, "RefIrradiance": p.RefIrradiance,
		"PackingFactor": p.PackingFactor,
	}
	for field, v := range positive {
		if v <= 0 {
			return simerr.NewConfigError("solarcell", field, "must be positive")
		}
	}
	if p.Rs < 0 {
		return simerr.NewConfigError("solarcell", "Rs", "must be non-negative")
	}
	if p.VmpRef >= p.VocRef {
		return simerr.NewConfigError("solarcell", "VmpRef", "must be less than VocRef")
	}
	if p.ImpRef >= p.IscRef {
		return simerr.NewConfigError("solarcell", "ImpRef", "must be less than IscRef")
	}
	return nil
}

// Cell is a validated solar cell model.
type Cell struct {
	p     Params
	i0Ref float64
}

// New validates params and precomputes the reference saturation current.
func New(p Params) (*Cell, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	vtRef := thermalVoltage(p.IdealityFactor, p.RefTempK)
	// Simplified reference-point solve (ignores Rs/Rsh, matching the
	// fill-factor approximation's own level of fidelity).
	i0Ref := p.IscRef / (math.Exp(p.VocRef/vtRef) - 1)
	return &Cell{p: p, i0Ref: i0Ref}, nil
}

func thermalVoltage(idealityFactor, tempK float64) float64 {
	return idealityFactor * constants.BoltzmannConstant * tempK / constants.ElementaryCharge
}

// photocurrent returns I_ph for irradiance G (W/m^2) and temperature T (K).
func (c *Cell) photocurrent(g, t float64) float64 {
	alphaI := c.p.DIscDT / c.p.IscRef
	return c.p.IscRef * (g / c.p.RefIrradiance) * (1 + alphaI*(t-c.p.RefTempK))
}

// vocAtTemp returns V_oc_T for temperature T.
func (c *Cell) vocAtTemp(t float64) float64 {
	betaV := c.p.DVocDT / c.p.VocRef
	return c.p.VocRef * (1 + betaV*(t-c.p.RefTempK))
}

// saturationCurrent returns I_0 at temperature T via Arrhenius scaling of
// the reference-point value.
func (c *Cell) saturationCurrent(t float64) float64 {
	eg := siliconBandgapEV * constants.ElementaryCharge
	exponent := -eg / (c.p.IdealityFactor * constants.BoltzmannConstant) * (1/t - 1/c.p.RefTempK)
	return c.i0Ref * math.Pow(t/c.p.RefTempK, 3) * math.Exp(exponent)
}

// IV evaluates the single-diode equation I(V) for each entry in vs at
// irradiance g and temperature t, solving the implicit equation by
// Newton's method at each voltage.
func (c *Cell) IV(g, t float64, vs []float64) []float64 {
	out := make([]float64, len(vs))
	if g <= 0 {
		return out
	}

	iph := c.photocurrent(g, t)
	i0 := c.saturationCurrent(t)
	vt := thermalVoltage(c.p.IdealityFactor, t)

	for idx, v := range vs {
		out[idx] = solveDiodeCurrent(iph, i0, vt, c.p.Rs, c.p.Rsh, v)
	}
	return out
}

func solveDiodeCurrent(iph, i0, vt, rs, rsh, v float64) float64 {
	i := iph // initial guess
	for iter := 0; iter < 50; iter++ {
		arg := (v + i*rs) / vt
		expTerm := math.Exp(arg)
		f := iph - i0*(expTerm-1) - (v+i*rs)/rsh - i
		df := -i0*expTerm*(rs/vt) - rs/rsh - 1
		if df == 0 {
			break
		}
		step := f / df
		i -= step
		if math.Abs(step) < 1e-12 {
			break
		}
	}
	if i < 0 {
		return 0
	}
	return i
}

// MPP returns the maximum-power-point voltage and current for irradiance
// g and temperature t, via the fill-factor approximation (spec.md §4.5).
// Power is zero for g<=0.
func (c *Cell) MPP(g, t float64) (vmp, imp float64) {
	p := c.PowerAtMPP(g, t)
	if p <= 0 {
		return 0, 0
	}
	vocT := c.vocAtTemp(t)
	vmp = vocT * (c.p.VmpRef / c.p.VocRef)
	if vmp <= 0 {
		return 0, 0
	}
	imp = p / vmp
	return vmp, imp
}

// PowerAtMPP returns the maximum power point wattage for irradiance g and
// temperature t. Zero for g<=0 without invoking the diode solve, per the
// panel-level edge policy in spec.md §4.5/§4.6.
func (c *Cell) PowerAtMPP(g, t float64) float64 {
	if g <= 0 {
		return 0
	}

	vocT := c.vocAtTemp(t)
	vt := thermalVoltage(c.p.IdealityFactor, t)
	vocNorm := vocT / vt
	ff := (vocNorm - math.Log(vocNorm+0.72)) / (vocNorm + 1)

	iscEff := c.p.IscRef * (g / c.p.RefIrradiance) * (1 + (c.p.DIscDT/c.p.IscRef)*(t-c.p.RefTempK))
	if iscEff <= 0 {
		return 0
	}

	p := iscEff * vocT * ff * (1 - c.p.Rs*iscEff/vocT)
	if p < 0 {
		return 0
	}
	return p
}

// Params returns the cell's validated parameters.
func (c *Cell) Params() Params { return c.p }
