// Package eclipse models the fraction of the Sun's disk blocked by Earth
// as seen from the spacecraft (spec.md §4.3): a binary cylindrical shadow
// or a linearly-ramped conical penumbra.
package eclipse

import (
	"math"

	"github.com/arobi/cubesat-eps/constants"
	"github.com/arobi/cubesat-eps/vector"
)

// Method selects the shadow model.
type Method int

const (
	Cylindrical Method = iota
	Conical
)

func (m Method) String() string {
	switch m {
	case Cylindrical:
		return "cylindrical"
	case Conical:
		return "conical"
	default:
		return "unknown"
	}
}

// Model evaluates shadow fraction under a fixed Method.
type Model struct {
	Method Method
}

// New returns a Model for the requested method.
func New(method Method) Model {
	return Model{Method: method}
}

// ShadowFraction returns s in [0,1]: 0 fully sunlit, 1 fully shadowed.
// rSat is the satellite ECI position; rSunUnit is the Earth-to-Sun unit
// vector.
func (m Model) ShadowFraction(rSat, rSunUnit vector.Vec3) float64 {
	switch m.Method {
	case Conical:
		return conicalFraction(rSat, rSunUnit)
	default:
		return cylindricalFraction(rSat, rSunUnit)
	}
}

func cylindricalFraction(rSat, rSunUnit vector.Vec3) float64 {
	antiSun := rSunUnit.Neg()
	along := rSat.Dot(antiSun) // projection onto the anti-sun axis
	if along <= 0 {
		return 0
	}
	// Perpendicular distance from the satellite to the anti-sun axis.
	closest := antiSun.Scale(along)
	perp := rSat.Sub(closest).Magnitude()
	if perp < constants.EarthRadius {
		return 1
	}
	return 0
}

func conicalFraction(rSat, rSunUnit vector.Vec3) float64 {
	dSun := constants.AU
	dEarth := rSat.Magnitude()
	if dEarth == 0 {
		return 0
	}

	thetaSun := math.Asin(clamp(constants.SunRadius/dSun, -1, 1))
	thetaEarth := math.Asin(clamp(constants.EarthRadius/dEarth, -1, 1))
	thetaSep := rSat.Neg().AngleTo(rSunUnit)

	switch {
	case thetaSep >= thetaEarth+thetaSun:
		return 0
	case thetaSep <= thetaEarth-thetaSun:
		return 1
	default:
		s := (thetaEarth + thetaSun - thetaSep) / (2 * thetaSun)
		return clamp(s, 0, 1)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Transition marks an entry (sunlit->shadowed) or exit (shadowed->sunlit)
// crossing of the s=0.5 threshold.
type Transition struct {
	Index int
	Time  float64
	Enter bool // true = entering shadow, false = exiting shadow
}

// FindTransitions scans aligned position/sun-direction/time series for
// zero-crossings of (shadow fraction - 0.5).
func (m Model) FindTransitions(rSat, rSun []vector.Vec3, t []float64) []Transition {
	n := len(t)
	if n == 0 {
		return nil
	}
	var out []Transition
	prev := m.ShadowFraction(rSat[0], rSun[0]) - 0.5
	for i := 1; i < n; i++ {
		cur := m.ShadowFraction(rSat[i], rSun[i]) - 0.5
		if (prev <= 0 && cur > 0) || (prev < 0 && cur >= 0) {
			out = append(out, Transition{Index: i, Time: t[i], Enter: true})
		} else if (prev >= 0 && cur < 0) || (prev > 0 && cur <= 0) {
			out = append(out, Transition{Index: i, Time: t[i], Enter: false})
		}
		prev = cur
	}
	return out
}
