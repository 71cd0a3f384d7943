// Package environment computes seasonal solar flux, Earth albedo and IR
// flux, and beta angle (spec.md §4.4). Solar flux seasonality is always
// applied; there is no option to disable it.
package environment

import (
	"math"

	"github.com/arobi/cubesat-eps/constants"
)

// SolarFluxAtEpoch returns the seasonal solar constant for a given
// day-of-year (fractional days allowed).
func SolarFluxAtEpoch(doy float64) float64 {
	return constants.SolarConstant * (1 + 0.0334*math.Cos(2*math.Pi*(doy-3)/constants.DaysPerYear))
}

// AlbedoFlux approximates the Earth-reflected solar flux incident at a
// given altitude above Earth's surface.
func AlbedoFlux(altitude, doy float64) float64 {
	ratio := constants.EarthRadius / (constants.EarthRadius + altitude)
	return 0.3 * ratio * ratio * SolarFluxAtEpoch(doy)
}

// EarthIRFlux approximates outgoing longwave Earth IR flux at altitude.
func EarthIRFlux(altitude float64) float64 {
	ratio := constants.EarthRadius / (constants.EarthRadius + altitude)
	return 237.0 * ratio * ratio
}

// BetaAngle returns the angle between the orbit plane and the Sun
// direction, given inclination i, RAAN Omega, and ecliptic longitude
// lambdaSun, all in radians. Standard formula for a circular orbit:
// sin(beta) = cos(lambdaSun)*sin(Omega)*sin(i) - sin(lambdaSun)*cos(eps)*cos(Omega)*sin(i)
// + sin(lambdaSun)*sin(eps)*cos(i)
func BetaAngle(inclination, raan, lambdaSun float64) float64 {
	eps := constants.ObliquityDeg * math.Pi / 180.0
	sinBeta := math.Cos(lambdaSun)*math.Sin(raan)*math.Sin(inclination) -
		math.Sin(lambdaSun)*math.Cos(eps)*math.Cos(raan)*math.Sin(inclination) +
		math.Sin(lambdaSun)*math.Sin(eps)*math.Cos(inclination)
	if sinBeta > 1 {
		sinBeta = 1
	} else if sinBeta < -1 {
		sinBeta = -1
	}
	return math.Asin(sinBeta)
}
