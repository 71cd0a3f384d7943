// Package sungeom computes the Sun's inertial direction from its apparent
// annual motion along the ecliptic (spec.md §4.2). Sun-Earth distance
// is treated as a fixed 1 AU for direction purposes; seasonal flux
// variation is handled separately by the environment package.
package sungeom

import (
	"math"

	"github.com/arobi/cubesat-eps/constants"
	"github.com/arobi/cubesat-eps/vector"
)

var obliquity = constants.ObliquityDeg * math.Pi / 180.0

// EclipticLongitude returns lambda_sun(t) in radians for a mission epoch
// day-of-year doy0 and elapsed seconds t.
func EclipticLongitude(t, doy0 float64) float64 {
	return 2 * math.Pi * (doy0 + t/constants.SecondsPerDay) / constants.DaysPerYear
}

// DirectionECI returns the unit vector from Earth to the Sun in the ECI
// frame at time t for a mission epoch day-of-year doy0.
func DirectionECI(t, doy0 float64) vector.Vec3 {
	lambda := EclipticLongitude(t, doy0)
	sinL, cosL := math.Sin(lambda), math.Cos(lambda)
	return vector.Vec3{
		X: cosL,
		Y: math.Cos(obliquity) * sinL,
		Z: math.Sin(obliquity) * sinL,
	}
}
