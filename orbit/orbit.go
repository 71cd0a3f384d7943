// Package orbit provides analytic circular Kepler propagation with an
// optional J2 secular RAAN drift (spec.md §4.1). No drag, no higher-order
// gravity terms, and no eccentricity are modeled — general-purpose orbit
// propagation is an explicit non-goal.
package orbit

import (
	"math"

	"github.com/arobi/cubesat-eps/constants"
	"github.com/arobi/cubesat-eps/simerr"
	"github.com/arobi/cubesat-eps/vector"
)

// Config describes a circular orbit. Immutable after construction, in the
// spirit of Design Note §9 ("no aliasing, no cross-segment mutation").
type Config struct {
	SemiMajorAxis float64 // a, meters
	Inclination   float64 // i, radians
	RAAN0         float64 // Omega_0, radians, at t=0
	EnableJ2      bool
}

// Orbit is the derived, immutable propagator built from a Config.
type Orbit struct {
	cfg Config

	meanMotion float64 // n, rad/s
	period     float64 // T, seconds
	raanRate   float64 // Omega-dot, rad/s
}

// New validates cfg and derives mean motion, period and RAAN drift rate.
func New(cfg Config) (*Orbit, error) {
	if cfg.SemiMajorAxis <= constants.EarthRadius {
		return nil, simerr.NewConfigError("orbit", "SemiMajorAxis", "must exceed Earth's radius")
	}
	if cfg.Inclination < 0 || cfg.Inclination > math.Pi {
		return nil, simerr.NewConfigError("orbit", "Inclination", "must be in [0, pi] radians")
	}

	n := math.Sqrt(constants.EarthMu / math.Pow(cfg.SemiMajorAxis, 3))
	period := 2 * math.Pi / n

	var raanRate float64
	if cfg.EnableJ2 {
		ratio := constants.EarthRadius / cfg.SemiMajorAxis
		raanRate = -1.5 * n * constants.J2 * ratio * ratio * math.Cos(cfg.Inclination)
	}

	return &Orbit{cfg: cfg, meanMotion: n, period: period, raanRate: raanRate}, nil
}

// MeanMotion returns n, rad/s.
func (o *Orbit) MeanMotion() float64 { return o.meanMotion }

// Period returns the orbital period T, seconds.
func (o *Orbit) Period() float64 { return o.period }

// RAANRate returns Omega-dot, rad/s (zero if J2 is disabled).
func (o *Orbit) RAANRate() float64 { return o.raanRate }

// RAANAt returns the instantaneous RAAN at time t.
func (o *Orbit) RAANAt(t float64) float64 {
	return o.cfg.RAAN0 + o.raanRate*t
}

// Altitude returns altitude above Earth's surface for a given ECI position.
func Altitude(pos vector.Vec3) float64 {
	return pos.Magnitude() - constants.EarthRadius
}

// StateAt propagates the orbit to scalar time t, starting at the ascending
// node at t=0 (argument of perigee fixed at zero for a circular orbit).
func (o *Orbit) StateAt(t float64) (pos, vel vector.Vec3) {
	nu := o.meanMotion * t // true anomaly == mean anomaly for a circular orbit
	raan := o.RAANAt(t)
	r := o.cfg.SemiMajorAxis

	// Perifocal-plane position/velocity (argument of perigee = 0).
	xp := r * math.Cos(nu)
	yp := r * math.Sin(nu)
	v := o.meanMotion * r
	vxp := -v * math.Sin(nu)
	vyp := v * math.Cos(nu)

	cosO, sinO := math.Cos(raan), math.Sin(raan)
	cosI, sinI := math.Cos(o.cfg.Inclination), math.Sin(o.cfg.Inclination)

	// Rotate by inclination about the line of nodes, then by RAAN about Z.
	// (Argument of perigee is zero, so the perifocal->node rotation collapses.)
	pos = vector.Vec3{
		X: cosO*xp - sinO*cosI*yp,
		Y: sinO*xp + cosO*cosI*yp,
		Z: sinI * yp,
	}
	vel = vector.Vec3{
		X: cosO*vxp - sinO*cosI*vyp,
		Y: sinO*vxp + cosO*cosI*vyp,
		Z: sinI * vyp,
	}
	return pos, vel
}

// Propagate evaluates StateAt over a slice of times.
func (o *Orbit) Propagate(t []float64) (positions, velocities []vector.Vec3) {
	positions = make([]vector.Vec3, len(t))
	velocities = make([]vector.Vec3, len(t))
	for i, ti := range t {
		positions[i], velocities[i] = o.StateAt(ti)
	}
	return positions, velocities
}
