// Package lifetime drives a simulation template through repeated,
// capacity-derated segments to project battery aging over a mission's
// calendar life (spec.md §4.14).
package lifetime

import (
	"math"

	"github.com/arobi/cubesat-eps/constants"
	"github.com/arobi/cubesat-eps/results"
	"github.com/arobi/cubesat-eps/simcore"
	"github.com/arobi/cubesat-eps/simerr"
	"gonum.org/v1/gonum/stat"
)

// AgingModel describes the calendar and cycle capacity-loss rates at a
// reference temperature, Arrhenius-accelerated by the mean battery
// temperature observed in each segment.
type AgingModel struct {
	CalendarLossPerYear    float64 `yaml:"calendar_loss_per_year"`
	CycleLossAt50PctDoD    float64 `yaml:"cycle_loss_at_50pct_dod"`
	CycleLossAt100PctDoD   float64 `yaml:"cycle_loss_at_100pct_dod"`
	ActivationEnergyJPerMol float64 `yaml:"activation_energy_j_per_mol"`
	RefTempK                float64 `yaml:"ref_temp_k"`
}

// Validate checks positivity of the rate parameters.
func (a AgingModel) Validate() error {
	if a.CalendarLossPerYear < 0 {
		return simerr.NewConfigError("lifetime", "CalendarLossPerYear", "must be non-negative")
	}
	if a.CycleLossAt50PctDoD < 0 || a.CycleLossAt100PctDoD < 0 {
		return simerr.NewConfigError("lifetime", "CycleLoss", "must be non-negative")
	}
	if a.ActivationEnergyJPerMol <= 0 {
		return simerr.NewConfigError("lifetime", "ActivationEnergyJPerMol", "must be positive")
	}
	if a.RefTempK <= 0 {
		return simerr.NewConfigError("lifetime", "RefTempK", "must be positive")
	}
	return nil
}

func (a AgingModel) accelerationFactor(meanBatteryTempK float64) float64 {
	return math.Exp(a.ActivationEnergyJPerMol / constants.GasConstant * (1/a.RefTempK - 1/meanBatteryTempK))
}

// CalendarLossAt returns the Arrhenius-accelerated calendar capacity
// loss fraction accumulated over calendarYears at meanBatteryTempK.
func (a AgingModel) CalendarLossAt(calendarYears, meanBatteryTempK float64) float64 {
	return a.CalendarLossPerYear * calendarYears * a.accelerationFactor(meanBatteryTempK)
}

// CycleLossAt returns the Arrhenius-accelerated cycle capacity loss
// fraction for cycleCount full-equivalent cycles at a given mean depth
// of discharge (linearly interpolated between the 50%- and 100%-DoD
// per-cycle rates) and mean battery temperature.
func (a AgingModel) CycleLossAt(cycleCount, meanDoD, meanBatteryTempK float64) float64 {
	dod := math.Max(0, math.Min(1, meanDoD))
	var perCycle float64
	switch {
	case dod <= 0.5:
		perCycle = a.CycleLossAt50PctDoD * (dod / 0.5)
	default:
		frac := (dod - 0.5) / 0.5
		perCycle = a.CycleLossAt50PctDoD + (a.CycleLossAt100PctDoD-a.CycleLossAt50PctDoD)*frac
	}
	return perCycle * cycleCount * a.accelerationFactor(meanBatteryTempK)
}

// Segment is one completed lifetime-driver segment's record.
type Segment struct {
	RunID             string
	Years             float64
	CapacityRemaining float64
	MinSoC            float64
	WorstDoD          float64
	MeanDoD           float64
	DoDStdDev         float64
	MeanBatteryTempK  float64
}

// Results is the full multi-segment output of a lifetime run.
type Results struct {
	Segments []Segment
	Warnings []string
}

// Driver configures a multi-segment lifetime run.
type Driver struct {
	Template           *simcore.Simulation
	Aging              AgingModel
	TotalYears         float64
	UpdateIntervalOrbits float64
	OrbitsPerSegment   float64
	OutputPointsPerOrbit int
}

const minCapacityFraction = 0.5

// Run executes the lifetime driver (spec.md §4.14): for each segment it
// runs the core simulation for OrbitsPerSegment orbits at the
// currently-derated capacity, records the segment's scalars, advances
// the clock, and derates capacity for the next segment using
// Arrhenius-accelerated calendar and cycle loss.
func (d *Driver) Run() (*Results, error) {
	if d.Template == nil {
		return nil, simerr.NewConfigError("lifetime", "Template", "must not be nil")
	}
	if err := d.Aging.Validate(); err != nil {
		return nil, err
	}
	if d.TotalYears <= 0 {
		return nil, simerr.NewConfigError("lifetime", "TotalYears", "must be positive")
	}
	if d.UpdateIntervalOrbits <= 0 {
		return nil, simerr.NewConfigError("lifetime", "UpdateIntervalOrbits", "must be positive")
	}
	if d.OrbitsPerSegment <= 0 {
		return nil, simerr.NewConfigError("lifetime", "OrbitsPerSegment", "must be positive")
	}

	outputPerOrbit := d.OutputPointsPerOrbit
	if outputPerOrbit < 2 {
		outputPerOrbit = 50
	}

	period := d.Template.Period()
	totalSeconds := d.TotalYears * constants.DaysPerYear * constants.SecondsPerDay

	current, err := d.Template.Clone()
	if err != nil {
		return nil, err
	}

	baseCapacity := current.BatteryCapacityAh()

	var segments []Segment
	var warnings []string

	elapsedSeconds := 0.0
	cycleCount := 0.0
	calendarYears := 0.0
	capacity := baseCapacity

	for elapsedSeconds < totalSeconds-1e-6 {
		res, err := current.RunOrbits(d.OrbitsPerSegment, outputPerOrbit)
		if err != nil {
			return nil, err
		}

		minSoC := res.MinSoC()
		worstDoD := res.WorstDoD()
		meanDoD, dodStdDev := depthOfDischargeDispersion(res)
		meanBatteryTempK := meanBatteryTemperature(res, current)

		segmentSeconds := d.UpdateIntervalOrbits * period
		elapsedSeconds += segmentSeconds
		calendarYears = elapsedSeconds / (constants.DaysPerYear * constants.SecondsPerDay)
		cycleCount += d.OrbitsPerSegment

		calendarLoss := d.Aging.CalendarLossAt(calendarYears, meanBatteryTempK)
		cycleLoss := d.Aging.CycleLossAt(cycleCount, meanDoD, meanBatteryTempK)

		capacity = baseCapacity * (1 - calendarLoss - cycleLoss)
		if capacity < minCapacityFraction*baseCapacity {
			capacity = minCapacityFraction * baseCapacity
			warnings = append(warnings, "capacity clamped at 50% of beginning-of-life value")
		}

		segments = append(segments, Segment{
			RunID:             res.RunID,
			Years:             calendarYears,
			CapacityRemaining: capacity / baseCapacity,
			MinSoC:            minSoC,
			WorstDoD:          worstDoD,
			MeanDoD:           meanDoD,
			DoDStdDev:         dodStdDev,
			MeanBatteryTempK:  meanBatteryTempK,
		})

		next, err := current.WithBatteryCapacity(capacity)
		if err != nil {
			return nil, err
		}
		current = next
	}

	return &Results{Segments: segments, Warnings: warnings}, nil
}

// depthOfDischargeDispersion returns the mean and sample (n-1) standard
// deviation of the segment's depth-of-discharge series, used to drive
// CycleLossAt and to report how much DoD varied within the segment.
func depthOfDischargeDispersion(res *results.SimulationResults) (mean, stdDev float64) {
	if len(res.SoC) == 0 {
		return 0, 0
	}
	dod := make([]float64, len(res.SoC))
	for i, soc := range res.SoC {
		dod[i] = 1 - soc
	}
	mean = stat.Mean(dod, nil)
	if len(dod) < 2 {
		return mean, 0
	}
	return mean, stat.StdDev(dod, nil)
}

func meanBatteryTemperature(res *results.SimulationResults, sim *simcore.Simulation) float64 {
	if res.ThermalEnabled && len(res.TBatteryK) > 0 {
		var sum float64
		for _, t := range res.TBatteryK {
			sum += t
		}
		return sum / float64(len(res.TBatteryK))
	}
	return sim.DefaultBatteryTempK()
}
