// Package results holds the aligned time-series output of a simulation
// run, derived scalar summaries, and the power-budget report (spec.md
// §4.13). Extremum and averaging helpers are built on gonum's floats and
// stat packages rather than hand-rolled loops.
package results

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/arobi/cubesat-eps/loads"
	"github.com/arobi/cubesat-eps/simerr"
)

// SimulationResults is the aligned-series output of one simulation run.
type SimulationResults struct {
	RunID string

	Time           []float64
	SoC            []float64
	GeneratedW     []float64
	ConsumedW      []float64
	BatteryVoltage []float64
	Eclipse        []bool
	ActiveModes    [][]loads.Mode

	ThermalEnabled bool
	TPanelK        []float64
	TBatteryK      []float64

	Boundary simerr.BoundaryFlags
}

// WorstDoD returns 1 - min(SoC), the worst-case depth of discharge.
func (r *SimulationResults) WorstDoD() float64 {
	return 1 - floats.Min(r.SoC)
}

// MinSoC and MaxSoC return the extrema of the SoC series.
func (r *SimulationResults) MinSoC() float64 { return floats.Min(r.SoC) }
func (r *SimulationResults) MaxSoC() float64 { return floats.Max(r.SoC) }

// MeanGeneratedW and MeanConsumedW return the time-series mean power.
func (r *SimulationResults) MeanGeneratedW() float64 { return stat.Mean(r.GeneratedW, nil) }
func (r *SimulationResults) MeanConsumedW() float64  { return stat.Mean(r.ConsumedW, nil) }

// PowerMargin returns mean(generated) - mean(consumed).
func (r *SimulationResults) PowerMargin() float64 {
	return r.MeanGeneratedW() - r.MeanConsumedW()
}

// MinBatteryVoltage and MaxBatteryVoltage return the voltage extrema.
func (r *SimulationResults) MinBatteryVoltage() float64 { return floats.Min(r.BatteryVoltage) }
func (r *SimulationResults) MaxBatteryVoltage() float64 { return floats.Max(r.BatteryVoltage) }

// EclipseFraction returns the fraction of output samples spent in
// eclipse.
func (r *SimulationResults) EclipseFraction() float64 {
	if len(r.Eclipse) == 0 {
		return 0
	}
	var n int
	for _, e := range r.Eclipse {
		if e {
			n++
		}
	}
	return float64(n) / float64(len(r.Eclipse))
}

// PerOrbitEnergyBalance returns the net energy (Wh) accumulated over one
// orbital period, trapezoidally integrating (generated - consumed) over
// the whole run and scaling to a single period's duration.
func (r *SimulationResults) PerOrbitEnergyBalance(periodSeconds float64) float64 {
	n := len(r.Time)
	if n < 2 {
		return 0
	}
	var energyWs float64
	for i := 1; i < n; i++ {
		dt := r.Time[i] - r.Time[i-1]
		avgP := 0.5 * ((r.GeneratedW[i] - r.ConsumedW[i]) + (r.GeneratedW[i-1] - r.ConsumedW[i-1]))
		energyWs += avgP * dt
	}
	totalDuration := r.Time[n-1] - r.Time[0]
	if totalDuration <= 0 {
		return 0
	}
	energyPerSecond := energyWs / totalDuration
	return energyPerSecond * periodSeconds / 3600
}

// Summary is the flat scalar report produced by BuildSummary.
type Summary struct {
	MinSoC              float64
	MaxSoC              float64
	WorstDoD            float64
	MeanGeneratedW      float64
	MeanConsumedW       float64
	PowerMarginW        float64
	EclipseFraction     float64
	PerOrbitEnergyWh    float64
	MinBatteryVoltage   float64
	MaxBatteryVoltage   float64
}

// BuildSummary computes the scalar summary for a result set.
func (r *SimulationResults) BuildSummary(periodSeconds float64) Summary {
	return Summary{
		MinSoC:            r.MinSoC(),
		MaxSoC:            r.MaxSoC(),
		WorstDoD:          r.WorstDoD(),
		MeanGeneratedW:    r.MeanGeneratedW(),
		MeanConsumedW:     r.MeanConsumedW(),
		PowerMarginW:      r.PowerMargin(),
		EclipseFraction:   r.EclipseFraction(),
		PerOrbitEnergyWh:  r.PerOrbitEnergyBalance(periodSeconds),
		MinBatteryVoltage: r.MinBatteryVoltage(),
		MaxBatteryVoltage: r.MaxBatteryVoltage(),
	}
}

// Row is a single subsystem line in the power budget report.
type Row struct {
	Name                 string
	Trigger              string
	PowerW               float64
	DutyCycle            float64
	AverageContributionW float64
}

// PowerBudgetReport is the per-subsystem table and verdict produced by
// Report.
type PowerBudgetReport struct {
	MissionName          string
	Rows                 []Row
	OrbitAverageGenerated float64
	OrbitAverageConsumed  float64
	Verdict               string
	FailingConditions     []string
}

// Report builds a PowerBudgetReport from a load profile, result summary
// and mission name. Verdict is "POSITIVE MARGIN" iff power margin >= 0,
// min SoC > 0 and worst DoD <= 1 (spec.md §4.13/§7); otherwise
// "NEGATIVE MARGIN" with the failing conditions listed.
func Report(profile *loads.Profile, summary Summary, eclipseFraction float64, missionName string) PowerBudgetReport {
	var rows []Row
	for _, m := range profile.Modes() {
		var avg float64
		switch m.Trigger {
		case loads.Always:
			avg = m.PowerW * m.DutyCycle
		case loads.Sunlight:
			avg = m.PowerW * m.DutyCycle * (1 - eclipseFraction)
		case loads.Eclipse:
			avg = m.PowerW * m.DutyCycle * eclipseFraction
		}
		rows = append(rows, Row{
			Name:                 m.Name,
			Trigger:              m.Trigger.String(),
			PowerW:               m.PowerW,
			DutyCycle:            m.DutyCycle,
			AverageContributionW: avg,
		})
	}

	orbitConsumed := profile.OrbitAveragePower(eclipseFraction)

	var failing []string
	if summary.PowerMarginW < 0 {
		failing = append(failing, fmt.Sprintf("power margin %.3f W < 0", summary.PowerMarginW))
	}
	if summary.MinSoC <= 0 {
		failing = append(failing, fmt.Sprintf("min SoC %.4f <= 0", summary.MinSoC))
	}
	if summary.WorstDoD > 1 {
		failing = append(failing, fmt.Sprintf("worst DoD %.4f > 1", summary.WorstDoD))
	}

	verdict := "POSITIVE MARGIN"
	if len(failing) > 0 {
		verdict = "NEGATIVE MARGIN"
	}

	return PowerBudgetReport{
		MissionName:           missionName,
		Rows:                  rows,
		OrbitAverageGenerated: summary.MeanGeneratedW,
		OrbitAverageConsumed:  orbitConsumed,
		Verdict:               verdict,
		FailingConditions:     failing,
	}
}
