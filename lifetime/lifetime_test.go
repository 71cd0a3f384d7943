package lifetime

import (
	"math"
	"testing"

	"github.com/arobi/cubesat-eps/battery"
	"github.com/arobi/cubesat-eps/busconv"
	"github.com/arobi/cubesat-eps/constants"
	"github.com/arobi/cubesat-eps/eclipse"
	"github.com/arobi/cubesat-eps/loads"
	"github.com/arobi/cubesat-eps/mppt"
	"github.com/arobi/cubesat-eps/orbit"
	"github.com/arobi/cubesat-eps/panel"
	"github.com/arobi/cubesat-eps/results"
	"github.com/arobi/cubesat-eps/simcore"
	"github.com/arobi/cubesat-eps/solarcell"
	"gonum.org/v1/gonum/stat"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func testAging() AgingModel {
	return AgingModel{
		CalendarLossPerYear:     0.02,
		CycleLossAt50PctDoD:     0.0001,
		CycleLossAt100PctDoD:    0.0003,
		ActivationEnergyJPerMol: 19000,
		RefTempK:                constants.DefaultRefTemp,
	}
}

func TestValidateRejectsNegativeRates(t *testing.T) {
	a := testAging()
	a.CalendarLossPerYear = -0.1
	if err := a.Validate(); err == nil {
		t.Fatal("expected ConfigError for negative CalendarLossPerYear")
	}
}

func TestCalendarLossScalesWithYearsAndTemperature(t *testing.T) {
	a := testAging()
	oneYear := a.CalendarLossAt(1, a.RefTempK)
	twoYears := a.CalendarLossAt(2, a.RefTempK)
	if !almostEqual(twoYears, 2*oneYear, 1e-12) {
		t.Errorf("CalendarLossAt should scale linearly with years: 1y=%v 2y=%v", oneYear, twoYears)
	}
	hotter := a.CalendarLossAt(1, a.RefTempK+20)
	if !(hotter > oneYear) {
		t.Errorf("CalendarLossAt should accelerate at higher temperature: ref=%v hot=%v", oneYear, hotter)
	}
}

func TestCycleLossInterpolatesBetweenDoDPins(t *testing.T) {
	a := testAging()
	at50 := a.CycleLossAt(100, 0.5, a.RefTempK)
	at100 := a.CycleLossAt(100, 1.0, a.RefTempK)
	atQuarter := a.CycleLossAt(100, 0.25, a.RefTempK)
	if !(at100 > at50) {
		t.Errorf("100%% DoD should cost more than 50%%: at50=%v at100=%v", at50, at100)
	}
	if !(atQuarter < at50) {
		t.Errorf("25%% DoD should cost less than 50%%: atQuarter=%v at50=%v", atQuarter, at50)
	}
}

func TestCycleLossClampsDoD(t *testing.T) {
	a := testAging()
	over := a.CycleLossAt(10, 1.5, a.RefTempK)
	at100 := a.CycleLossAt(10, 1.0, a.RefTempK)
	if !almostEqual(over, at100, 1e-12) {
		t.Errorf("CycleLossAt should clamp DoD > 1: got %v, want %v", over, at100)
	}
}

func testCell(t *testing.T) *solarcell.Cell {
	t.Helper()
	p := solarcell.DefaultParams()
	p.AreaM2 = 0.003
	p.VocRef = 2.4
	p.IscRef = 0.52
	p.VmpRef = 2.1
	p.ImpRef = 0.49
	p.IdealityFactor = 1.3
	p.Rs = 0.04
	p.Rsh = 1000
	p.DVocDT = -0.006
	p.DIscDT = 0.0003
	p.DPmpDT = -0.002
	p.Absorptance = 0.92
	p.Emittance = 0.85
	p.PackingFactor = 0.85
	c, err := solarcell.New(p)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func testTemplate(t *testing.T) *simcore.Simulation {
	t.Helper()
	cell := testCell(t)
	panels, err := panel.CubesatBody(panel.ThreeU, cell, 0.85, nil)
	if err != nil {
		t.Fatal(err)
	}
	mpptModel, err := mppt.New(mppt.Config{PeakEff: 0.97})
	if err != nil {
		t.Fatal(err)
	}
	converter, err := busconv.New(busconv.ConverterConfig{NominalEfficiency: 0.92})
	if err != nil {
		t.Fatal(err)
	}

	cp := battery.DefaultCellParams()
	cp.CapacityAh = 3.4
	cp.NominalVoltage = 3.7
	cp.MinVoltage = 3.0
	cp.MaxVoltage = 4.2
	cp.R0Ref = 0.02
	cp.R1 = 0.01
	cp.C1 = 2000
	cp.R2 = 0.015
	cp.C2 = 20000
	cp.OCVTable = []battery.OCVPoint{
		{SoC: 0.0, Voltage: 3.0},
		{SoC: 0.5, Voltage: 3.7},
		{SoC: 1.0, Voltage: 4.2},
	}
	cell2, err := battery.NewCell(cp)
	if err != nil {
		t.Fatal(err)
	}
	pack, err := battery.NewPack(cell2, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	profile, err := loads.NewProfile([]loads.Mode{
		{Name: "obc", PowerW: 0.5, DutyCycle: 1.0, Trigger: loads.Always},
	})
	if err != nil {
		t.Fatal(err)
	}

	cfg := simcore.Config{
		Orbit: orbit.Config{
			SemiMajorAxis: constants.EarthRadius + 550e3,
			Inclination:   97.6 * math.Pi / 180,
		},
		DOY0:                80,
		EclipseMethod:       eclipse.Cylindrical,
		Panels:              panels,
		MPPT:                mpptModel,
		Battery:             pack,
		Loads:               profile,
		Converter:           converter,
		InitialSoC:          0.9,
		DefaultPanelTempK:   293,
		DefaultBatteryTempK: 293,
		DtMax:               30,
		MissionName:         "lifetime test",
	}
	sim, err := simcore.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return sim
}

func TestRunRejectsNilTemplate(t *testing.T) {
	d := &Driver{Aging: testAging(), TotalYears: 1, UpdateIntervalOrbits: 10, OrbitsPerSegment: 1}
	if _, err := d.Run(); err == nil {
		t.Fatal("expected ConfigError for nil Template")
	}
}

func TestRunRejectsBadDuration(t *testing.T) {
	d := &Driver{Template: testTemplate(t), Aging: testAging(), TotalYears: 0, UpdateIntervalOrbits: 10, OrbitsPerSegment: 1}
	if _, err := d.Run(); err == nil {
		t.Fatal("expected ConfigError for TotalYears<=0")
	}
}

func TestRunProducesDegradingCapacity(t *testing.T) {
	d := &Driver{
		Template:             testTemplate(t),
		Aging:                testAging(),
		TotalYears:           0.01,
		UpdateIntervalOrbits: 50,
		OrbitsPerSegment:     1,
		OutputPointsPerOrbit: 10,
	}
	res, err := d.Run()
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Segments) == 0 {
		t.Fatal("expected at least one completed segment")
	}
	prev := 1.0
	for i, seg := range res.Segments {
		if seg.CapacityRemaining > prev+1e-9 {
			t.Errorf("segment %d capacity remaining %v should be non-increasing (prev %v)", i, seg.CapacityRemaining, prev)
		}
		prev = seg.CapacityRemaining
		if seg.RunID == "" {
			t.Errorf("segment %d has empty RunID", i)
		}
		if seg.DoDStdDev < 0 {
			t.Errorf("segment %d DoDStdDev should be non-negative, got %v", i, seg.DoDStdDev)
		}
	}
}

func TestDepthOfDischargeDispersionMatchesStatPackage(t *testing.T) {
	res := &results.SimulationResults{SoC: []float64{0.9, 0.8, 0.95, 0.7}}
	mean, stdDev := depthOfDischargeDispersion(res)
	wantMean := stat.Mean([]float64{0.1, 0.2, 0.05, 0.3}, nil)
	wantStdDev := stat.StdDev([]float64{0.1, 0.2, 0.05, 0.3}, nil)
	if !almostEqual(mean, wantMean, 1e-12) {
		t.Errorf("mean DoD = %v, want %v", mean, wantMean)
	}
	if !almostEqual(stdDev, wantStdDev, 1e-12) {
		t.Errorf("DoD stddev = %v, want %v", stdDev, wantStdDev)
	}
}

func TestDepthOfDischargeDispersionSinglePoint(t *testing.T) {
	res := &results.SimulationResults{SoC: []float64{0.8}}
	mean, stdDev := depthOfDischargeDispersion(res)
	if !almostEqual(mean, 0.2, 1e-12) {
		t.Errorf("mean DoD = %v, want 0.2", mean)
	}
	if stdDev != 0 {
		t.Errorf("single-point DoD stddev should be 0, got %v", stdDev)
	}
}
