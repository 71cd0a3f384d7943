package simcore

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
	"github.com/arobi/cubesat-eps/solarcell"
	"github.com/arobi/cubesat-eps/thermal"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
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

func testBatteryPack(t *testing.T) *battery.Pack {
	t.Helper()
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
		{SoC: 0.2, Voltage: 3.5},
		{SoC: 0.5, Voltage: 3.7},
		{SoC: 0.8, Voltage: 4.0},
		{SoC: 1.0, Voltage: 4.2},
	}
	cell, err := battery.NewCell(cp)
	if err != nil {
		t.Fatal(err)
	}
	pack, err := battery.NewPack(cell, 2, 2) // 2S2P
	if err != nil {
		t.Fatal(err)
	}
	return pack
}

func testLoadProfile(t *testing.T) *loads.Profile {
	t.Helper()
	p, err := loads.NewProfile([]loads.Mode{
		{Name: "obc", PowerW: 0.5, DutyCycle: 1.0, Trigger: loads.Always},
		{Name: "comms", PowerW: 1.0, DutyCycle: 0.2, Trigger: loads.Sunlight},
		{Name: "heater", PowerW: 0.8, DutyCycle: 0.5, Trigger: loads.Eclipse},
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func baseConfig(t *testing.T) Config {
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

	return Config{
		Orbit: orbit.Config{
			SemiMajorAxis: constants.EarthRadius + 550e3,
			Inclination:   97.6 * math.Pi / 180,
			RAAN0:         0,
		},
		DOY0:                80,
		EclipseMethod:       eclipse.Cylindrical,
		Panels:              panels,
		MPPT:                mpptModel,
		Battery:             testBatteryPack(t),
		Loads:               testLoadProfile(t),
		Converter:           converter,
		InitialSoC:          0.9,
		DefaultPanelTempK:   293,
		DefaultBatteryTempK: 293,
		DtMax:               30,
		MissionName:         "test mission",
	}
}

func TestValidateRejectsMissingComponents(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Panels = nil
	if _, err := New(cfg); err == nil {
		t.Fatal("expected ConfigError for empty Panels")
	}
}

func TestValidateRejectsBadInitialSoC(t *testing.T) {
	cfg := baseConfig(t)
	cfg.InitialSoC = 1.5
	if _, err := New(cfg); err == nil {
		t.Fatal("expected ConfigError for InitialSoC out of [0,1]")
	}
}

func TestNewAssignsRunID(t *testing.T) {
	sim, err := New(baseConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if sim.ID() == "" {
		t.Fatal("expected non-empty run ID")
	}
}

func TestRunRejectsBadArgs(t *testing.T) {
	sim, err := New(baseConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sim.Run(0, 10); err == nil {
		t.Fatal("expected ConfigError for totalSeconds<=0")
	}
	if _, err := sim.Run(100, 1); err == nil {
		t.Fatal("expected ConfigError for outputPoints<2")
	}
}

func TestRunProducesAlignedSeries(t *testing.T) {
	sim, err := New(baseConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	res, err := sim.RunOrbits(1, 20)
	if err != nil {
		t.Fatal(err)
	}
	n := len(res.Time)
	if n < 2 {
		t.Fatalf("expected at least 2 samples, got %d", n)
	}
	if len(res.SoC) != n || len(res.GeneratedW) != n || len(res.ConsumedW) != n ||
		len(res.BatteryVoltage) != n || len(res.Eclipse) != n || len(res.ActiveModes) != n {
		t.Fatalf("result series are not aligned in length: %+v", res)
	}
	if res.RunID != sim.ID() {
		t.Errorf("RunID = %q, want %q", res.RunID, sim.ID())
	}
	if !almostEqual(res.Time[0], 0, 1e-9) {
		t.Errorf("Time[0] = %v, want 0", res.Time[0])
	}
	if !almostEqual(res.Time[n-1], sim.Period(), sim.Period()*1e-6) {
		t.Errorf("Time[last] = %v, want ~= period %v", res.Time[n-1], sim.Period())
	}
}

func TestRunSoCStaysBoundedNearUnityLoad(t *testing.T) {
	sim, err := New(baseConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	res, err := sim.RunOrbits(1, 20)
	if err != nil {
		t.Fatal(err)
	}
	for i, soc := range res.SoC {
		if math.IsNaN(soc) || math.IsInf(soc, 0) {
			t.Fatalf("SoC[%d] = %v, want finite", i, soc)
		}
	}
}

func TestRunWithThermalPopulatesTemperatureSeries(t *testing.T) {
	cfg := baseConfig(t)
	thermalModel, err := thermal.New(thermal.Config{
		PanelThermalMassJPerK:   500,
		PanelAreaM2:             0.14, // matches the summed ThreeU body-panel area in baseConfig
		PanelAbsorptance:        0.92,
		PanelEmittance:          0.85,
		BatteryThermalMassJPerK: 200,
		BatteryEmittance:        0.8,
		BatterySurfaceAreaM2:    0.02,
		SpacecraftRefTempK:      293,
		InitialPanelTempK:       293,
		InitialBatteryTempK:     293,
	})
	if err != nil {
		t.Fatal(err)
	}
	cfg.Thermal = thermalModel

	sim, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	res, err := sim.RunOrbits(1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if !res.ThermalEnabled {
		t.Fatal("expected ThermalEnabled=true")
	}
	if len(res.TPanelK) != len(res.Time) || len(res.TBatteryK) != len(res.Time) {
		t.Fatalf("temperature series not aligned with Time: %+v", res)
	}
	for i, tp := range res.TPanelK {
		if tp <= 0 {
			t.Errorf("TPanelK[%d] = %v, want > 0 Kelvin", i, tp)
		}
	}
}

func TestValidateRejectsThermalPanelAreaMismatch(t *testing.T) {
	cfg := baseConfig(t)
	thermalModel, err := thermal.New(thermal.Config{
		PanelThermalMassJPerK:   500,
		PanelAreaM2:             0.5, // far from the 0.14 m^2 summed body-panel area
		PanelAbsorptance:        0.92,
		PanelEmittance:          0.85,
		BatteryThermalMassJPerK: 200,
		BatteryEmittance:        0.8,
		BatterySurfaceAreaM2:    0.02,
		SpacecraftRefTempK:      293,
		InitialPanelTempK:       293,
		InitialBatteryTempK:     293,
	})
	if err != nil {
		t.Fatal(err)
	}
	cfg.Thermal = thermalModel
	if _, err := New(cfg); err == nil {
		t.Fatal("expected ConfigError when Thermal.PanelAreaM2 disagrees with summed panel area")
	}
}

func TestWithBatteryCapacityProducesIndependentSimulation(t *testing.T) {
	sim, err := New(baseConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	original := sim.BatteryCapacityAh()
	derated, err := sim.WithBatteryCapacity(original * 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(derated.BatteryCapacityAh(), original*0.8, 1e-9) {
		t.Errorf("derated capacity = %v, want %v", derated.BatteryCapacityAh(), original*0.8)
	}
	if !almostEqual(sim.BatteryCapacityAh(), original, 1e-9) {
		t.Errorf("WithBatteryCapacity must not mutate the receiver: got %v, want %v", sim.BatteryCapacityAh(), original)
	}
	if derated.ID() == sim.ID() {
		t.Error("derated simulation should have a fresh run ID")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	sim, err := New(baseConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	clone, err := sim.Clone()
	if err != nil {
		t.Fatal(err)
	}
	if clone.ID() == sim.ID() {
		t.Error("Clone() should assign a fresh run ID")
	}
	if !almostEqual(clone.Period(), sim.Period(), 1e-9) {
		t.Errorf("Clone() Period() = %v, want %v", clone.Period(), sim.Period())
	}
}
