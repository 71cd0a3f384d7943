package thermal

import (
	"testing"
)

func testConfig() Config {
	return Config{
		PanelThermalMassJPerK:   500,
		PanelAreaM2:             0.06,
		PanelAbsorptance:        0.92,
		PanelEmittance:          0.85,
		BatteryThermalMassJPerK: 200,
		BatteryEmittance:        0.8,
		BatterySurfaceAreaM2:    0.02,
		SpacecraftRefTempK:      293,
		InitialPanelTempK:       293,
		InitialBatteryTempK:     293,
	}
}

func TestValidateRejectsNonPositiveMasses(t *testing.T) {
	cfg := testConfig()
	cfg.PanelThermalMassJPerK = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected ConfigError for non-positive PanelThermalMassJPerK")
	}
}

func TestValidateRejectsNonPositiveInitialTemps(t *testing.T) {
	cfg := testConfig()
	cfg.InitialBatteryTempK = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected ConfigError for non-positive InitialBatteryTempK")
	}
}

func TestPanelDerivativeHeatsUnderStrongSun(t *testing.T) {
	m, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	// Strong absorbed flux, little electrical extraction, modest radiating
	// temperature: net should be a heating trend.
	d := m.PanelDerivative(1361, 0.06, 1.0, 50, 200, 260)
	if d <= 0 {
		t.Errorf("PanelDerivative() = %v, want > 0 (net heating) under strong illumination at low temperature", d)
	}
}

func TestPanelDerivativeRadiatesAwayAtHighTemp(t *testing.T) {
	m, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	// No solar input, very hot panel: should cool down.
	d := m.PanelDerivative(0, 0.06, 0, 0, 0, 400)
	if d >= 0 {
		t.Errorf("PanelDerivative() = %v, want < 0 (net cooling) with no input at high temperature", d)
	}
}

func TestBatteryDerivativeHeatsUnderLoad(t *testing.T) {
	m, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	d := m.BatteryDerivative(2.0, 0.05, 0, 293)
	if d <= 0 {
		t.Errorf("BatteryDerivative() = %v, want > 0 (ohmic heating) under discharge current at reference temperature", d)
	}
}

func TestBatteryDerivativeCoolsWhenHotAndIdle(t *testing.T) {
	m, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	d := m.BatteryDerivative(0, 0.05, 0, 340)
	if d >= 0 {
		t.Errorf("BatteryDerivative() = %v, want < 0 (radiates toward spacecraft reference) when hot and idle", d)
	}
}

func TestParamsRoundTrip(t *testing.T) {
	cfg := testConfig()
	m, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Params(); got != cfg {
		t.Errorf("Params() = %+v, want %+v", got, cfg)
	}
}
