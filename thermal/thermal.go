// Package thermal implements lumped thermal dynamics for the solar panel
// and battery pack: Stefan-Boltzmann radiative exchange plus absorbed
// solar, albedo and Earth-IR flux (spec.md §4.11).
package thermal

import (
	"math"

	"github.com/arobi/cubesat-eps/constants"
	"github.com/arobi/cubesat-eps/simerr"
)

// Config describes the thermal masses and radiative properties of the
// panel and battery, plus initial temperatures.
type Config struct {
	PanelThermalMassJPerK float64 `yaml:"panel_thermal_mass_j_per_k"`
	// PanelAreaM2 is the declared total illuminated panel area used for
	// configuration cross-checking; simcore sums panel.Panel.AreaM2
	// directly for the radiative/absorbed-flux derivatives themselves and
	// rejects a Config whose Thermal.PanelAreaM2 disagrees with that sum
	// by more than a small tolerance.
	PanelAreaM2             float64 `yaml:"panel_area_m2"`
	PanelAbsorptance        float64 `yaml:"panel_absorptance"`
	PanelEmittance          float64 `yaml:"panel_emittance"`
	BatteryThermalMassJPerK float64 `yaml:"battery_thermal_mass_j_per_k"`
	BatteryEmittance        float64 `yaml:"battery_emittance"`
	BatterySurfaceAreaM2    float64 `yaml:"battery_surface_area_m2"`
	SpacecraftRefTempK      float64 `yaml:"spacecraft_ref_temp_k"`
	InitialPanelTempK       float64 `yaml:"initial_panel_temp_k"`
	InitialBatteryTempK     float64 `yaml:"initial_battery_temp_k"`
}

// Validate checks positivity of the thermal masses and areas.
func (c Config) Validate() error {
	if c.PanelThermalMassJPerK <= 0 {
		return simerr.NewConfigError("thermal", "PanelThermalMassJPerK", "must be positive")
	}
	if c.PanelAreaM2 <= 0 {
		return simerr.NewConfigError("thermal", "PanelAreaM2", "must be positive")
	}
	if c.BatteryThermalMassJPerK <= 0 {
		return simerr.NewConfigError("thermal", "BatteryThermalMassJPerK", "must be positive")
	}
	if c.BatterySurfaceAreaM2 <= 0 {
		return simerr.NewConfigError("thermal", "BatterySurfaceAreaM2", "must be positive")
	}
	if c.InitialPanelTempK <= 0 || c.InitialBatteryTempK <= 0 {
		return simerr.NewConfigError("thermal", "InitialTempK", "must be positive (Kelvin)")
	}
	return nil
}

// Model evaluates the panel and battery thermal derivatives for a
// validated Config.
type Model struct {
	cfg Config
}

// New validates cfg and returns a Model.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg}, nil
}

// PanelDerivative returns dT_p/dt given absorbed solar irradiance gEff
// (W/m^2, already projected by the panel's sun-angle cosine), total
// illuminated panel area, electrical power extracted, albedo and
// Earth-IR flux (W/m^2), and current panel temperature. Both panel faces
// radiate, hence the factor of 2.
func (m *Model) PanelDerivative(gEff, areaTotal, pElec, albedoFlux, irFlux, tPanel float64) float64 {
	c := m.cfg
	qSolarAbs := c.PanelAbsorptance*gEff*areaTotal - pElec
	absorbedAlbedo := c.PanelAbsorptance * albedoFlux * areaTotal
	radiated := c.PanelEmittance * constants.StefanBoltzmann * areaTotal * 2 * math.Pow(tPanel, 4)
	absorbedIR := c.PanelEmittance * irFlux * areaTotal
	return (qSolarAbs + absorbedAlbedo - radiated + absorbedIR) / c.PanelThermalMassJPerK
}

// BatteryDerivative returns dT_b/dt given the discharge/charge current
// magnitude, the battery's instantaneous R0, any auxiliary heater power,
// and current battery temperature. Radiative exchange is against the
// spacecraft interior reference temperature.
func (m *Model) BatteryDerivative(current, r0, heaterPower, tBattery float64) float64 {
	c := m.cfg
	ohmic := current * current * r0
	radiated := c.BatteryEmittance * constants.StefanBoltzmann * c.BatterySurfaceAreaM2 *
		(math.Pow(tBattery, 4) - math.Pow(c.SpacecraftRefTempK, 4))
	return (ohmic + heaterPower - radiated) / c.BatteryThermalMassJPerK
}

// Params returns the model's validated configuration.
func (m *Model) Params() Config { return m.cfg }
