// Package simerr defines the error taxonomy used across the simulation
// core (spec.md §7): construction-time configuration errors and run-time
// integration failures. Non-fatal NumericalBoundary conditions are not
// errors at all — they are reported as counters, see BoundaryFlags.
package simerr

import "fmt"

// ConfigError reports a violated invariant on a component's parameters,
// signalled synchronously at construction. It is always the direct return
// value of a constructor, never surfaced through a channel or goroutine.
type ConfigError struct {
	Component string
	Field     string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Component, e.Field, e.Reason)
}

// NewConfigError builds a ConfigError.
func NewConfigError(component, field, reason string) *ConfigError {
	return &ConfigError{Component: component, Field: field, Reason: reason}
}

// IntegrationError reports that the adaptive integrator could not meet
// tolerance within its retry budget, or that a NaN/Inf appeared in the
// propagated state. The last-good time and state are attached so the
// caller can inspect how far the run progressed.
type IntegrationError struct {
	Time  float64
	State []float64
	Err   error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration failed at t=%.3fs: %v", e.Time, e.Err)
}

func (e *IntegrationError) Unwrap() error {
	return e.Err
}

// NewIntegrationError builds an IntegrationError, copying state so later
// mutation of the caller's buffer cannot corrupt the error's record.
func NewIntegrationError(t float64, state []float64, err error) *IntegrationError {
	snapshot := make([]float64, len(state))
	copy(snapshot, state)
	return &IntegrationError{Time: t, State: snapshot, Err: err}
}

// BoundaryFlags accumulates the non-fatal NumericalBoundary conditions
// observed over a run. These never abort integration; §7's propagation
// policy requires the simulator to keep running so a design's failure
// modes remain visible in the results.
type BoundaryFlags struct {
	SoCOutOfRange       bool
	SoCOutOfRangeCount  int
	VoltageBelowMin     bool
	VoltageBelowMinCount int
	PanelOverTemp       bool
	PanelOverTempCount  int
}

// Observe folds one RHS evaluation's boundary checks into the running
// counters.
func (b *BoundaryFlags) Observe(soc, voltage, minVoltage, panelTempK float64, thermalEnabled bool) {
	if soc < 0 || soc > 1 {
		b.SoCOutOfRange = true
		b.SoCOutOfRangeCount++
	}
	if voltage < minVoltage {
		b.VoltageBelowMin = true
		b.VoltageBelowMinCount++
	}
	if thermalEnabled && panelTempK > 400.0 {
		b.PanelOverTemp = true
		b.PanelOverTempCount++
	}
}

// Any reports whether any boundary condition was ever observed.
func (b BoundaryFlags) Any() bool {
	return b.SoCOutOfRange || b.VoltageBelowMin || b.PanelOverTemp
}
