// Package telemetry provides the structured logger shared by Simulation
// and the lifetime driver. It mirrors Valkyrie's pkg/utils logger: a
// logrus.Logger configured with a JSON formatter, with a helper that
// stamps every line with a run correlation ID.
package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a JSON-formatted logger at the given level
// ("debug", "info", "warn", "error"; anything else is treated as "info").
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	switch level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}

// WithRun returns a logger entry that stamps every line with run_id,
// falling back to the standard logger if base is nil.
func WithRun(base *logrus.Logger, runID string) *logrus.Entry {
	if base == nil {
		base = logrus.StandardLogger()
	}
	return base.WithField("run_id", runID)
}
