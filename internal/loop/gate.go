package loop

import (
	"fmt"

	"github.com/uxpulse/uxpulse/internal/telemetry"
)

// Autonomy levels, from least to most eager.
const (
	AutonomyLow    = "low"
	AutonomyMedium = "medium"
	AutonomyHigh   = "high"
	AutonomyFull   = "full"
)

// ValidateAutonomyLevel rejects values outside the known set.
func ValidateAutonomyLevel(level string) error {
	switch level {
	case AutonomyLow, AutonomyMedium, AutonomyHigh, AutonomyFull:
		return nil
	}
	return fmt.Errorf("invalid autonomy level %q", level)
}

// gate decides whether a snapshot's findings warrant invoking the
// decision engine at the given autonomy level.
func gate(snap *telemetry.AnalysisSnapshot, level string) bool {
	switch level {
	case AutonomyFull, AutonomyHigh:
		return true
	case AutonomyMedium:
		return len(snap.FrictionPoints) > 0 ||
			snap.AvgLoadTime > 3000 ||
			len(snap.DropOffPages) > 0 ||
			snap.ClickRate < 0.1
	case AutonomyLow:
		return snap.AvgLoadTime > 3000 ||
			(len(snap.FrictionPoints) > 0 && len(snap.DropOffPages) > 0)
	}
	return false
}

// criticalFastPath reports whether the fast cycle should bypass the
// autonomy gate entirely.
func criticalFastPath(snap *telemetry.AnalysisSnapshot) bool {
	return snap.AvgLoadTime > 5000 || snap.WorstFrictionScore() > 0.5
}
