package telemetry

import (
	"time"
)

// FrictionPoint flags an element accumulating rapid repeated clicks.
type FrictionPoint struct {
	Target string  `json:"target"`
	Score  float64 `json:"score"`
	Clicks int     `json:"clicks"`
}

// DropOffPage flags a page whose sessions mostly bounce.
type DropOffPage struct {
	Page       string  `json:"page"`
	BounceRate float64 `json:"bounce_rate"`
	Sessions   int     `json:"sessions"`
}

// DeviceShare is one slice of the device distribution.
type DeviceShare struct {
	Device string  `json:"device"`
	Count  int     `json:"count"`
	Share  float64 `json:"share"`
}

// TargetCount pairs an element identifier with an occurrence count.
type TargetCount struct {
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// FeatureUsage is a feature-vocabulary hit count.
type FeatureUsage struct {
	Feature string `json:"feature"`
	Count   int    `json:"count"`
}

// AnalysisSnapshot is a pure derived view over the recent event
// window. It is recomputed on each analysis, never mutated in place.
type AnalysisSnapshot struct {
	GeneratedAt        time.Time       `json:"generated_at"`
	WindowStart        time.Time       `json:"window_start"`
	TotalInteractions  int             `json:"total_interactions"`
	ClickRate          float64         `json:"click_rate"`
	TotalEngagements   int             `json:"total_engagements"`
	OverallSentiment   string          `json:"overall_sentiment"`
	FrictionPoints     []FrictionPoint `json:"friction_points"`
	DropOffPages       []DropOffPage   `json:"drop_off_pages"`
	DeviceBreakdown    []DeviceShare   `json:"device_breakdown"`
	TopHovered         []TargetCount   `json:"top_hovered"`
	TopFeatures        []FeatureUsage  `json:"top_features"`
	AvgLoadTime        float64         `json:"avg_load_time"`
	AvgFCP             float64         `json:"avg_fcp"`
	AvgLCP             float64         `json:"avg_lcp"`
	AvgCLS             float64         `json:"avg_cls"`
	ActiveSessions     int             `json:"active_sessions"`
	AvgSessionDuration float64         `json:"avg_session_duration_ms"`
}

// WorstFrictionScore returns the highest friction score in the
// snapshot, 0 when no friction was detected.
func (s *AnalysisSnapshot) WorstFrictionScore() float64 {
	worst := 0.0
	for _, fp := range s.FrictionPoints {
		if fp.Score > worst {
			worst = fp.Score
		}
	}
	return worst
}
