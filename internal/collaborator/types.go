// Package collaborator defines the reasoning-collaborator contract:
// analytics go out as a structured request, improvement
// recommendations come back as JSON.
package collaborator

import (
	"context"

	"github.com/uxpulse/uxpulse/internal/theme"
)

// AnalysisRequest carries snapshot metrics to the collaborator.
type AnalysisRequest struct {
	TotalInteractions int      `json:"totalInteractions"`
	ClickRate         float64  `json:"clickRate"`
	TotalEngagements  int      `json:"totalEngagements"`
	AvgLoadTime       float64  `json:"avgLoadTime"`
	ActiveSessions    int      `json:"activeSessions"`
	OverallSentiment  string   `json:"overallSentiment"`
	FrictionPoints    []string `json:"frictionPoints"`
	DropOffPages      []string `json:"dropOffPages"`
	DeviceBreakdown   []string `json:"deviceBreakdown"`
	TopFeatures       []string `json:"topFeatures"`
	HourOfDay         int      `json:"hourOfDay"`
	TimeOfDayLabel    string   `json:"timeOfDayLabel"`
}

// Change is one concrete recommendation.
type Change struct {
	Category       string `json:"category"`
	Recommendation string `json:"recommendation"`
	Reasoning      string `json:"reasoning"`
	ExpectedImpact string `json:"expectedImpact"`
	Implementation string `json:"implementation"`
}

// RecommendationSet is the collaborator's full answer.
type RecommendationSet struct {
	Priority         string             `json:"priority"`
	Changes          []Change           `json:"changes"`
	ThemeAdjustments *theme.Adjustments `json:"themeAdjustments,omitempty"`
	UrgentIssues     []string           `json:"urgentIssues"`
	OverallStrategy  string             `json:"overallStrategy"`
}

// Collaborator turns analytics into recommendations. Implementations
// may fail; callers fall back to heuristics.
type Collaborator interface {
	Recommend(ctx context.Context, req AnalysisRequest) (*RecommendationSet, error)
}
