// Package decision converts analysis snapshots into recommendation
// sets and applies a rate-limited subset of them to the shared
// platform theme, with versioned history and rollback.
package decision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/uxpulse/uxpulse/internal/bus"
	"github.com/uxpulse/uxpulse/internal/collaborator"
	"github.com/uxpulse/uxpulse/internal/config"
	"github.com/uxpulse/uxpulse/internal/telemetry"
	"github.com/uxpulse/uxpulse/internal/theme"
)

// ChangeRecord captures one applied theme mutation. Append-only.
type ChangeRecord struct {
	ID              string                           `json:"id"`
	Timestamp       time.Time                        `json:"timestamp"`
	AppliedChanges  []collaborator.Change            `json:"applied_changes"`
	Recommendations *collaborator.RecommendationSet  `json:"recommendations"`
	Theme           theme.Theme                      `json:"theme"`
}

// ApplyResult reports the outcome of an apply attempt. Rate limiting
// is a structured result, not an error.
type ApplyResult struct {
	Applied  bool                  `json:"applied"`
	Reason   string                `json:"reason,omitempty"`
	ChangeID string                `json:"change_id,omitempty"`
	Count    int                   `json:"count"`
	Changes  []collaborator.Change `json:"changes,omitempty"`
}

// RollbackResult reports a rollback outcome.
type RollbackResult struct {
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Theme   *theme.Theme `json:"theme,omitempty"`
}

// Engine owns the current theme, the change history, and the per-user
// theme cache. The rate-limit check and the subsequent apply run
// under one mutex, so check-then-act is atomic across cycles.
type Engine struct {
	mu     sync.Mutex
	collab collaborator.Collaborator
	bus    *bus.Bus
	now    func() time.Time

	maxPerHour int
	historyCap int

	current    theme.Theme
	history    []ChangeRecord
	userThemes map[string]theme.Theme
}

// NewEngine creates an engine with the default theme. collab may be
// nil, in which case every recommendation comes from the heuristic
// path.
func NewEngine(cfg config.RateLimitConfig, collab collaborator.Collaborator, b *bus.Bus) *Engine {
	return &Engine{
		collab:     collab,
		bus:        b,
		now:        time.Now,
		maxPerHour: cfg.MaxChangesPerHour,
		historyCap: cfg.HistoryCap,
		current:    theme.Default(),
		userThemes: make(map[string]theme.Theme),
	}
}

// Recommend builds a collaborator request from the snapshot and
// returns its recommendation set, falling back to deterministic
// heuristics on any failure. It never returns an error.
func (e *Engine) Recommend(ctx context.Context, snap *telemetry.AnalysisSnapshot) *collaborator.RecommendationSet {
	hour := e.now().Hour()
	req := buildRequest(snap, hour)

	if e.collab != nil {
		set, err := e.collab.Recommend(ctx, req)
		if err == nil {
			return set
		}
		log.Warn().Err(err).Msg("Collaborator failed, using heuristic recommendations")
	}
	return heuristicRecommendations(snap, hour)
}

func buildRequest(snap *telemetry.AnalysisSnapshot, hour int) collaborator.AnalysisRequest {
	req := collaborator.AnalysisRequest{
		TotalInteractions: snap.TotalInteractions,
		ClickRate:         snap.ClickRate,
		TotalEngagements:  snap.TotalEngagements,
		AvgLoadTime:       snap.AvgLoadTime,
		ActiveSessions:    snap.ActiveSessions,
		OverallSentiment:  snap.OverallSentiment,
		HourOfDay:         hour,
		TimeOfDayLabel:    timeOfDayLabel(hour),
	}
	for _, fp := range snap.FrictionPoints {
		req.FrictionPoints = append(req.FrictionPoints,
			fmt.Sprintf("%s (score %.2f, %d clicks)", fp.Target, fp.Score, fp.Clicks))
	}
	for _, p := range snap.DropOffPages {
		req.DropOffPages = append(req.DropOffPages,
			fmt.Sprintf("%s (bounce %.0f%%)", p.Page, p.BounceRate*100))
	}
	for _, d := range snap.DeviceBreakdown {
		req.DeviceBreakdown = append(req.DeviceBreakdown,
			fmt.Sprintf("%s: %d", d.Device, d.Count))
	}
	for _, f := range snap.TopFeatures {
		req.TopFeatures = append(req.TopFeatures,
			fmt.Sprintf("%s: %d", f.Feature, f.Count))
	}
	return req
}

// timeOfDayLabel buckets an hour: 5-11 morning, 12-16 afternoon,
// 17-20 evening, 21-4 night.
func timeOfDayLabel(hour int) string {
	switch {
	case hour >= 5 && hour <= 11:
		return "morning"
	case hour >= 12 && hour <= 16:
		return "afternoon"
	case hour >= 17 && hour <= 20:
		return "evening"
	default:
		return "night"
	}
}

func isNightHour(hour int) bool {
	return hour >= 21 || hour < 6
}

// heuristicRecommendations is the deterministic fallback. It never
// fails.
func heuristicRecommendations(snap *telemetry.AnalysisSnapshot, hour int) *collaborator.RecommendationSet {
	set := &collaborator.RecommendationSet{
		Priority:        "low",
		OverallStrategy: "heuristic fallback: address measured performance and friction signals",
	}

	if snap.AvgLoadTime > 3000 {
		set.Priority = "medium"
		set.Changes = append(set.Changes, collaborator.Change{
			Category:       "performance",
			Recommendation: "reduce page weight and defer non-critical assets",
			Reasoning:      fmt.Sprintf("average load time is %.0fms", snap.AvgLoadTime),
			ExpectedImpact: "faster first interaction",
			Implementation: "lazy-load media and split bundles",
		})
		set.UrgentIssues = append(set.UrgentIssues, "slow page loads")
	}

	for _, fp := range snap.FrictionPoints {
		set.Priority = "high"
		set.Changes = append(set.Changes, collaborator.Change{
			Category:       "layout",
			Recommendation: fmt.Sprintf("rework element %q", fp.Target),
			Reasoning:      fmt.Sprintf("friction score %.2f over %d clicks", fp.Score, fp.Clicks),
			ExpectedImpact: "fewer repeated clicks",
			Implementation: "increase hit area and add interaction feedback",
		})
	}

	if isNightHour(hour) {
		lightness := 30
		saturation := 40
		set.ThemeAdjustments = &theme.Adjustments{
			Lightness:  &lightness,
			Saturation: &saturation,
		}
	}

	return set
}

// CanApply reports whether the rolling rate limit allows another
// change right now.
func (e *Engine) CanApply() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canApplyLocked()
}

func (e *Engine) canApplyLocked() bool {
	cutoff := e.now().Add(-time.Hour)
	recent := 0
	for _, rec := range e.history {
		if rec.Timestamp.After(cutoff) {
			recent++
		}
	}
	return recent < e.maxPerHour
}

// Apply mutates the current theme from the recommendation set and
// appends a change record. Rate-limited applies return a structured
// refusal.
func (e *Engine) Apply(set *collaborator.RecommendationSet) ApplyResult {
	e.mu.Lock()

	if !e.canApplyLocked() {
		e.mu.Unlock()
		log.Info().Msg("Change rejected by rate limit")
		return ApplyResult{Applied: false, Reason: "rate limit"}
	}

	now := e.now()
	e.current = e.current.WithAdjustments(set.ThemeAdjustments, now)

	record := ChangeRecord{
		ID:              uuid.New().String(),
		Timestamp:       now,
		AppliedChanges:  set.Changes,
		Recommendations: set,
		Theme:           e.current,
	}
	e.history = append(e.history, record)
	if len(e.history) > e.historyCap {
		e.history = e.history[len(e.history)-e.historyCap:]
	}

	b := e.bus
	e.mu.Unlock()

	if b != nil {
		b.Publish(bus.DesignChanged, record)
	}
	log.Info().
		Str("change_id", record.ID).
		Str("priority", set.Priority).
		Int("changes", len(set.Changes)).
		Msg("Recommendation applied")

	return ApplyResult{
		Applied:  true,
		ChangeID: record.ID,
		Count:    len(set.Changes),
		Changes:  set.Changes,
	}
}

// Rollback restores the theme captured by the record immediately
// preceding changeID.
func (e *Engine) Rollback(changeID string) RollbackResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := -1
	for i, rec := range e.history {
		if rec.ID == changeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return RollbackResult{Success: false, Error: "change not found"}
	}
	if idx == 0 {
		return RollbackResult{Success: false, Error: "no prior state to restore"}
	}

	restored := e.history[idx-1].Theme
	e.current = restored
	log.Info().Str("change_id", changeID).Msg("Theme rolled back")
	return RollbackResult{Success: true, Theme: &restored}
}

// CurrentTheme returns the platform theme.
func (e *Engine) CurrentTheme() theme.Theme {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// PersonalizedTheme returns the cached per-user theme, deriving and
// caching one from the current platform theme on first request.
// Cache entries are never invalidated automatically.
func (e *Engine) PersonalizedTheme(userID string, prefs theme.Preferences) theme.Theme {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cached, ok := e.userThemes[userID]; ok {
		return cached
	}
	personalized := e.current.Personalize(prefs)
	e.userThemes[userID] = personalized
	return personalized
}

// History returns the most recent change records, newest first. A
// non-positive limit returns everything.
func (e *Engine) History(limit int) []ChangeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]ChangeRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, e.history[i])
	}
	return out
}
