package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uxpulse/uxpulse/internal/bus"
	"github.com/uxpulse/uxpulse/internal/collaborator"
	"github.com/uxpulse/uxpulse/internal/config"
	"github.com/uxpulse/uxpulse/internal/telemetry"
	"github.com/uxpulse/uxpulse/internal/theme"
)

type stubCollaborator struct {
	set *collaborator.RecommendationSet
	err error
}

func (s *stubCollaborator) Recommend(context.Context, collaborator.AnalysisRequest) (*collaborator.RecommendationSet, error) {
	return s.set, s.err
}

func rateCfg() config.RateLimitConfig {
	return config.RateLimitConfig{MaxChangesPerHour: 3, HistoryCap: 100}
}

func newTestEngine(collab collaborator.Collaborator) (*Engine, *time.Time) {
	e := NewEngine(rateCfg(), collab, bus.New())
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	return e, &now
}

func simpleSet(priority string) *collaborator.RecommendationSet {
	return &collaborator.RecommendationSet{
		Priority: priority,
		Changes:  []collaborator.Change{{Category: "layout", Recommendation: "x"}},
	}
}

func TestRecommendUsesCollaborator(t *testing.T) {
	want := simpleSet("high")
	e, _ := newTestEngine(&stubCollaborator{set: want})

	got := e.Recommend(context.Background(), &telemetry.AnalysisSnapshot{})
	assert.Same(t, want, got)
}

func TestRecommendFallsBackOnCollaboratorError(t *testing.T) {
	e, _ := newTestEngine(&stubCollaborator{err: errors.New("timeout")})

	snap := &telemetry.AnalysisSnapshot{AvgLoadTime: 4000}
	got := e.Recommend(context.Background(), snap)
	require.NotNil(t, got)
	assert.Equal(t, "medium", got.Priority)
	require.Len(t, got.Changes, 1)
	assert.Equal(t, "performance", got.Changes[0].Category)
}

func TestHeuristicFrictionIsHighPriority(t *testing.T) {
	e, _ := newTestEngine(nil)

	snap := &telemetry.AnalysisSnapshot{
		FrictionPoints: []telemetry.FrictionPoint{
			{Target: "submit", Score: 0.6, Clicks: 10},
			{Target: "menu", Score: 0.4, Clicks: 5},
		},
	}
	got := e.Recommend(context.Background(), snap)
	assert.Equal(t, "high", got.Priority)
	assert.Len(t, got.Changes, 2)
}

func TestHeuristicNightModeAdjustments(t *testing.T) {
	e := NewEngine(rateCfg(), nil, bus.New())
	e.now = func() time.Time { return time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC) }

	got := e.Recommend(context.Background(), &telemetry.AnalysisSnapshot{})
	require.NotNil(t, got.ThemeAdjustments)
	require.NotNil(t, got.ThemeAdjustments.Lightness)
	assert.Equal(t, 30, *got.ThemeAdjustments.Lightness)

	// Daytime has no theme adjustments.
	e.now = func() time.Time { return time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC) }
	got = e.Recommend(context.Background(), &telemetry.AnalysisSnapshot{})
	assert.Nil(t, got.ThemeAdjustments)
}

func TestTimeOfDayLabels(t *testing.T) {
	cases := map[int]string{
		5: "morning", 11: "morning",
		12: "afternoon", 16: "afternoon",
		17: "evening", 20: "evening",
		21: "night", 23: "night", 0: "night", 4: "night",
	}
	for hour, want := range cases {
		assert.Equal(t, want, timeOfDayLabel(hour), "hour %d", hour)
	}
}

func TestRateLimitCapsChangesPerHour(t *testing.T) {
	e, now := newTestEngine(nil)

	for i := 0; i < 3; i++ {
		res := e.Apply(simpleSet("medium"))
		require.True(t, res.Applied, "apply %d", i)
		*now = now.Add(time.Minute)
	}

	res := e.Apply(simpleSet("medium"))
	assert.False(t, res.Applied)
	assert.Equal(t, "rate limit", res.Reason)

	// Past the rolling hour a new change is allowed again.
	*now = now.Add(61 * time.Minute)
	res = e.Apply(simpleSet("medium"))
	assert.True(t, res.Applied)
}

func TestApplyMutatesThemeFromAdjustments(t *testing.T) {
	e, _ := newTestEngine(nil)

	hue := 120
	set := simpleSet("high")
	set.ThemeAdjustments = &theme.Adjustments{PrimaryHue: &hue}

	res := e.Apply(set)
	require.True(t, res.Applied)
	assert.Equal(t, 120, e.CurrentTheme().PrimaryHue)
	assert.Equal(t, 1, res.Count)
}

func TestApplyPublishesDesignChanged(t *testing.T) {
	b := bus.New()
	var records []ChangeRecord
	b.Subscribe(bus.DesignChanged, func(p interface{}) {
		records = append(records, p.(ChangeRecord))
	})

	e := NewEngine(rateCfg(), nil, b)
	res := e.Apply(simpleSet("low"))
	require.True(t, res.Applied)
	require.Len(t, records, 1)
	assert.Equal(t, res.ChangeID, records[0].ID)
}

func TestHistoryCapped(t *testing.T) {
	cfg := config.RateLimitConfig{MaxChangesPerHour: 1000, HistoryCap: 10}
	e := NewEngine(cfg, nil, bus.New())
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	for i := 0; i < 25; i++ {
		require.True(t, e.Apply(simpleSet("low")).Applied)
	}
	assert.Len(t, e.History(0), 10)
}

func TestRollbackRestoresPrecedingTheme(t *testing.T) {
	e, now := newTestEngine(nil)

	hueA := 100
	setA := simpleSet("low")
	setA.ThemeAdjustments = &theme.Adjustments{PrimaryHue: &hueA}
	resA := e.Apply(setA)
	require.True(t, resA.Applied)
	themeA := e.CurrentTheme()

	*now = now.Add(time.Minute)
	hueB := 200
	setB := simpleSet("low")
	setB.ThemeAdjustments = &theme.Adjustments{PrimaryHue: &hueB}
	resB := e.Apply(setB)
	require.True(t, resB.Applied)
	require.Equal(t, 200, e.CurrentTheme().PrimaryHue)

	rb := e.Rollback(resB.ChangeID)
	require.True(t, rb.Success)
	assert.Equal(t, themeA, *rb.Theme)
	assert.Equal(t, themeA, e.CurrentTheme())
}

func TestRollbackFirstRecordFails(t *testing.T) {
	e, _ := newTestEngine(nil)

	res := e.Apply(simpleSet("low"))
	require.True(t, res.Applied)

	rb := e.Rollback(res.ChangeID)
	assert.False(t, rb.Success)
	assert.Equal(t, "no prior state to restore", rb.Error)
}

func TestRollbackUnknownID(t *testing.T) {
	e, _ := newTestEngine(nil)
	rb := e.Rollback("nope")
	assert.False(t, rb.Success)
	assert.Equal(t, "change not found", rb.Error)
}

func TestPersonalizedThemeCached(t *testing.T) {
	e, _ := newTestEngine(nil)

	hue := 42
	first := e.PersonalizedTheme("u1", theme.Preferences{PrimaryHue: &hue})
	assert.Equal(t, 42, first.PrimaryHue)

	// Different preferences on later calls are ignored: the cache
	// wins and is never invalidated.
	other := 300
	second := e.PersonalizedTheme("u1", theme.Preferences{PrimaryHue: &other})
	assert.Equal(t, first, second)
}

func TestHistoryNewestFirst(t *testing.T) {
	e, now := newTestEngine(nil)

	first := e.Apply(simpleSet("low"))
	*now = now.Add(time.Minute)
	second := e.Apply(simpleSet("low"))

	hist := e.History(2)
	require.Len(t, hist, 2)
	assert.Equal(t, second.ChangeID, hist[0].ID)
	assert.Equal(t, first.ChangeID, hist[1].ID)
}
