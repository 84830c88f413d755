package telemetry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uxpulse/uxpulse/internal/bus"
	"github.com/uxpulse/uxpulse/internal/config"
)

func testConfig() config.TelemetryConfig {
	return config.TelemetryConfig{
		InteractionCap:  10000,
		EngagementCap:   10000,
		PerformanceCap:  5000,
		AnalysisWindow:  5 * time.Minute,
		HeatmapGridSize: 50,
	}
}

func newTestAggregator(t *testing.T, now time.Time) *Aggregator {
	t.Helper()
	a := NewAggregator(testConfig(), bus.New())
	a.now = func() time.Time { return now }
	return a
}

func click(user, target, page string, ts time.Time) InteractionEvent {
	return InteractionEvent{
		UserID:    user,
		SessionID: "s1",
		Type:      "click",
		Target:    target,
		Page:      page,
		Device:    "desktop",
		Timestamp: ts,
	}
}

func TestBuffersNeverExceedCap(t *testing.T) {
	cfg := testConfig()
	cfg.InteractionCap = 100
	a := NewAggregator(cfg, bus.New())

	for i := 0; i < 500; i++ {
		a.RecordInteraction(click("u1", fmt.Sprintf("el-%d", i), "/feed", time.Now()))
		assert.LessOrEqual(t, a.Stats().BufferedInteractions, cfg.InteractionCap)
	}

	// Trimmed to half capacity, most recent kept.
	a.mu.Lock()
	last := a.interactions[len(a.interactions)-1]
	a.mu.Unlock()
	assert.Equal(t, "el-499", last.Target)
}

func TestEngagementAndPerformanceBuffersTrim(t *testing.T) {
	cfg := testConfig()
	cfg.EngagementCap = 50
	cfg.PerformanceCap = 40
	a := NewAggregator(cfg, bus.New())

	for i := 0; i < 200; i++ {
		a.RecordEngagement(EngagementEvent{UserID: "u1", Type: "like", Timestamp: time.Now()})
		a.RecordPerformance(PerformanceMetric{UserID: "u1", Page: "/feed", Timestamp: time.Now()})
	}
	stats := a.Stats()
	assert.LessOrEqual(t, stats.BufferedEngagements, 50)
	assert.LessOrEqual(t, stats.BufferedPerformance, 40)
}

func TestFrictionScoreExact(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(t, now)

	// Five clicks on one target, 400ms apart. The 4th and 5th each
	// have at least three predecessors within 2000ms, so the score
	// is exactly 2/5.
	base := now.Add(-time.Minute)
	for i := 0; i < 5; i++ {
		a.RecordInteraction(click("u1", "submit-button", "/checkout", base.Add(time.Duration(i)*400*time.Millisecond)))
	}

	snap := a.Analyze()
	require.Len(t, snap.FrictionPoints, 1)
	fp := snap.FrictionPoints[0]
	assert.Equal(t, "submit-button", fp.Target)
	assert.InDelta(t, 0.4, fp.Score, 1e-9)
	assert.Equal(t, 5, fp.Clicks)
}

func TestFrictionBelowThresholdNotReported(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(t, now)

	// Clicks spaced a minute apart never count as repeated.
	base := now.Add(-4 * time.Minute)
	for i := 0; i < 4; i++ {
		a.RecordInteraction(click("u1", "nav-link", "/feed", base.Add(time.Duration(i)*time.Minute)))
	}

	snap := a.Analyze()
	assert.Empty(t, snap.FrictionPoints)
}

func TestClickRate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(t, now)

	ts := now.Add(-time.Minute)
	a.RecordInteraction(click("u1", "a", "/feed", ts))
	a.RecordInteraction(InteractionEvent{UserID: "u1", SessionID: "s1", Type: "scroll", Page: "/feed", Timestamp: ts})
	a.RecordInteraction(InteractionEvent{UserID: "u1", SessionID: "s1", Type: "hover", Target: "b", Page: "/feed", Timestamp: ts})
	a.RecordInteraction(InteractionEvent{UserID: "u1", SessionID: "s1", Type: "keypress", Page: "/feed", Timestamp: ts})

	snap := a.Analyze()
	assert.InDelta(t, 0.25, snap.ClickRate, 1e-9)
}

func TestAnalyzeIgnoresEventsOutsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(t, now)

	a.RecordInteraction(click("u1", "old", "/feed", now.Add(-10*time.Minute)))
	a.RecordInteraction(click("u1", "fresh", "/feed", now.Add(-time.Minute)))

	snap := a.Analyze()
	assert.Equal(t, 1, snap.TotalInteractions)
}

func TestBounceBoundaryIsStrict(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(t, now)

	// Session u1:s1 lasts exactly 30000ms: not a bounce.
	start := now.Add(-2 * time.Minute)
	a.RecordInteraction(click("u1", "a", "/landing", start))
	ev := click("u1", "b", "/landing", start.Add(30000*time.Millisecond))
	a.RecordInteraction(ev)

	// Sessions u2..u4 bounce on the same page.
	for i := 2; i <= 4; i++ {
		user := fmt.Sprintf("u%d", i)
		a.RecordInteraction(click(user, "a", "/landing", now.Add(-time.Minute)))
	}

	snap := a.Analyze()
	require.Len(t, snap.DropOffPages, 1)
	assert.Equal(t, "/landing", snap.DropOffPages[0].Page)
	// 3 bounces out of 4 sessions.
	assert.InDelta(t, 0.75, snap.DropOffPages[0].BounceRate, 1e-9)
}

func TestDropOffRequiresMajorityBounce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(t, now)

	// One bounce, one long session: rate 0.5 is not strictly above
	// the threshold.
	a.RecordInteraction(click("u1", "a", "/feed", now.Add(-time.Minute)))
	start := now.Add(-3 * time.Minute)
	a.RecordInteraction(click("u2", "a", "/feed", start))
	a.RecordInteraction(click("u2", "b", "/feed", start.Add(time.Minute)))

	snap := a.Analyze()
	assert.Empty(t, snap.DropOffPages)
}

func TestSentimentPlurality(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(t, now)

	ts := now.Add(-time.Minute)
	for i := 0; i < 3; i++ {
		a.RecordEngagement(EngagementEvent{UserID: "u1", Type: "comment", Sentiment: "positive", Timestamp: ts})
	}
	a.RecordEngagement(EngagementEvent{UserID: "u2", Type: "comment", Sentiment: "negative", Timestamp: ts})

	assert.Equal(t, "positive", a.Analyze().OverallSentiment)
}

func TestSentimentTieIsNeutral(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(t, now)

	ts := now.Add(-time.Minute)
	a.RecordEngagement(EngagementEvent{UserID: "u1", Type: "comment", Sentiment: "positive", Timestamp: ts})
	a.RecordEngagement(EngagementEvent{UserID: "u2", Type: "comment", Sentiment: "negative", Timestamp: ts})

	assert.Equal(t, "neutral", a.Analyze().OverallSentiment)
}

func TestSentimentEmptyIsNeutral(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(t, now)
	assert.Equal(t, "neutral", a.Analyze().OverallSentiment)
}

func TestPerformanceAverages(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(t, now)

	ts := now.Add(-time.Minute)
	a.RecordPerformance(PerformanceMetric{Page: "/feed", LoadTime: 1000, FCP: 500, LCP: 800, CLS: 0.1, Timestamp: ts})
	a.RecordPerformance(PerformanceMetric{Page: "/feed", LoadTime: 3000, FCP: 1500, LCP: 2400, CLS: 0.3, Timestamp: ts})

	snap := a.Analyze()
	assert.InDelta(t, 2000, snap.AvgLoadTime, 1e-9)
	assert.InDelta(t, 1000, snap.AvgFCP, 1e-9)
	assert.InDelta(t, 1600, snap.AvgLCP, 1e-9)
	assert.InDelta(t, 0.2, snap.AvgCLS, 1e-9)
}

func TestHeatmapGrid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(t, now)

	ts := now.Add(-time.Minute)
	// Three clicks land in the same 50px cell, one in another.
	for _, xy := range [][2]int{{10, 10}, {20, 30}, {49, 49}, {120, 10}} {
		ev := click("u1", "a", "/feed", ts)
		ev.X, ev.Y = xy[0], xy[1]
		a.RecordInteraction(ev)
	}
	hover := InteractionEvent{UserID: "u1", SessionID: "s1", Type: "hover", Target: "a", Page: "/feed", X: 10, Y: 10, Timestamp: ts}
	a.RecordInteraction(hover)

	points := a.Heatmap("/feed")
	require.Len(t, points, 2)
	assert.Equal(t, 3, points[0].Clicks)
	assert.Equal(t, 1, points[0].Hovers)
	assert.Equal(t, 0, points[0].GridX)
	assert.Equal(t, 2, points[1].GridX)
}

func TestTopFeaturesBySubstring(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAggregator(t, now)

	ts := now.Add(-time.Minute)
	for i := 0; i < 3; i++ {
		a.RecordInteraction(click("u1", "search-input", "/feed", ts))
	}
	a.RecordInteraction(click("u1", "profile-avatar", "/feed", ts))

	snap := a.Analyze()
	require.NotEmpty(t, snap.TopFeatures)
	assert.Equal(t, "search", snap.TopFeatures[0].Feature)
	assert.Equal(t, 3, snap.TopFeatures[0].Count)
}

func TestAnalyzePublishesSnapshot(t *testing.T) {
	b := bus.New()
	var published []*AnalysisSnapshot
	b.Subscribe(bus.AnalysisProduced, func(p interface{}) {
		published = append(published, p.(*AnalysisSnapshot))
	})

	a := NewAggregator(testConfig(), b)
	snap := a.Analyze()

	require.Len(t, published, 1)
	assert.Same(t, snap, published[0])
}
