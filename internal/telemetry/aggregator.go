package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/uxpulse/uxpulse/internal/bus"
	"github.com/uxpulse/uxpulse/internal/config"
)

const (
	// A click counts as "repeated" when at least this many other
	// clicks hit the same target within frictionWindow before it.
	frictionMinNeighbors = 3
	frictionWindow       = 2000 * time.Millisecond
	frictionThreshold    = 0.3
	frictionTopN         = 5

	bounceThreshold  = 30000 * time.Millisecond
	dropOffThreshold = 0.5
	dropOffTopN      = 5

	topHoveredN  = 10
	topFeaturesN = 10
)

// featureVocabulary maps interaction targets to product features by
// substring match.
var featureVocabulary = []string{
	"feed", "post", "comment", "like", "share", "profile",
	"search", "chat", "notification", "settings", "theme", "upload",
}

// Aggregator ingests raw events into bounded buffers and derives
// AnalysisSnapshots over a rolling window. All methods are safe for
// concurrent use; ingestion never blocks on analysis consumers.
type Aggregator struct {
	mu   sync.Mutex
	cfg  config.TelemetryConfig
	bus  *bus.Bus
	sink SessionSink
	now  func() time.Time

	interactions []InteractionEvent
	engagements  []EngagementEvent
	performance  []PerformanceMetric

	sessions map[string]*Session
	heatmap  map[string]*HeatPoint
}

// NewAggregator creates an aggregator publishing snapshots on b.
func NewAggregator(cfg config.TelemetryConfig, b *bus.Bus) *Aggregator {
	return &Aggregator{
		cfg:          cfg,
		bus:          b,
		now:          time.Now,
		interactions: make([]InteractionEvent, 0, cfg.InteractionCap),
		engagements:  make([]EngagementEvent, 0, cfg.EngagementCap),
		performance:  make([]PerformanceMetric, 0, cfg.PerformanceCap),
		sessions:     make(map[string]*Session),
		heatmap:      make(map[string]*HeatPoint),
	}
}

// SetSessionSink attaches an external session mirror. Must be called
// before ingestion starts.
func (a *Aggregator) SetSessionSink(sink SessionSink) {
	a.sink = sink
}

// RecordInteraction appends an interaction event, updating the
// heatmap for click/hover events and the session for its key.
func (a *Aggregator) RecordInteraction(ev InteractionEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = a.now()
	}

	a.mu.Lock()
	a.interactions = append(a.interactions, ev)
	if len(a.interactions) > a.cfg.InteractionCap {
		a.interactions = trimInteractions(a.interactions, a.cfg.InteractionCap/2)
	}

	if ev.Type == "click" || ev.Type == "hover" {
		a.updateHeatmapLocked(ev)
	}
	update := a.updateSessionLocked(ev)
	sink := a.sink
	a.mu.Unlock()

	if sink != nil {
		go sink.SessionUpdated(update)
	}
}

// RecordEngagement appends an engagement event.
func (a *Aggregator) RecordEngagement(ev EngagementEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = a.now()
	}

	a.mu.Lock()
	a.engagements = append(a.engagements, ev)
	if len(a.engagements) > a.cfg.EngagementCap {
		a.engagements = trimEngagements(a.engagements, a.cfg.EngagementCap/2)
	}
	a.mu.Unlock()
}

// RecordPerformance appends a performance metric.
func (a *Aggregator) RecordPerformance(m PerformanceMetric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = a.now()
	}

	a.mu.Lock()
	a.performance = append(a.performance, m)
	if len(a.performance) > a.cfg.PerformanceCap {
		a.performance = trimPerformance(a.performance, a.cfg.PerformanceCap/2)
	}
	a.mu.Unlock()
}

func (a *Aggregator) updateHeatmapLocked(ev InteractionEvent) {
	grid := a.cfg.HeatmapGridSize
	gx := ev.X / grid
	gy := ev.Y / grid
	key := fmt.Sprintf("%s:%d:%d", ev.Page, gx, gy)

	hp, ok := a.heatmap[key]
	if !ok {
		hp = &HeatPoint{Page: ev.Page, GridX: gx, GridY: gy}
		a.heatmap[key] = hp
	}
	if ev.Type == "click" {
		hp.Clicks++
	} else {
		hp.Hovers++
	}
}

func (a *Aggregator) updateSessionLocked(ev InteractionEvent) SessionUpdate {
	key := ev.UserID + ":" + ev.SessionID
	s, ok := a.sessions[key]
	if !ok {
		s = &Session{
			UserID:       ev.UserID,
			SessionID:    ev.SessionID,
			StartTime:    ev.Timestamp,
			PagesVisited: make(map[string]struct{}),
			FeaturesUsed: make(map[string]struct{}),
		}
		a.sessions[key] = s
	}

	s.LastActivity = ev.Timestamp
	s.InteractionCount++
	if ev.Page != "" {
		s.PagesVisited[ev.Page] = struct{}{}
	}
	for _, feature := range featureVocabulary {
		if strings.Contains(ev.Target, feature) {
			s.FeaturesUsed[feature] = struct{}{}
		}
	}

	return SessionUpdate{
		UserID:           s.UserID,
		SessionID:        s.SessionID,
		Page:             ev.Page,
		EventType:        ev.Type,
		Device:           ev.Device,
		StartTime:        s.StartTime,
		LastActivity:     s.LastActivity,
		InteractionCount: s.InteractionCount,
		PagesVisited:     len(s.PagesVisited),
	}
}

// Analyze computes a snapshot over the configured rolling window and
// publishes it.
func (a *Aggregator) Analyze() *AnalysisSnapshot {
	return a.AnalyzeWindow(a.cfg.AnalysisWindow)
}

// AnalyzeWindow computes a snapshot for events newer than now-window.
func (a *Aggregator) AnalyzeWindow(window time.Duration) *AnalysisSnapshot {
	a.mu.Lock()
	now := a.now()
	cutoff := now.Add(-window)

	var interactions []InteractionEvent
	for _, ev := range a.interactions {
		if ev.Timestamp.After(cutoff) {
			interactions = append(interactions, ev)
		}
	}
	var engagements []EngagementEvent
	for _, ev := range a.engagements {
		if ev.Timestamp.After(cutoff) {
			engagements = append(engagements, ev)
		}
	}
	var metrics []PerformanceMetric
	for _, m := range a.performance {
		if m.Timestamp.After(cutoff) {
			metrics = append(metrics, m)
		}
	}
	var active []*Session
	for _, s := range a.sessions {
		if s.LastActivity.After(cutoff) {
			active = append(active, s)
		}
	}
	a.mu.Unlock()

	snap := &AnalysisSnapshot{
		GeneratedAt:       now,
		WindowStart:       cutoff,
		TotalInteractions: len(interactions),
		TotalEngagements:  len(engagements),
	}

	clicks := 0
	deviceCounts := make(map[string]int)
	hoverCounts := make(map[string]int)
	featureCounts := make(map[string]int)
	for _, ev := range interactions {
		if ev.Type == "click" {
			clicks++
		}
		if ev.Type == "hover" && ev.Target != "" {
			hoverCounts[ev.Target]++
		}
		if ev.Device != "" {
			deviceCounts[ev.Device]++
		}
		for _, feature := range featureVocabulary {
			if strings.Contains(ev.Target, feature) {
				featureCounts[feature]++
			}
		}
	}
	snap.ClickRate = float64(clicks) / float64(max(len(interactions), 1))
	snap.FrictionPoints = frictionPoints(interactions)
	snap.DropOffPages = dropOffPages(active)
	snap.OverallSentiment = pluralitySentiment(engagements)
	snap.DeviceBreakdown = deviceBreakdown(deviceCounts, len(interactions))
	snap.TopHovered = topCounts(hoverCounts, topHoveredN)
	snap.TopFeatures = topFeatures(featureCounts, topFeaturesN)

	if len(metrics) > 0 {
		var load, fcp, lcp, cls float64
		for _, m := range metrics {
			load += m.LoadTime
			fcp += m.FCP
			lcp += m.LCP
			cls += m.CLS
		}
		n := float64(len(metrics))
		snap.AvgLoadTime = load / n
		snap.AvgFCP = fcp / n
		snap.AvgLCP = lcp / n
		snap.AvgCLS = cls / n
	}

	snap.ActiveSessions = len(active)
	if len(active) > 0 {
		var total float64
		for _, s := range active {
			total += float64(s.LastActivity.Sub(s.StartTime).Milliseconds())
		}
		snap.AvgSessionDuration = total / float64(len(active))
	}

	if a.bus != nil {
		a.bus.Publish(bus.AnalysisProduced, snap)
	}
	log.Debug().
		Int("interactions", snap.TotalInteractions).
		Int("friction_points", len(snap.FrictionPoints)).
		Int("active_sessions", snap.ActiveSessions).
		Msg("Analysis snapshot produced")

	return snap
}

// frictionPoints scores each clicked target by the share of its
// clicks that arrive in rapid succession.
func frictionPoints(interactions []InteractionEvent) []FrictionPoint {
	byTarget := make(map[string][]time.Time)
	for _, ev := range interactions {
		if ev.Type == "click" && ev.Target != "" {
			byTarget[ev.Target] = append(byTarget[ev.Target], ev.Timestamp)
		}
	}

	var points []FrictionPoint
	for target, times := range byTarget {
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

		repeated := 0
		for i, ts := range times {
			neighbors := 0
			for j := i - 1; j >= 0; j-- {
				if ts.Sub(times[j]) > frictionWindow {
					break
				}
				neighbors++
			}
			if neighbors >= frictionMinNeighbors {
				repeated++
			}
		}

		score := float64(repeated) / float64(len(times))
		if score > frictionThreshold {
			points = append(points, FrictionPoint{
				Target: target,
				Score:  score,
				Clicks: len(times),
			})
		}
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].Score != points[j].Score {
			return points[i].Score > points[j].Score
		}
		return points[i].Target < points[j].Target
	})
	if len(points) > frictionTopN {
		points = points[:frictionTopN]
	}
	return points
}

// dropOffPages reports pages whose sessions mostly bounce. A session
// bounces when its duration is strictly under the threshold.
func dropOffPages(sessions []*Session) []DropOffPage {
	total := make(map[string]int)
	bounced := make(map[string]int)
	for _, s := range sessions {
		isBounce := s.LastActivity.Sub(s.StartTime) < bounceThreshold
		for page := range s.PagesVisited {
			total[page]++
			if isBounce {
				bounced[page]++
			}
		}
	}

	var pages []DropOffPage
	for page, count := range total {
		rate := float64(bounced[page]) / float64(count)
		if rate > dropOffThreshold {
			pages = append(pages, DropOffPage{
				Page:       page,
				BounceRate: rate,
				Sessions:   count,
			})
		}
	}

	sort.Slice(pages, func(i, j int) bool {
		if pages[i].BounceRate != pages[j].BounceRate {
			return pages[i].BounceRate > pages[j].BounceRate
		}
		return pages[i].Page < pages[j].Page
	})
	if len(pages) > dropOffTopN {
		pages = pages[:dropOffTopN]
	}
	return pages
}

// pluralitySentiment picks the most frequent engagement sentiment,
// "neutral" on empty input or ties.
func pluralitySentiment(engagements []EngagementEvent) string {
	counts := make(map[string]int)
	for _, ev := range engagements {
		if ev.Sentiment != "" {
			counts[ev.Sentiment]++
		}
	}
	if len(counts) == 0 {
		return "neutral"
	}

	best, bestCount, tied := "", 0, false
	for sentiment, count := range counts {
		switch {
		case count > bestCount:
			best, bestCount, tied = sentiment, count, false
		case count == bestCount:
			tied = true
		}
	}
	if tied {
		return "neutral"
	}
	return best
}

func deviceBreakdown(counts map[string]int, total int) []DeviceShare {
	var shares []DeviceShare
	for device, count := range counts {
		shares = append(shares, DeviceShare{
			Device: device,
			Count:  count,
			Share:  float64(count) / float64(max(total, 1)),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return shares[i].Device < shares[j].Device
	})
	return shares
}

func topCounts(counts map[string]int, n int) []TargetCount {
	var out []TargetCount
	for target, count := range counts {
		out = append(out, TargetCount{Target: target, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Target < out[j].Target
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func topFeatures(counts map[string]int, n int) []FeatureUsage {
	var out []FeatureUsage
	for feature, count := range counts {
		out = append(out, FeatureUsage{Feature: feature, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Feature < out[j].Feature
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Heatmap returns the heat points recorded for a page, densest first.
func (a *Aggregator) Heatmap(page string) []HeatPoint {
	a.mu.Lock()
	var points []HeatPoint
	for _, hp := range a.heatmap {
		if hp.Page == page {
			points = append(points, *hp)
		}
	}
	a.mu.Unlock()

	sort.Slice(points, func(i, j int) bool {
		if points[i].Clicks != points[j].Clicks {
			return points[i].Clicks > points[j].Clicks
		}
		if points[i].GridX != points[j].GridX {
			return points[i].GridX < points[j].GridX
		}
		return points[i].GridY < points[j].GridY
	})
	return points
}

// Stats reports buffer and tracking sizes.
type Stats struct {
	BufferedInteractions int `json:"buffered_interactions"`
	BufferedEngagements  int `json:"buffered_engagements"`
	BufferedPerformance  int `json:"buffered_performance"`
	TrackedSessions      int `json:"tracked_sessions"`
	HeatCells            int `json:"heat_cells"`
}

// Stats returns current buffer occupancy.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		BufferedInteractions: len(a.interactions),
		BufferedEngagements:  len(a.engagements),
		BufferedPerformance:  len(a.performance),
		TrackedSessions:      len(a.sessions),
		HeatCells:            len(a.heatmap),
	}
}

func trimInteractions(events []InteractionEvent, keep int) []InteractionEvent {
	trimmed := make([]InteractionEvent, keep)
	copy(trimmed, events[len(events)-keep:])
	return trimmed
}

func trimEngagements(events []EngagementEvent, keep int) []EngagementEvent {
	trimmed := make([]EngagementEvent, keep)
	copy(trimmed, events[len(events)-keep:])
	return trimmed
}

func trimPerformance(events []PerformanceMetric, keep int) []PerformanceMetric {
	trimmed := make([]PerformanceMetric, keep)
	copy(trimmed, events[len(events)-keep:])
	return trimmed
}
