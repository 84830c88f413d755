// Package loop schedules the telemetry/decision control loop: three
// independent cycles gated by an autonomy level, plus the public
// status surface.
package loop

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/uxpulse/uxpulse/internal/config"
	"github.com/uxpulse/uxpulse/internal/decision"
	"github.com/uxpulse/uxpulse/internal/neural"
	"github.com/uxpulse/uxpulse/internal/predictor"
	"github.com/uxpulse/uxpulse/internal/telemetry"
	"github.com/uxpulse/uxpulse/internal/theme"
)

const (
	healthHealthy  = "healthy"
	healthDegraded = "degraded"
)

// Status is the aggregate system status surface.
type Status struct {
	Enabled            bool              `json:"enabled"`
	AutonomyLevel      string            `json:"autonomy_level"`
	Health             string            `json:"health"`
	LastOptimization   *time.Time        `json:"last_optimization,omitempty"`
	TotalOptimizations int               `json:"total_optimizations"`
	Telemetry          telemetry.Stats   `json:"telemetry"`
	Predictor          predictor.Stats   `json:"predictor"`
	Network            neural.Topology   `json:"network"`
	Mood               string            `json:"mood"`
	StateOfMind        string            `json:"state_of_mind"`
}

// Insights is the read-side report for the UI layer.
type Insights struct {
	Snapshot    *telemetry.AnalysisSnapshot `json:"snapshot"`
	Predictor   predictor.Stats             `json:"predictor"`
	Mood        string                      `json:"mood"`
	StateOfMind string                      `json:"state_of_mind"`
	Network     neural.Topology             `json:"network"`
}

// Controller wires the aggregator, predictor, affective network, and
// decision engine together and drives the scheduled cycles.
type Controller struct {
	agg    *telemetry.Aggregator
	pred   *predictor.Predictor
	net    *neural.Network
	engine *decision.Engine
	cycles config.CyclesConfig

	mu                 sync.Mutex
	enabled            bool
	started            bool
	level              string
	health             string
	lastOptimization   time.Time
	totalOptimizations int
	lastSnapshot       *telemetry.AnalysisSnapshot

	done chan struct{}
}

// NewController builds a controller. Cycles do not run until
// SetEnabled(true).
func NewController(
	agg *telemetry.Aggregator,
	pred *predictor.Predictor,
	net *neural.Network,
	engine *decision.Engine,
	cycles config.CyclesConfig,
	level string,
) *Controller {
	if ValidateAutonomyLevel(level) != nil {
		level = AutonomyMedium
	}
	return &Controller{
		agg:    agg,
		pred:   pred,
		net:    net,
		engine: engine,
		cycles: cycles,
		level:  level,
		health: healthHealthy,
		done:   make(chan struct{}),
	}
}

// RecordInteraction routes a raw interaction to the aggregator, the
// sequence predictor, and the affective network. Never blocks on the
// decision engine.
func (c *Controller) RecordInteraction(ev telemetry.InteractionEvent) {
	c.agg.RecordInteraction(ev)
	c.pred.Observe(ev.UserID, ev.Page)
	if ev.Target != "" {
		c.net.Stimulate(ev.Type, ev.UserID, ev.Target, 1.0)
	}
}

// RecordEngagement routes an engagement event.
func (c *Controller) RecordEngagement(ev telemetry.EngagementEvent) {
	c.agg.RecordEngagement(ev)
	if ev.TargetID != "" {
		c.net.Stimulate(ev.Type, ev.UserID, ev.TargetID, 1.0)
	}
}

// RecordPerformance routes a performance metric.
func (c *Controller) RecordPerformance(m telemetry.PerformanceMetric) {
	c.agg.RecordPerformance(m)
}

// SetEnabled turns the cycles on or off. The first enable starts the
// three cycle goroutines exactly once; re-enabling while enabled is a
// no-op. Disabling stops future firings without interrupting a run
// already in flight.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = enabled
	if enabled && !c.started {
		c.started = true
		go c.runCycle("fast", c.cycles.Fast, c.fastCycle)
		go c.runCycle("standard", c.cycles.Standard, c.standardCycle)
		go c.runCycle("deep", c.cycles.Deep, c.deepCycle)
		log.Info().
			Dur("fast", c.cycles.Fast).
			Dur("standard", c.cycles.Standard).
			Dur("deep", c.cycles.Deep).
			Msg("Optimization cycles started")
	}
	log.Info().Bool("enabled", enabled).Msg("Autonomous optimization toggled")
}

// Close stops all cycle goroutines. For process shutdown.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		close(c.done)
		c.started = false
		c.enabled = false
	}
}

// runCycle fires handler on every tick while the controller is
// enabled. Any panic is contained: it degrades health but never
// terminates future firings.
func (c *Controller) runCycle(name string, interval time.Duration, handler func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			enabled := c.enabled
			c.mu.Unlock()
			if !enabled {
				continue
			}
			c.safeRun(name, handler)
		}
	}
}

func (c *Controller) safeRun(name string, handler func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("cycle", name).Msg("Cycle panicked")
			c.degrade()
		}
	}()
	handler(context.Background())
}

func (c *Controller) degrade() {
	c.mu.Lock()
	c.health = healthDegraded
	c.mu.Unlock()
}

// fastCycle runs a cheap re-analysis and invokes the decision engine
// only on critical signals, bypassing the autonomy gate.
func (c *Controller) fastCycle(ctx context.Context) {
	snap := c.analyze(c.agg.Analyze())
	if criticalFastPath(snap) {
		log.Info().Float64("avg_load", snap.AvgLoadTime).Msg("Fast cycle critical path triggered")
		c.TriggerOptimization(ctx, snap)
	}
}

// standardCycle always re-analyzes and consults the autonomy gate.
func (c *Controller) standardCycle(ctx context.Context) {
	snap := c.analyze(c.agg.Analyze())
	if gate(snap, c.AutonomyLevel()) {
		c.TriggerOptimization(ctx, snap)
	}
}

// deepCycle re-analyzes with extended historical context and applies
// any non-empty change list regardless of priority.
func (c *Controller) deepCycle(ctx context.Context) {
	snap := c.analyze(c.agg.AnalyzeWindow(24 * time.Hour))

	set := c.engine.Recommend(ctx, snap)
	if len(set.Changes) == 0 && set.ThemeAdjustments == nil {
		return
	}
	res := c.engine.Apply(set)
	c.recordOptimization(res.Applied)
	log.Info().Bool("applied", res.Applied).Str("reason", res.Reason).Msg("Deep cycle completed")
}

func (c *Controller) analyze(snap *telemetry.AnalysisSnapshot) *telemetry.AnalysisSnapshot {
	c.mu.Lock()
	c.lastSnapshot = snap
	c.mu.Unlock()
	return snap
}

// TriggerOptimization asks the engine for recommendations and applies
// them when priority is high or the autonomy level allows it. Errors
// degrade health but never propagate.
func (c *Controller) TriggerOptimization(ctx context.Context, snap *telemetry.AnalysisSnapshot) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Optimization failed")
			c.degrade()
		}
	}()

	set := c.engine.Recommend(ctx, snap)
	if set.Priority != "high" && c.AutonomyLevel() == AutonomyLow {
		log.Debug().Str("priority", set.Priority).Msg("Recommendations withheld at low autonomy")
		return
	}

	res := c.engine.Apply(set)
	c.recordOptimization(res.Applied)
	log.Info().
		Bool("applied", res.Applied).
		Str("reason", res.Reason).
		Int("changes", res.Count).
		Msg("Optimization completed")
}

func (c *Controller) recordOptimization(applied bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if applied {
		c.lastOptimization = time.Now()
		c.totalOptimizations++
	}
}

// ManualOptimize runs one analyze-and-optimize pass on demand,
// ignoring the autonomy gate.
func (c *Controller) ManualOptimize(ctx context.Context) {
	snap := c.analyze(c.agg.Analyze())
	c.TriggerOptimization(ctx, snap)
}

// SetAutonomyLevel validates and applies the level.
func (c *Controller) SetAutonomyLevel(level string) error {
	if err := ValidateAutonomyLevel(level); err != nil {
		return err
	}
	c.mu.Lock()
	c.level = level
	c.mu.Unlock()
	log.Info().Str("level", level).Msg("Autonomy level changed")
	return nil
}

// AutonomyLevel returns the current level.
func (c *Controller) AutonomyLevel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// Rollback delegates to the decision engine.
func (c *Controller) Rollback(changeID string) decision.RollbackResult {
	return c.engine.Rollback(changeID)
}

// History delegates to the decision engine.
func (c *Controller) History(limit int) []decision.ChangeRecord {
	return c.engine.History(limit)
}

// CurrentTheme returns the platform theme.
func (c *Controller) CurrentTheme() theme.Theme {
	return c.engine.CurrentTheme()
}

// PersonalizedTheme returns a per-user derived theme.
func (c *Controller) PersonalizedTheme(userID string, prefs theme.Preferences) theme.Theme {
	return c.engine.PersonalizedTheme(userID, prefs)
}

// Heatmap returns the click/hover density grid for a page.
func (c *Controller) Heatmap(page string) []telemetry.HeatPoint {
	return c.agg.Heatmap(page)
}

// Status aggregates the public status surface.
func (c *Controller) Status() Status {
	c.mu.Lock()
	status := Status{
		Enabled:            c.enabled,
		AutonomyLevel:      c.level,
		Health:             c.health,
		TotalOptimizations: c.totalOptimizations,
	}
	if !c.lastOptimization.IsZero() {
		t := c.lastOptimization
		status.LastOptimization = &t
	}
	c.mu.Unlock()

	status.Telemetry = c.agg.Stats()
	status.Predictor = c.pred.Stats()
	status.Network = c.net.Topology()
	status.Mood = c.net.Mood()
	status.StateOfMind = c.net.StateOfMind()
	return status
}

// Insights returns the read-side analysis report.
func (c *Controller) Insights() Insights {
	c.mu.Lock()
	snap := c.lastSnapshot
	c.mu.Unlock()

	if snap == nil {
		snap = c.agg.Analyze()
		c.mu.Lock()
		c.lastSnapshot = snap
		c.mu.Unlock()
	}

	return Insights{
		Snapshot:    snap,
		Predictor:   c.pred.Stats(),
		Mood:        c.net.Mood(),
		StateOfMind: c.net.StateOfMind(),
		Network:     c.net.Topology(),
	}
}
