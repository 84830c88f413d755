package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/uxpulse/uxpulse/internal/bus"
	"github.com/uxpulse/uxpulse/internal/decision"
	"github.com/uxpulse/uxpulse/internal/telemetry"
)

const flushInterval = 5 * time.Second

// Archiver subscribes to analysis and design-change notifications and
// batches them into ClickHouse.
type Archiver struct {
	ch *ClickHouse

	mu        sync.Mutex
	snapshots []SnapshotRow
	changes   []ChangeRow

	ticker *time.Ticker
	done   chan struct{}
}

// NewArchiver wires an archiver to the bus and starts its flush loop.
func NewArchiver(ch *ClickHouse, b *bus.Bus) *Archiver {
	a := &Archiver{
		ch:        ch,
		snapshots: make([]SnapshotRow, 0, 100),
		changes:   make([]ChangeRow, 0, 100),
		ticker:    time.NewTicker(flushInterval),
		done:      make(chan struct{}),
	}

	b.Subscribe(bus.AnalysisProduced, a.onSnapshot)
	b.Subscribe(bus.DesignChanged, a.onChange)

	go a.flushLoop()
	return a
}

func (a *Archiver) onSnapshot(payload interface{}) {
	snap, ok := payload.(*telemetry.AnalysisSnapshot)
	if !ok {
		return
	}
	row := SnapshotRow{
		GeneratedAt:        snap.GeneratedAt,
		TotalInteractions:  uint32(snap.TotalInteractions),
		ClickRate:          snap.ClickRate,
		TotalEngagements:   uint32(snap.TotalEngagements),
		OverallSentiment:   snap.OverallSentiment,
		FrictionPoints:     uint16(len(snap.FrictionPoints)),
		WorstFriction:      snap.WorstFrictionScore(),
		DropOffPages:       uint16(len(snap.DropOffPages)),
		AvgLoadTime:        snap.AvgLoadTime,
		AvgFCP:             snap.AvgFCP,
		AvgLCP:             snap.AvgLCP,
		AvgCLS:             snap.AvgCLS,
		ActiveSessions:     uint32(snap.ActiveSessions),
		AvgSessionDuration: snap.AvgSessionDuration,
	}

	a.mu.Lock()
	a.snapshots = append(a.snapshots, row)
	a.mu.Unlock()
}

func (a *Archiver) onChange(payload interface{}) {
	record, ok := payload.(decision.ChangeRecord)
	if !ok {
		return
	}
	row := ChangeRow{
		ChangeID:    record.ID,
		Timestamp:   record.Timestamp,
		ChangeCount: uint16(len(record.AppliedChanges)),
		Theme:       MarshalTheme(record.Theme),
	}
	if record.Recommendations != nil {
		row.Priority = record.Recommendations.Priority
		row.Strategy = record.Recommendations.OverallStrategy
	}

	a.mu.Lock()
	a.changes = append(a.changes, row)
	a.mu.Unlock()
}

func (a *Archiver) flushLoop() {
	for {
		select {
		case <-a.done:
			return
		case <-a.ticker.C:
			a.Flush()
		}
	}
}

// Flush writes buffered rows to ClickHouse.
func (a *Archiver) Flush() {
	a.mu.Lock()
	snapshots := a.snapshots
	changes := a.changes
	a.snapshots = make([]SnapshotRow, 0, 100)
	a.changes = make([]ChangeRow, 0, 100)
	a.mu.Unlock()

	ctx := context.Background()
	if len(snapshots) > 0 {
		if err := a.ch.InsertSnapshots(ctx, snapshots); err != nil {
			log.Error().Err(err).Int("count", len(snapshots)).Msg("Failed to insert snapshots")
		} else {
			log.Debug().Int("count", len(snapshots)).Msg("Flushed snapshots to ClickHouse")
		}
	}
	if len(changes) > 0 {
		if err := a.ch.InsertChanges(ctx, changes); err != nil {
			log.Error().Err(err).Int("count", len(changes)).Msg("Failed to insert changes")
		} else {
			log.Debug().Int("count", len(changes)).Msg("Flushed changes to ClickHouse")
		}
	}
}

// Stop halts the flush loop and performs a final flush.
func (a *Archiver) Stop() {
	a.ticker.Stop()
	close(a.done)
	a.Flush()
}
