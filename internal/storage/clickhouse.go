// Package storage archives analysis snapshots and change records to
// ClickHouse in batches.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/uxpulse/uxpulse/internal/config"
)

type ClickHouse struct {
	conn driver.Conn
}

// SnapshotRow is a row in the analysis_snapshots table.
type SnapshotRow struct {
	GeneratedAt        time.Time
	TotalInteractions  uint32
	ClickRate          float64
	TotalEngagements   uint32
	OverallSentiment   string
	FrictionPoints     uint16
	WorstFriction      float64
	DropOffPages       uint16
	AvgLoadTime        float64
	AvgFCP             float64
	AvgLCP             float64
	AvgCLS             float64
	ActiveSessions     uint32
	AvgSessionDuration float64
}

// ChangeRow is a row in the theme_changes table.
type ChangeRow struct {
	ChangeID    string
	Timestamp   time.Time
	Priority    string
	ChangeCount uint16
	Strategy    string
	Theme       string
}

func NewClickHouse(cfg config.ClickHouseConfig) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	return &ClickHouse{conn: conn}, nil
}

func (c *ClickHouse) InsertSnapshots(ctx context.Context, rows []SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO analysis_snapshots (
			generated_at, total_interactions, click_rate, total_engagements,
			overall_sentiment, friction_points, worst_friction, drop_off_pages,
			avg_load_time, avg_fcp, avg_lcp, avg_cls,
			active_sessions, avg_session_duration
		)
	`)
	if err != nil {
		return err
	}

	for _, r := range rows {
		err := batch.Append(
			r.GeneratedAt, r.TotalInteractions, r.ClickRate, r.TotalEngagements,
			r.OverallSentiment, r.FrictionPoints, r.WorstFriction, r.DropOffPages,
			r.AvgLoadTime, r.AvgFCP, r.AvgLCP, r.AvgCLS,
			r.ActiveSessions, r.AvgSessionDuration,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (c *ClickHouse) InsertChanges(ctx context.Context, rows []ChangeRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO theme_changes (
			change_id, timestamp, priority, change_count, strategy, theme
		)
	`)
	if err != nil {
		return err
	}

	for _, r := range rows {
		err := batch.Append(
			r.ChangeID, r.Timestamp, r.Priority, r.ChangeCount, r.Strategy, r.Theme,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

func (c *ClickHouse) Close() error {
	return c.conn.Close()
}

// MarshalTheme serializes a theme for the theme column.
func MarshalTheme(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
