package telemetry

import (
	"time"
)

// Viewport is the client viewport size at event time.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// InteractionEvent is a single raw UI interaction. Immutable once
// recorded.
type InteractionEvent struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Type      string    `json:"type"`
	Target    string    `json:"target"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Page      string    `json:"page"`
	Device    string    `json:"device"`
	Viewport  Viewport  `json:"viewport"`
	Timestamp time.Time `json:"timestamp"`
}

// EngagementEvent is a content-level engagement action.
type EngagementEvent struct {
	UserID     string    `json:"user_id"`
	Type       string    `json:"type"`
	TargetID   string    `json:"target_id"`
	TargetType string    `json:"target_type"`
	Sentiment  string    `json:"sentiment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// PerformanceMetric is one page-load measurement.
type PerformanceMetric struct {
	UserID     string    `json:"user_id"`
	Page       string    `json:"page"`
	LoadTime   float64   `json:"load_time"`
	FCP        float64   `json:"fcp"`
	LCP        float64   `json:"lcp"`
	FID        float64   `json:"fid"`
	CLS        float64   `json:"cls"`
	TTFB       float64   `json:"ttfb"`
	Device     string    `json:"device"`
	Connection string    `json:"connection"`
	Timestamp  time.Time `json:"timestamp"`
}

// Session tracks per-(user,session) activity. Created on first event
// for the key, updated on every subsequent one, never destroyed.
type Session struct {
	UserID           string
	SessionID        string
	StartTime        time.Time
	LastActivity     time.Time
	InteractionCount int
	PagesVisited     map[string]struct{}
	FeaturesUsed     map[string]struct{}
}

// HeatPoint is a grid cell of click/hover density on a page.
type HeatPoint struct {
	Page   string `json:"page"`
	GridX  int    `json:"grid_x"`
	GridY  int    `json:"grid_y"`
	Clicks int    `json:"clicks"`
	Hovers int    `json:"hovers"`
}

// SessionUpdate is the copy handed to a SessionSink after a session
// mutation.
type SessionUpdate struct {
	UserID           string
	SessionID        string
	Page             string
	EventType        string
	Device           string
	StartTime        time.Time
	LastActivity     time.Time
	InteractionCount int
	PagesVisited     int
}

// SessionSink receives session updates, e.g. a Redis mirror. Calls are
// made off the ingestion path and must tolerate concurrency.
type SessionSink interface {
	SessionUpdated(update SessionUpdate)
}
