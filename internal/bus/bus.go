package bus

import (
	"sync"
)

// Kind identifies an internal notification stream.
type Kind string

const (
	AnalysisProduced Kind = "analysis_produced"
	DesignChanged    Kind = "design_changed"
	LowActivity      Kind = "low_activity"
)

// Bus is a small in-process publish/subscribe hub. Delivery is
// synchronous and in subscription order per kind.
type Bus struct {
	mu   sync.RWMutex
	subs map[Kind][]func(payload interface{})
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subs: make(map[Kind][]func(payload interface{})),
	}
}

// Subscribe registers a callback for a notification kind.
func (b *Bus) Subscribe(kind Kind, fn func(payload interface{})) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[kind] = append(b.subs[kind], fn)
}

// Publish delivers payload to every subscriber of kind, in the order
// they subscribed. Callbacks run on the publisher's goroutine.
func (b *Bus) Publish(kind Kind, payload interface{}) {
	b.mu.RLock()
	subs := make([]func(interface{}), len(b.subs[kind]))
	copy(subs, b.subs[kind])
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(payload)
	}
}
