// Package predictor learns a transition-count model from user
// navigation paths and predicts the most likely next destination.
package predictor

import (
	"sort"
	"sync"
)

// confidence below or equal to this yields no prediction.
const confidenceThreshold = 0.4

// Prediction is a next-path guess with its confidence.
type Prediction struct {
	NextPath   string  `json:"next_path"`
	Confidence float64 `json:"confidence"`
}

// Transition is one observed path-to-path edge with its count.
type Transition struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// Stats summarizes the model.
type Stats struct {
	Transitions    int          `json:"transitions"`
	TrackedUsers   int          `json:"tracked_users"`
	TopTransitions []Transition `json:"top_transitions"`
}

// Predictor is a Markov-chain next-path model. Safe for concurrent
// use.
type Predictor struct {
	mu          sync.Mutex
	transitions map[string]map[string]int
	lastPath    map[string]string
}

// New creates an empty predictor.
func New() *Predictor {
	return &Predictor{
		transitions: make(map[string]map[string]int),
		lastPath:    make(map[string]string),
	}
}

// Observe records the user's move to currentPath. A transition is
// counted only when the user had a prior recorded path different from
// currentPath; the cursor always moves.
func (p *Predictor) Observe(userID, currentPath string) {
	if userID == "" || currentPath == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if prior, ok := p.lastPath[userID]; ok && prior != currentPath {
		targets, ok := p.transitions[prior]
		if !ok {
			targets = make(map[string]int)
			p.transitions[prior] = targets
		}
		targets[currentPath]++
	}
	p.lastPath[userID] = currentPath
}

// Predict returns the most likely next path from currentPath, or nil
// when no transition is known or confidence does not exceed the
// threshold.
func (p *Predictor) Predict(userID, currentPath string) *Prediction {
	p.mu.Lock()
	defer p.mu.Unlock()

	targets := p.transitions[currentPath]
	if len(targets) == 0 {
		return nil
	}

	best, bestCount, total := "", 0, 0
	for to, count := range targets {
		total += count
		if count > bestCount || (count == bestCount && to < best) {
			best, bestCount = to, count
		}
	}

	confidence := float64(bestCount) / float64(total)
	if confidence <= confidenceThreshold {
		return nil
	}
	return &Prediction{NextPath: best, Confidence: confidence}
}

// Stats returns model size and the five heaviest transitions.
func (p *Predictor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var all []Transition
	for from, targets := range p.transitions {
		for to, count := range targets {
			all = append(all, Transition{From: from, To: to, Count: count})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		if all[i].From != all[j].From {
			return all[i].From < all[j].From
		}
		return all[i].To < all[j].To
	})
	top := all
	if len(top) > 5 {
		top = top[:5]
	}

	return Stats{
		Transitions:    len(all),
		TrackedUsers:   len(p.lastPath),
		TopTransitions: top,
	}
}
