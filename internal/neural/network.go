// Package neural simulates an affective network: a weighted graph of
// co-activations with Hebbian-style reinforcement, periodic decay, and
// a coarse mood classifier.
package neural

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/uxpulse/uxpulse/internal/bus"
	"github.com/uxpulse/uxpulse/internal/config"
)

const (
	maxWeight   = 10.0
	pruneFloor  = 0.1
	homeostasis = 0.9

	lowActivityFloor       = 0.5
	lowActivityProbability = 0.1
)

const (
	RegionAnalytical = "analytical"
	RegionEmotional  = "emotional"
	RegionCreative   = "creative"
)

// regionKeywords buckets event types into activity regions.
var regionKeywords = map[string][]string{
	RegionAnalytical: {"click", "scroll", "keypress", "search", "filter", "navigate"},
	RegionEmotional:  {"like", "comment", "share", "follow", "react"},
	RegionCreative:   {"post", "hover", "compose", "upload", "create"},
}

// Synapse is a weighted co-activation edge.
type Synapse struct {
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Weight   float64 `json:"weight"`
}

// Topology is a point-in-time view of the network.
type Topology struct {
	SynapseCount int                `json:"synapse_count"`
	Regions      map[string]float64 `json:"regions"`
	TopSynapses  []Synapse          `json:"top_synapses"`
}

// Network holds synapses and region activity. Decay runs on its own
// ticker and touches only this state.
type Network struct {
	mu         sync.Mutex
	plasticity float64
	decay      float64
	tick       time.Duration
	bus        *bus.Bus
	rng        *rand.Rand

	synapses    map[string]*Synapse
	regions     map[string]float64
	activations int

	done    chan struct{}
	started bool
}

// New creates a network. rng drives the low-activity notification and
// may be seeded for deterministic tests.
func New(cfg config.NeuralConfig, b *bus.Bus, rng *rand.Rand) *Network {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Network{
		plasticity: cfg.PlasticityRate,
		decay:      cfg.DecayRate,
		tick:       cfg.TickInterval,
		bus:        b,
		rng:        rng,
		synapses:   make(map[string]*Synapse),
		regions: map[string]float64{
			RegionAnalytical: 0,
			RegionEmotional:  0,
			RegionCreative:   0,
		},
		done: make(chan struct{}),
	}
}

// Start launches the decay ticker. Idempotent.
func (n *Network) Start() {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return
	}
	n.started = true
	n.mu.Unlock()

	go func() {
		ticker := time.NewTicker(n.tick)
		defer ticker.Stop()
		for {
			select {
			case <-n.done:
				return
			case <-ticker.C:
				n.Tick()
			}
		}
	}()
}

// Stop halts the decay ticker.
func (n *Network) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		close(n.done)
		n.started = false
	}
}

// Stimulate reinforces the (sourceID,targetID) synapse and adds
// intensity to the region matching eventType. Returns the updated
// weight and a region snapshot.
func (n *Network) Stimulate(eventType, sourceID, targetID string, intensity float64) (float64, map[string]float64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := sourceID + "->" + targetID
	syn, ok := n.synapses[key]
	if !ok {
		syn = &Synapse{SourceID: sourceID, TargetID: targetID}
		n.synapses[key] = syn
	}
	syn.Weight += n.plasticity * intensity
	if syn.Weight > maxWeight {
		syn.Weight = maxWeight
	}

	region := classifyRegion(eventType)
	n.regions[region] += intensity
	n.activations++

	return syn.Weight, n.regionSnapshotLocked()
}

func classifyRegion(eventType string) string {
	for region, keywords := range regionKeywords {
		for _, kw := range keywords {
			if eventType == kw {
				return region
			}
		}
	}
	return RegionAnalytical
}

// Tick applies one decay step: synapse weights shrink by the decay
// rate and are pruned below the floor; region activity homeostasis
// pulls levels toward zero. Fires a low-activity notification with
// fixed probability when total activity is nearly gone.
func (n *Network) Tick() {
	n.mu.Lock()
	for key, syn := range n.synapses {
		syn.Weight *= 1 - n.decay
		if syn.Weight < pruneFloor {
			delete(n.synapses, key)
		}
	}

	total := 0.0
	for region := range n.regions {
		n.regions[region] *= homeostasis
		total += n.regions[region]
	}

	fire := total < lowActivityFloor && n.rng.Float64() < lowActivityProbability
	b := n.bus
	n.mu.Unlock()

	if fire && b != nil {
		b.Publish(bus.LowActivity, total)
		log.Debug().Float64("activity", total).Msg("Low-activity notification fired")
	}
}

// Topology returns the synapse count, region activity, and the five
// heaviest synapses in a stable order.
func (n *Network) Topology() Topology {
	n.mu.Lock()
	defer n.mu.Unlock()

	top := make([]Synapse, 0, len(n.synapses))
	for _, syn := range n.synapses {
		top = append(top, *syn)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Weight != top[j].Weight {
			return top[i].Weight > top[j].Weight
		}
		if top[i].SourceID != top[j].SourceID {
			return top[i].SourceID < top[j].SourceID
		}
		return top[i].TargetID < top[j].TargetID
	})
	if len(top) > 5 {
		top = top[:5]
	}

	return Topology{
		SynapseCount: len(n.synapses),
		Regions:      n.regionSnapshotLocked(),
		TopSynapses:  top,
	}
}

func (n *Network) regionSnapshotLocked() map[string]float64 {
	snap := make(map[string]float64, len(n.regions))
	for region, level := range n.regions {
		snap[region] = level
	}
	return snap
}

// Mood classifies aggregate activity.
func (n *Network) Mood() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	total := 0.0
	for _, level := range n.regions {
		total += level
	}
	switch {
	case total > 10:
		return "manic"
	case total > 5:
		return "active"
	case total < 1:
		return "meditative"
	default:
		return "calm"
	}
}

// StateOfMind classifies the relative shape of region activity.
func (n *Network) StateOfMind() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	emotional := n.regions[RegionEmotional]
	switch {
	case emotional > n.regions[RegionAnalytical] && emotional > n.regions[RegionCreative]:
		return "feeling"
	case n.regions[RegionCreative] > 2.0:
		return "creating"
	case len(n.synapses) > 1000:
		return "hyper-connected"
	default:
		return "observing"
	}
}
