package predictor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func observePath(p *Predictor, userID string, paths ...string) {
	for _, path := range paths {
		p.Observe(userID, path)
	}
}

func TestPredictMajorityTransition(t *testing.T) {
	p := New()

	// A->B three times, A->C twice: confidence 3/5 = 0.6.
	observePath(p, "u1", "/a", "/b")
	observePath(p, "u2", "/a", "/b")
	observePath(p, "u3", "/a", "/b")
	observePath(p, "u4", "/a", "/c")
	observePath(p, "u5", "/a", "/c")

	pred := p.Predict("u1", "/a")
	require.NotNil(t, pred)
	assert.Equal(t, "/b", pred.NextPath)
	assert.InDelta(t, 0.6, pred.Confidence, 1e-9)
}

func TestPredictConfidenceBoundaryIsStrict(t *testing.T) {
	p := New()

	// A->B twice, A->C twice, A->D once: best confidence is exactly
	// 2/5 = 0.4, which must not produce a prediction.
	observePath(p, "u1", "/a", "/b")
	observePath(p, "u2", "/a", "/b")
	observePath(p, "u3", "/a", "/c")
	observePath(p, "u4", "/a", "/c")
	observePath(p, "u5", "/a", "/d")

	assert.Nil(t, p.Predict("u1", "/a"))
}

func TestPredictUnknownPath(t *testing.T) {
	p := New()
	observePath(p, "u1", "/a", "/b")
	assert.Nil(t, p.Predict("u1", "/zzz"))
}

func TestObserveIgnoresSelfTransition(t *testing.T) {
	p := New()
	observePath(p, "u1", "/a", "/a", "/a")
	assert.Nil(t, p.Predict("u1", "/a"))
	assert.Equal(t, 0, p.Stats().Transitions)
}

func TestObserveFirstPathOnlyMovesCursor(t *testing.T) {
	p := New()
	p.Observe("u1", "/a")
	stats := p.Stats()
	assert.Equal(t, 0, stats.Transitions)
	assert.Equal(t, 1, stats.TrackedUsers)
}

func TestStatsTopTransitions(t *testing.T) {
	p := New()
	for i := 0; i < 4; i++ {
		observePath(p, "u1", "/a", "/b")
	}
	observePath(p, "u2", "/c", "/d")

	stats := p.Stats()
	assert.Equal(t, 2, stats.Transitions)
	require.NotEmpty(t, stats.TopTransitions)
	assert.Equal(t, Transition{From: "/a", To: "/b", Count: 4}, stats.TopTransitions[0])
}
