package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func det(x1, y1, x2, y2, conf float32) Detection {
	return Detection{Box: [4]float32{x1, y1, x2, y2}, Confidence: conf}
}

func TestTrackerAssignsPersistentIDs(t *testing.T) {
	tr := NewTracker()

	first := tr.Update([]Detection{det(100, 100, 200, 200, 0.9)})
	require.Len(t, first, 1)
	assert.Equal(t, int64(1), first[0].TrackID)

	// Slightly moved box keeps the same ID.
	second := tr.Update([]Detection{det(105, 102, 205, 202, 0.9)})
	require.Len(t, second, 1)
	assert.Equal(t, int64(1), second[0].TrackID)
}

func TestTrackerNewFaceGetsNewID(t *testing.T) {
	tr := NewTracker()
	tr.Update([]Detection{det(100, 100, 200, 200, 0.9)})

	both := tr.Update([]Detection{
		det(100, 100, 200, 200, 0.9),
		det(400, 100, 500, 200, 0.9),
	})
	require.Len(t, both, 2)
	assert.Equal(t, int64(1), both[0].TrackID)
	assert.Equal(t, int64(2), both[1].TrackID)
}

func TestTrackerLowConfidenceDoesNotSpawnTrack(t *testing.T) {
	tr := NewTracker()
	out := tr.Update([]Detection{det(100, 100, 200, 200, 0.3)})
	require.Len(t, out, 1)
	assert.Equal(t, int64(0), out[0].TrackID)
	assert.Equal(t, 0, tr.ActiveCount())
}

func TestTrackerSurvivesBriefOcclusion(t *testing.T) {
	tr := NewTracker()
	tr.Update([]Detection{det(100, 100, 200, 200, 0.9)})

	for i := 0; i < 10; i++ {
		tr.Update(nil)
	}

	out := tr.Update([]Detection{det(100, 100, 200, 200, 0.9)})
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].TrackID)
}

func TestTrackerExpiresAfterThirtyAbsentFrames(t *testing.T) {
	tr := NewTracker()
	tr.Update([]Detection{det(100, 100, 200, 200, 0.9)})

	for i := 0; i < 30; i++ {
		tr.Update(nil)
	}
	assert.Equal(t, 0, tr.ActiveCount())

	// Reappearing after expiry draws a fresh ID.
	out := tr.Update([]Detection{det(100, 100, 200, 200, 0.9)})
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), out[0].TrackID)
}

func TestTrackerMatchJustBeforeExpiryKeepsID(t *testing.T) {
	tr := NewTracker()
	tr.Update([]Detection{det(100, 100, 200, 200, 0.9)})

	for i := 0; i < 29; i++ {
		tr.Update(nil)
	}
	out := tr.Update([]Detection{det(100, 100, 200, 200, 0.9)})
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].TrackID)
}
