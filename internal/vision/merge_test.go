package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackedRegion(cx, cy, w, h float32, id int64) Region {
	return NewRegion(cx-w/2, cy-h/2, w, h, 640, 480, id)
}

func TestMergeCurrentFrameWins(t *testing.T) {
	m := NewMerger(5, 640, 480)

	current := []Region{trackedRegion(320, 240, 100, 100, 1)}
	future := [][]Region{{trackedRegion(100, 100, 100, 100, 1)}}

	merged := m.Merge(current, future)
	require.Len(t, merged, 1)
	cx, cy := merged[0].Center()
	assert.Equal(t, float32(320), cx)
	assert.Equal(t, float32(240), cy)
}

func TestMergeEdgeFacePulledIn(t *testing.T) {
	// A face entering from the right at center x 620 on a 640-wide
	// frame: with one frame of lookahead the pull strength is 0.5 and
	// the distance to the edge 20, so the region lands at center 630.
	m := NewMerger(1, 640, 480)

	future := [][]Region{{trackedRegion(620, 240, 40, 40, 3)}}
	merged := m.Merge(nil, future)

	require.Len(t, merged, 1)
	assert.Equal(t, int64(3), merged[0].TrackID)
	require.True(t, merged[0].HasUnclamped)
	cx := merged[0].UX + merged[0].FW/2
	assert.InDelta(t, 630, float64(cx), 1e-4)
}

func TestMergeCentralFaceEntersUnchanged(t *testing.T) {
	m := NewMerger(5, 640, 480)

	future := [][]Region{{trackedRegion(320, 240, 40, 40, 3)}}
	merged := m.Merge(nil, future)

	require.Len(t, merged, 1)
	cx, cy := merged[0].Center()
	assert.Equal(t, float32(320), cx)
	assert.Equal(t, float32(240), cy)
}

func TestMergeNearestLookaheadFrameClaimsTrack(t *testing.T) {
	m := NewMerger(5, 640, 480)

	// Same track in two future frames: the earlier one wins the ID slot.
	future := [][]Region{
		{trackedRegion(620, 240, 40, 40, 3)},
		{trackedRegion(620, 240, 40, 40, 3)},
	}
	merged := m.Merge(nil, future)
	require.Len(t, merged, 1)

	// t = 1/6 for idx 0: pull 20/6 toward the right edge.
	cx := merged[0].UX + merged[0].FW/2
	assert.InDelta(t, 620+20.0/6.0, float64(cx), 1e-3)
}

func TestDedupDropsOverlapping(t *testing.T) {
	a := trackedRegion(320, 240, 100, 100, 1)
	b := trackedRegion(325, 242, 100, 100, 2) // heavy overlap with a
	c := trackedRegion(100, 100, 50, 50, 3)

	out := Dedup([]Region{a, b, c})
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].TrackID)
	assert.Equal(t, int64(3), out[1].TrackID)
}

func TestDedupIsIdempotent(t *testing.T) {
	regions := []Region{
		trackedRegion(320, 240, 100, 100, 1),
		trackedRegion(330, 240, 100, 100, 2),
		trackedRegion(100, 100, 50, 50, 3),
		trackedRegion(500, 400, 60, 60, 4),
	}
	once := Dedup(regions)
	twice := Dedup(once)
	assert.Equal(t, once, twice)
}
