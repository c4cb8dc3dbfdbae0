package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRegionStaysInFrame(t *testing.T) {
	b := NewRegionBuilder(nil)
	boxes := [][4]float32{
		{200, 150, 440, 390},
		{-20, 0, 60, 120},
		{600, 400, 700, 520},
	}
	for _, box := range boxes {
		r := b.Build(box, nil, 640, 480, 0)
		assert.GreaterOrEqual(t, r.X, float32(0))
		assert.GreaterOrEqual(t, r.Y, float32(0))
		assert.LessOrEqual(t, r.X+r.W, float32(640))
		assert.LessOrEqual(t, r.Y+r.H, float32(480))
		assert.GreaterOrEqual(t, r.W, float32(0))
		assert.GreaterOrEqual(t, r.H, float32(0))
	}
}

func TestBuildRegionWidthFloor(t *testing.T) {
	b := NewRegionBuilder(nil)
	// A sliver box: 20 wide, 200 tall, frontal landmarks so profile
	// compensation does not widen it on its own.
	lm := &Landmarks{{95, 80}, {115, 80}, {105, 100}, {98, 130}, {112, 130}}
	r := b.Build([4]float32{95, 50, 115, 250}, lm, 2000, 2000, 0)

	// Padded unclamped width must respect the 0.8 * boxH floor.
	require.True(t, r.HasUnclamped)
	assert.GreaterOrEqual(t, r.FW, float32(0.8*200))
}

func TestBuildRegionFrontalUsesCentroid(t *testing.T) {
	b := NewRegionBuilder(nil)
	// Nose exactly between the eyes: profile ratio 0, center should sit
	// on the landmark centroid rather than the box center.
	lm := &Landmarks{{390, 260}, {410, 260}, {400, 280}, {395, 310}, {405, 310}}
	r := b.Build([4]float32{300, 200, 500, 350}, lm, 2000, 2000, 0)

	cx, _ := r.Center()
	lmx, _, ok := lm.Centroid()
	require.True(t, ok)
	assert.InDelta(t, float64(lmx), float64(cx), 0.5)
}

func TestBuildRegionSmoothingFirstObservationPassesThrough(t *testing.T) {
	smoothed := NewRegionBuilder(NewSmoother())
	raw := NewRegionBuilder(nil)

	box := [4]float32{100, 100, 200, 200}
	a := smoothed.Build(box, nil, 640, 480, 7)
	b := raw.Build(box, nil, 640, 480, 7)

	assert.Equal(t, b.X, a.X)
	assert.Equal(t, b.Y, a.Y)
	assert.Equal(t, b.W, a.W)
	assert.Equal(t, b.H, a.H)
}

func TestBuildRegionUntrackedBypassesSmoothing(t *testing.T) {
	b := NewRegionBuilder(NewSmoother())

	first := b.Build([4]float32{100, 100, 200, 200}, nil, 640, 480, 0)
	second := b.Build([4]float32{100, 100, 200, 200}, nil, 640, 480, 0)
	assert.Equal(t, first, second)
}
