package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegionClampsToFrame(t *testing.T) {
	r := NewRegion(-50, -20, 200, 100, 640, 480, 1)

	assert.Equal(t, float32(0), r.X)
	assert.Equal(t, float32(0), r.Y)
	assert.Equal(t, float32(150), r.W)
	assert.Equal(t, float32(80), r.H)

	// Unclamped geometry survives for the ellipse.
	assert.Equal(t, float32(-50), r.UX)
	assert.Equal(t, float32(200), r.FW)
}

func TestNewRegionInsideFrameIsUnchanged(t *testing.T) {
	r := NewRegion(100, 50, 200, 150, 640, 480, 0)

	assert.Equal(t, float32(100), r.X)
	assert.Equal(t, float32(50), r.Y)
	assert.Equal(t, float32(200), r.W)
	assert.Equal(t, float32(150), r.H)
	assert.LessOrEqual(t, r.X+r.W, float32(640))
	assert.LessOrEqual(t, r.Y+r.H, float32(480))
}

func TestNewRegionFullyOffscreenIsEmpty(t *testing.T) {
	r := NewRegion(700, 500, 50, 50, 640, 480, 0)
	assert.True(t, r.Empty())
}

func TestEllipseCenterSlidesOffEdge(t *testing.T) {
	// Region hanging off the left edge: the ellipse center stays where
	// the unclamped rectangle puts it, left of the visible ROI center.
	r := NewRegion(-50, 100, 200, 100, 640, 480, 0)
	cx, cy, a, b := r.Ellipse()

	assert.Equal(t, float32(50), cx) // 100 - (0 - (-50))
	assert.Equal(t, float32(50), cy)
	assert.Equal(t, float32(100), a)
	assert.Equal(t, float32(50), b)
}

func TestEllipseWithoutUnclamped(t *testing.T) {
	r := Region{X: 10, Y: 20, W: 40, H: 60}
	cx, cy, a, b := r.Ellipse()
	assert.Equal(t, float32(20), cx)
	assert.Equal(t, float32(30), cy)
	assert.Equal(t, float32(20), a)
	assert.Equal(t, float32(30), b)
}

func TestIoU(t *testing.T) {
	a := Region{X: 0, Y: 0, W: 10, H: 10}
	b := Region{X: 5, Y: 0, W: 10, H: 10}
	require.InDelta(t, 50.0/150.0, float64(IoU(a, b)), 1e-6)

	assert.Equal(t, float32(1), IoU(a, a))
	assert.Equal(t, float32(0), IoU(a, Region{X: 100, Y: 100, W: 5, H: 5}))
}
