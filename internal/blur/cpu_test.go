package blur

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neutrinographics/faceguard/internal/media"
	"github.com/neutrinographics/faceguard/internal/vision"
)

// checkerFrame builds a frame with a high-frequency pattern so blurring
// visibly changes pixel values.
func checkerFrame(w, h int) *media.Frame {
	frame := media.NewFrame(w, h, 0)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := byte(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			off := frame.At(x, y)
			frame.Pix[off] = v
			frame.Pix[off+1] = v
			frame.Pix[off+2] = v
		}
	}
	return frame
}

func TestBlurEmptyRegionListIsIdentity(t *testing.T) {
	frame := checkerFrame(64, 48)
	want := frame.Clone()

	c := NewCPU(ShapeRect, 9)
	require.NoError(t, c.Blur(frame, nil))
	assert.Equal(t, want.Pix, frame.Pix)
}

func TestBlurDegenerateRegionIsNoOp(t *testing.T) {
	frame := checkerFrame(64, 48)
	want := frame.Clone()

	c := NewCPU(ShapeRect, 9)
	require.NoError(t, c.Blur(frame, []vision.Region{{X: 10, Y: 10, W: 0, H: 5}}))
	assert.Equal(t, want.Pix, frame.Pix)
}

func TestBlurRectChangesInsideOnly(t *testing.T) {
	frame := checkerFrame(64, 48)
	want := frame.Clone()

	region := vision.NewRegion(16, 12, 24, 20, 64, 48, 0)
	c := NewCPU(ShapeRect, 9)
	require.NoError(t, c.Blur(frame, []vision.Region{region}))

	changed := 0
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			off := frame.At(x, y)
			inside := x >= 16 && x < 40 && y >= 12 && y < 32
			if !inside {
				assert.Equal(t, want.Pix[off], frame.Pix[off], "pixel (%d,%d) outside region changed", x, y)
			} else if frame.Pix[off] != want.Pix[off] {
				changed++
			}
		}
	}
	assert.Greater(t, changed, 0, "no pixel inside the region changed")
	assert.Equal(t, len(want.Pix), len(frame.Pix))
}

func TestBlurEllipseLeavesCorners(t *testing.T) {
	frame := checkerFrame(64, 64)
	want := frame.Clone()

	region := vision.NewRegion(8, 8, 48, 48, 64, 64, 0)
	c := NewCPU(ShapeEllipse, 9)
	require.NoError(t, c.Blur(frame, []vision.Region{region}))

	// ROI corners lie outside the inscribed ellipse and keep their
	// original values.
	for _, p := range [][2]int{{8, 8}, {55, 8}, {8, 55}, {55, 55}} {
		off := frame.At(p[0], p[1])
		assert.Equal(t, want.Pix[off], frame.Pix[off], "corner (%d,%d) was blurred", p[0], p[1])
	}

	// The ellipse center is blurred.
	off := frame.At(32, 32)
	assert.NotEqual(t, want.Pix[off], frame.Pix[off])
}

func TestBlurEllipseOffEdgeUsesUnclampedGeometry(t *testing.T) {
	frame := checkerFrame(64, 64)
	want := frame.Clone()

	// Unclamped rect hangs off the left edge; the visible ROI is the
	// right half of the ellipse, so the ROI's left-center column (on the
	// ellipse's horizontal axis) is blurred while the ROI's right
	// corners stay intact.
	region := vision.NewRegion(-24, 8, 48, 48, 64, 64, 0)
	c := NewCPU(ShapeEllipse, 9)
	require.NoError(t, c.Blur(frame, []vision.Region{region}))

	onAxis := frame.At(2, 32)
	assert.NotEqual(t, want.Pix[onAxis], frame.Pix[onAxis])

	corner := frame.At(23, 9)
	assert.Equal(t, want.Pix[corner], frame.Pix[corner])
}

func TestValidateKernel(t *testing.T) {
	assert.Error(t, validateKernel(0))
	assert.Error(t, validateKernel(-3))
	assert.Error(t, validateKernel(8))
	assert.NoError(t, validateKernel(201))
}

func TestGaussianKernelNormalized(t *testing.T) {
	k := gaussianKernel(9)
	require.Len(t, k, 9)
	var sum float64
	for _, w := range k {
		sum += float64(w)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	// Symmetric with the peak in the middle.
	assert.Equal(t, k[0], k[8])
	assert.Greater(t, k[4], k[0])
}
