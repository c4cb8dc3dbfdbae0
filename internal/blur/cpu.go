package blur

import (
	"github.com/neutrinographics/faceguard/internal/media"
	"github.com/neutrinographics/faceguard/internal/vision"
)

// CPU is the separable-Gaussian software blurrer. Each 1D pass costs
// O(n*k) instead of the O(n*k^2) of a full 2D convolution. Weights are
// precomputed once.
type CPU struct {
	shape   Shape
	kernel  []float32
	radius  int
	scratch []float32
}

func NewCPU(shape Shape, kernelSize int) *CPU {
	return &CPU{
		shape:  shape,
		kernel: gaussianKernel(kernelSize),
		radius: kernelSize / 2,
	}
}

func (c *CPU) Blur(frame *media.Frame, regions []vision.Region) error {
	for _, r := range regions {
		if r.Empty() {
			continue
		}
		c.blurRegion(frame, r)
	}
	return nil
}

func (c *CPU) Close() {}

func (c *CPU) blurRegion(frame *media.Frame, r vision.Region) {
	x0 := int(r.X)
	y0 := int(r.Y)
	w := int(r.W + 0.5)
	h := int(r.H + 0.5)
	if x0+w > frame.Width {
		w = frame.Width - x0
	}
	if y0+h > frame.Height {
		h = frame.Height - y0
	}
	if w <= 0 || h <= 0 {
		return
	}

	n := w * h * media.Channels
	if cap(c.scratch) < 2*n {
		c.scratch = make([]float32, 2*n)
	}
	horiz := c.scratch[:n]
	blurred := c.scratch[n : 2*n]

	// Horizontal pass: frame ROI -> horiz. Samples clamp to the ROI so
	// pixels outside the region never bleed in.
	for y := 0; y < h; y++ {
		srcRow := frame.At(x0, y0+y)
		dstRow := y * w * media.Channels
		for x := 0; x < w; x++ {
			var acc [media.Channels]float32
			for k := -c.radius; k <= c.radius; k++ {
				sx := clampI(x+k, 0, w-1)
				off := srcRow + sx*media.Channels
				wt := c.kernel[k+c.radius]
				acc[0] += wt * float32(frame.Pix[off])
				acc[1] += wt * float32(frame.Pix[off+1])
				acc[2] += wt * float32(frame.Pix[off+2])
			}
			off := dstRow + x*media.Channels
			horiz[off] = acc[0]
			horiz[off+1] = acc[1]
			horiz[off+2] = acc[2]
		}
	}

	// Vertical pass: horiz -> blurred.
	for y := 0; y < h; y++ {
		dstRow := y * w * media.Channels
		for x := 0; x < w; x++ {
			var acc [media.Channels]float32
			for k := -c.radius; k <= c.radius; k++ {
				sy := clampI(y+k, 0, h-1)
				off := (sy*w + x) * media.Channels
				wt := c.kernel[k+c.radius]
				acc[0] += wt * horiz[off]
				acc[1] += wt * horiz[off+1]
				acc[2] += wt * horiz[off+2]
			}
			off := dstRow + x*media.Channels
			blurred[off] = acc[0]
			blurred[off+1] = acc[1]
			blurred[off+2] = acc[2]
		}
	}

	// Write-back. The ellipse uses the unclamped center and axes so the
	// oval extends naturally past frame edges.
	cx, cy, a, b := r.Ellipse()
	useEllipse := c.shape == ShapeEllipse && a > 0 && b > 0

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if useEllipse {
				dx := (float32(x) + 0.5 - cx) / a
				dy := (float32(y) + 0.5 - cy) / b
				if dx*dx+dy*dy > 1 {
					continue
				}
			}
			sOff := (y*w + x) * media.Channels
			dOff := frame.At(x0+x, y0+y)
			frame.Pix[dOff] = clampByte(blurred[sOff])
			frame.Pix[dOff+1] = clampByte(blurred[sOff+1])
			frame.Pix[dOff+2] = clampByte(blurred[sOff+2])
		}
	}
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v + 0.5)
}
