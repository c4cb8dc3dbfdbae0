package vision

// Region is a blur target within a frame. The clamped rectangle
// (X, Y, W, H) is the intersection with the frame and always lies inside
// [0, frameW] x [0, frameH]. The unclamped rectangle (UX, UY, FW, FH) is
// the pre-clip geometry kept so ellipse masks slide off frame edges
// without shrinking. TrackID 0 means the region is not tracked.
type Region struct {
	X, Y, W, H float32

	UX, UY, FW, FH float32
	HasUnclamped   bool

	TrackID int64
}

// NewRegion builds a region from an unclamped rectangle, clamping it to
// the frame. Degenerate intersections yield zero width or height.
func NewRegion(ux, uy, fw, fh float32, frameW, frameH int, trackID int64) Region {
	x1 := clampF(ux, 0, float32(frameW))
	y1 := clampF(uy, 0, float32(frameH))
	x2 := clampF(ux+fw, 0, float32(frameW))
	y2 := clampF(uy+fh, 0, float32(frameH))

	w := x2 - x1
	h := y2 - y1
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}

	return Region{
		X: x1, Y: y1, W: w, H: h,
		UX: ux, UY: uy, FW: fw, FH: fh,
		HasUnclamped: true,
		TrackID:      trackID,
	}
}

// Empty reports whether the clamped rectangle has no area.
func (r Region) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Center returns the center of the clamped rectangle.
func (r Region) Center() (float32, float32) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Ellipse returns the ellipse center relative to the clamped ROI origin
// and the semi-axes. When no unclamped geometry is present the clamped
// rectangle is used as-is.
func (r Region) Ellipse() (cx, cy, a, b float32) {
	if !r.HasUnclamped {
		return r.W / 2, r.H / 2, r.W / 2, r.H / 2
	}
	cx = r.FW/2 - (r.X - r.UX)
	cy = r.FH/2 - (r.Y - r.UY)
	return cx, cy, r.FW / 2, r.FH / 2
}

// IoU computes intersection-over-union of the clamped rectangles.
func IoU(a, b Region) float32 {
	x1 := maxF(a.X, b.X)
	y1 := maxF(a.Y, b.Y)
	x2 := minF(a.X+a.W, b.X+b.W)
	y2 := minF(a.Y+a.H, b.Y+b.H)

	inter := maxF(0, x2-x1) * maxF(0, y2-y1)
	union := a.W*a.H + b.W*b.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
