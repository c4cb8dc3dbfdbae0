package vision

// Region construction parameters.
const (
	// regionPadding expands each side of the detection box.
	regionPadding = 0.4
	// minWidthRatio floors the effective width against the box height so
	// narrow profile detections still cover the face.
	minWidthRatio = 0.8
)

// RegionBuilder converts raw detections into blur-ready regions,
// compensating for profile poses and smoothing jitter per track.
type RegionBuilder struct {
	smoother *Smoother
}

// NewRegionBuilder creates a builder. smoother may be nil to disable
// temporal smoothing.
func NewRegionBuilder(smoother *Smoother) *RegionBuilder {
	return &RegionBuilder{smoother: smoother}
}

// Build turns a detection box plus landmarks into a region. Landmarks may
// be nil when the detector produced none. Regions without a track ID
// (trackID 0) bypass smoothing.
func (b *RegionBuilder) Build(box [4]float32, lm *Landmarks, frameW, frameH int, trackID int64) Region {
	boxW := box[2] - box[0]
	boxH := box[3] - box[1]
	boxCX := box[0] + boxW/2
	boxCY := box[1] + boxH/2

	cx, cy := boxCX, boxCY
	var profile float32 = 1
	if lm != nil {
		if lmx, lmy, ok := lm.Centroid(); ok {
			profile = lm.ProfileRatio()
			// Frontal faces trust the landmark centroid; profile faces
			// lean back on the box center, which tracks spatial extent.
			cx = lmx + (boxCX-lmx)*profile
			cy = lmy + (boxCY-lmy)*profile
		}
	}

	effW := boxW + (boxH-boxW)*profile
	if effW < minWidthRatio*boxH {
		effW = minWidthRatio * boxH
	}

	halfW := effW / 2 * (1 + 2*regionPadding)
	halfH := boxH / 2 * (1 + 2*regionPadding)

	if b.smoother != nil && trackID != 0 {
		cx, cy, halfW, halfH = b.smoother.Smooth(trackID, cx, cy, halfW, halfH)
	}

	return NewRegion(cx-halfW, cy-halfH, halfW*2, halfH*2, frameW, frameH, trackID)
}
