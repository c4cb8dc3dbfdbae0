package vision

// Merger parameters.
const (
	// mergeDedupIoU drops a lookahead region overlapping a kept one.
	mergeDedupIoU = 0.3
	// edgeZoneRatio bounds edge interpolation to regions whose center is
	// within this fraction of the frame dimension from an edge.
	edgeZoneRatio = 0.25
)

// Merger blends the current frame's regions with a lookahead window so
// faces entering at a frame edge begin sliding in a few frames early
// instead of popping in.
type Merger struct {
	lookahead int
	frameW    int
	frameH    int
}

// NewMerger creates a merger for the given frame dimensions. lookahead is
// the maximum number of future frames considered (K).
func NewMerger(lookahead, frameW, frameH int) *Merger {
	return &Merger{lookahead: lookahead, frameW: frameW, frameH: frameH}
}

// Merge combines current with up to K future frames' regions. Current
// frame regions always win for a shared track ID. New track IDs from the
// lookahead are pulled toward the nearest frame edge with strength
// t = (idx+1)/(K+1); regions away from any edge enter unchanged. The
// result is deduplicated greedily by IoU, ties broken by arrival order.
func (m *Merger) Merge(current []Region, future [][]Region) []Region {
	merged := make([]Region, 0, len(current)+4)
	seen := make(map[int64]bool, len(current))

	for _, r := range current {
		merged = append(merged, r)
		if r.TrackID != 0 {
			seen[r.TrackID] = true
		}
	}

	k := m.lookahead
	if len(future) < k {
		k = len(future)
	}
	for idx := 0; idx < k; idx++ {
		t := float32(idx+1) / float32(m.lookahead+1)
		for _, r := range future[idx] {
			if r.TrackID != 0 && seen[r.TrackID] {
				continue
			}
			merged = append(merged, m.pullToEdge(r, t))
			if r.TrackID != 0 {
				seen[r.TrackID] = true
			}
		}
	}

	return Dedup(merged)
}

// pullToEdge moves the region toward its nearest frame edge by
// t * distance when its center sits in the edge zone.
func (m *Merger) pullToEdge(r Region, t float32) Region {
	cx, cy := r.Center()
	fw := float32(m.frameW)
	fh := float32(m.frameH)

	distLeft := cx
	distRight := fw - cx
	distTop := cy
	distBottom := fh - cy

	minDist := distLeft
	dx, dy := -distLeft, float32(0)
	if distRight < minDist {
		minDist = distRight
		dx, dy = distRight, 0
	}
	if distTop < minDist {
		minDist = distTop
		dx, dy = 0, -distTop
	}
	if distBottom < minDist {
		minDist = distBottom
		dx, dy = 0, distBottom
	}

	zone := edgeZoneRatio * fw
	if dy != 0 {
		zone = edgeZoneRatio * fh
	}
	if minDist > zone {
		return r
	}

	ux, uy, fwR, fhR := r.UX, r.UY, r.FW, r.FH
	if !r.HasUnclamped {
		ux, uy, fwR, fhR = r.X, r.Y, r.W, r.H
	}
	return NewRegion(ux+dx*t, uy+dy*t, fwR, fhR, m.frameW, m.frameH, r.TrackID)
}

// Dedup greedily drops any region with IoU above mergeDedupIoU against an
// already kept region. The operation is idempotent.
func Dedup(regions []Region) []Region {
	kept := make([]Region, 0, len(regions))
	for _, r := range regions {
		overlap := false
		for _, k := range kept {
			if IoU(r, k) > mergeDedupIoU {
				overlap = true
				break
			}
		}
		if !overlap {
			kept = append(kept, r)
		}
	}
	return kept
}
