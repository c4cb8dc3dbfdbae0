package vision

import "sort"

// Tracker association thresholds.
const (
	trackIoUThreshold = 0.3
	// trackHighConf gates promotion of unmatched detections to new tracks.
	trackHighConf = 0.5
	// trackMaxLost is how many frames a track survives without a match
	// (about one second at 30 fps).
	trackMaxLost = 30
)

// track is the tracker's internal state for one face.
type track struct {
	id   int64
	box  [4]float32
	lost int // frames since last match; 0 while actively matched
}

// TrackedDetection pairs a raw detection with its persistent track ID.
type TrackedDetection struct {
	Detection
	TrackID int64
}

// Tracker associates detections across frames and hands out persistent
// track IDs. A track survives brief occlusions: unmatched tracks stay in
// a lost pool for trackMaxLost frames before being discarded, and a face
// reappearing later receives a fresh ID. IDs are drawn from a
// monotonically increasing counter starting at 1.
type Tracker struct {
	tracks []*track
	nextID int64
}

func NewTracker() *Tracker {
	return &Tracker{nextID: 1}
}

// Update matches the current frame's detections to tracks by IoU, promotes
// unmatched high-confidence detections to new tracks, ages unmatched
// tracks, and returns each detection with its track ID. Detections that
// match no track and fall below the promotion threshold come back with
// TrackID 0.
func (t *Tracker) Update(detections []Detection) []TrackedDetection {
	for _, tr := range t.tracks {
		tr.lost++
	}

	// Highest-confidence detections claim tracks first.
	order := make([]int, len(detections))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return detections[order[a]].Confidence > detections[order[b]].Confidence
	})

	out := make([]TrackedDetection, len(detections))
	claimed := make(map[int64]bool, len(t.tracks))

	for _, di := range order {
		det := detections[di]
		detRegion := regionFromBox(det.Box)

		var best *track
		bestIoU := float32(trackIoUThreshold)
		for _, tr := range t.tracks {
			if claimed[tr.id] {
				continue
			}
			if v := IoU(detRegion, regionFromBox(tr.box)); v > bestIoU {
				bestIoU = v
				best = tr
			}
		}

		if best != nil {
			best.box = det.Box
			best.lost = 0
			claimed[best.id] = true
			out[di] = TrackedDetection{Detection: det, TrackID: best.id}
			continue
		}

		if det.Confidence >= trackHighConf {
			id := t.nextID
			t.nextID++
			t.tracks = append(t.tracks, &track{id: id, box: det.Box})
			claimed[id] = true
			out[di] = TrackedDetection{Detection: det, TrackID: id}
			continue
		}

		out[di] = TrackedDetection{Detection: det}
	}

	// Discard tracks that stayed lost too long.
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if tr.lost < trackMaxLost {
			kept = append(kept, tr)
		}
	}
	t.tracks = kept

	return out
}

// ActiveCount returns the number of live tracks, lost pool included.
func (t *Tracker) ActiveCount() int {
	return len(t.tracks)
}

func regionFromBox(box [4]float32) Region {
	return Region{X: box[0], Y: box[1], W: box[2] - box[0], H: box[3] - box[1]}
}
