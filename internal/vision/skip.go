package vision

import "github.com/neutrinographics/faceguard/internal/media"

// trackObservation is the last real sighting of a track, kept so skipped
// frames can extrapolate.
type trackObservation struct {
	region Region
	frame  int
	velX   float32
	velY   float32
	hasVel bool
}

// SkipDetector runs the wrapped detector every Nth frame. On skipped
// frames it extrapolates each active track by the velocity estimated from
// its two most recent real observations, holding size constant. With
// interval 1 it is transparent.
type SkipDetector struct {
	inner    Detector
	interval int
	frame    int
	tracks   map[int64]*trackObservation
}

func NewSkipDetector(inner Detector, interval int) *SkipDetector {
	if interval < 1 {
		interval = 1
	}
	return &SkipDetector{
		inner:    inner,
		interval: interval,
		tracks:   make(map[int64]*trackObservation),
	}
}

func (s *SkipDetector) Detect(frame *media.Frame) ([]Region, error) {
	idx := s.frame
	s.frame++

	if idx%s.interval != 0 {
		return s.extrapolate(idx, frame.Width, frame.Height), nil
	}

	regions, err := s.inner.Detect(frame)
	if err != nil {
		return nil, err
	}

	live := make(map[int64]bool, len(regions))
	for _, r := range regions {
		if r.TrackID == 0 {
			continue
		}
		live[r.TrackID] = true
		prev, ok := s.tracks[r.TrackID]
		obs := &trackObservation{region: r, frame: idx}
		if ok && idx > prev.frame {
			dt := float32(idx - prev.frame)
			px, py := prev.region.Center()
			cx, cy := r.Center()
			obs.velX = (cx - px) / dt
			obs.velY = (cy - py) / dt
			obs.hasVel = true
		}
		s.tracks[r.TrackID] = obs
	}
	// Tracks the detector no longer reports stop being extrapolated.
	for id := range s.tracks {
		if !live[id] {
			delete(s.tracks, id)
		}
	}

	return regions, nil
}

// extrapolate projects each live track forward from its last real
// observation.
func (s *SkipDetector) extrapolate(idx, frameW, frameH int) []Region {
	regions := make([]Region, 0, len(s.tracks))
	for _, obs := range s.tracks {
		r := obs.region
		dt := float32(idx - obs.frame)

		ux, uy, fw, fh := r.UX, r.UY, r.FW, r.FH
		if !r.HasUnclamped {
			ux, uy, fw, fh = r.X, r.Y, r.W, r.H
		}
		if obs.hasVel {
			ux += obs.velX * dt
			uy += obs.velY * dt
		}
		regions = append(regions, NewRegion(ux, uy, fw, fh, frameW, frameH, r.TrackID))
	}
	return regions
}

func (s *SkipDetector) Close() {
	s.inner.Close()
}
