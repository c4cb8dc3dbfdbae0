package vision

// Filter selects which regions get blurred by track ID. BlurIDs and
// ExcludeIDs are never both set: with BlurIDs present only listed tracks
// are kept and untracked regions are dropped; with ExcludeIDs present
// listed tracks are preserved and untracked regions are kept; with
// neither, everything is kept. Applying the filter twice equals applying
// it once.
type Filter struct {
	blurIDs    map[int64]bool
	excludeIDs map[int64]bool
}

// NewFilter builds a filter from the two optional ID sets.
func NewFilter(blurIDs, excludeIDs []int64) *Filter {
	f := &Filter{}
	if len(blurIDs) > 0 {
		f.blurIDs = make(map[int64]bool, len(blurIDs))
		for _, id := range blurIDs {
			f.blurIDs[id] = true
		}
	}
	if len(excludeIDs) > 0 {
		f.excludeIDs = make(map[int64]bool, len(excludeIDs))
		for _, id := range excludeIDs {
			f.excludeIDs[id] = true
		}
	}
	return f
}

// Apply returns the regions that should be blurred.
func (f *Filter) Apply(regions []Region) []Region {
	if f.blurIDs == nil && f.excludeIDs == nil {
		return regions
	}
	kept := make([]Region, 0, len(regions))
	for _, r := range regions {
		switch {
		case f.blurIDs != nil:
			if r.TrackID != 0 && f.blurIDs[r.TrackID] {
				kept = append(kept, r)
			}
		case f.excludeIDs != nil:
			if r.TrackID == 0 || !f.excludeIDs[r.TrackID] {
				kept = append(kept, r)
			}
		}
	}
	return kept
}
