package audio

import (
	"math"
	"strings"
)

// Bleep tone parameters.
const (
	bleepFrequency = 1000.0
	bleepAmplitude = 0.3
)

// BleepMode selects what replaces censored samples.
type BleepMode int

const (
	BleepTone BleepMode = iota
	BleepSilence
)

// MatchKeywords returns a censor region for every transcript word that
// equals a keyword, case-insensitively, as a whole word. Leading and
// trailing punctuation on the transcript side is ignored.
func MatchKeywords(words []Word, keywords []string, padding float64) []CensorRegion {
	if len(words) == 0 || len(keywords) == 0 {
		return nil
	}

	lookup := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lookup[k] = true
		}
	}

	var regions []CensorRegion
	for _, w := range words {
		text := strings.ToLower(strings.TrimFunc(w.Text, isWordPunct))
		if lookup[text] {
			regions = append(regions, CensorRegion{Start: w.Start, End: w.End, Padding: padding})
		}
	}
	return regions
}

func isWordPunct(r rune) bool {
	return !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '\'')
}

// Censor replaces the samples inside each region's effective range with
// a 1 kHz bleep tone (or silence). The sample count never changes and
// samples outside every region are left untouched. An empty region list
// is a no-op.
func Censor(seg *Segment, regions []CensorRegion, mode BleepMode) {
	for _, region := range regions {
		start := seg.SampleIndex(region.EffectiveStart())
		end := seg.SampleIndex(region.EffectiveEnd())

		for i := start; i < end; i += seg.Channels {
			var v float32
			if mode == BleepTone {
				t := float64(i/seg.Channels) / float64(seg.Rate)
				v = float32(bleepAmplitude * math.Sin(2*math.Pi*bleepFrequency*t))
			}
			for ch := 0; ch < seg.Channels && i+ch < len(seg.Samples); ch++ {
				seg.Samples[i+ch] = v
			}
		}
	}
}
