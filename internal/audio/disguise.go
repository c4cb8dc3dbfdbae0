package audio

import (
	"fmt"
	"math/rand"

	"github.com/neutrinographics/faceguard/internal/dsp"
)

// Voice disguise parameters.
const (
	// baseShiftSemitones is the pitch shift shared by every tier.
	baseShiftSemitones = 2.5
	// formantRatio is the envelope warp applied by medium and high.
	formantRatio = 1.15
	// walkAmplitude bounds the high tier's per-mark shift variation.
	walkAmplitude = 0.5
	walkStep      = 0.1
	// walkSeed keeps the high tier reproducible across runs.
	walkSeed = 0x5eed
)

// Tier selects the voice disguise strength. The set is closed.
type Tier int

const (
	TierOff Tier = iota
	TierLow
	TierMedium
	TierHigh
)

// ParseTier maps the CLI/config spelling to a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "off", "":
		return TierOff, nil
	case "low":
		return TierLow, nil
	case "medium":
		return TierMedium, nil
	case "high":
		return TierHigh, nil
	default:
		return 0, fmt.Errorf("unknown voice disguise tier %q", s)
	}
}

// Transformer rewrites a segment in place, keeping its length.
type Transformer interface {
	Transform(seg *Segment) error
}

// Disguise applies the tiered pitch and formant manipulation. All tiers
// share PSOLA as the pitch-shift engine; medium and high add an LPC
// formant envelope warp; high varies the shift per pitch mark with a
// seeded bounded random walk so the contour never sounds static.
type Disguise struct {
	tier Tier
}

func NewDisguise(tier Tier) *Disguise {
	return &Disguise{tier: tier}
}

func (d *Disguise) Transform(seg *Segment) error {
	if d.tier == TierOff {
		return nil
	}

	mono := toMono(seg)

	var ratioAt func(mark int) float64
	switch d.tier {
	case TierHigh:
		ratioAt = randomWalkRatio()
	default:
		ratio := dsp.ShiftRatio(baseShiftSemitones)
		ratioAt = func(int) float64 { return ratio }
	}

	shifted := dsp.PitchShift(mono, seg.Rate, ratioAt)

	if d.tier == TierMedium || d.tier == TierHigh {
		shifted = dsp.FormantWarp(shifted, formantRatio)
	}

	fromMono(seg, shifted)
	return nil
}

// randomWalkRatio returns a per-mark ratio driven by a deterministic
// bounded random walk of +-walkAmplitude semitones around the base
// shift.
func randomWalkRatio() func(int) float64 {
	rng := rand.New(rand.NewSource(walkSeed))
	walk := 0.0
	return func(int) float64 {
		walk += (rng.Float64()*2 - 1) * walkStep
		if walk > walkAmplitude {
			walk = walkAmplitude
		}
		if walk < -walkAmplitude {
			walk = -walkAmplitude
		}
		return dsp.ShiftRatio(baseShiftSemitones + walk)
	}
}

// toMono averages interleaved channels into a mono buffer. Mono input is
// returned as-is.
func toMono(seg *Segment) []float32 {
	if seg.Channels == 1 {
		return seg.Samples
	}
	mono := make([]float32, len(seg.Samples)/seg.Channels)
	for i := range mono {
		var sum float32
		for ch := 0; ch < seg.Channels; ch++ {
			sum += seg.Samples[i*seg.Channels+ch]
		}
		mono[i] = sum / float32(seg.Channels)
	}
	return mono
}

// fromMono spreads a processed mono buffer back across the segment's
// channels.
func fromMono(seg *Segment, mono []float32) {
	if seg.Channels == 1 {
		copy(seg.Samples, mono)
		return
	}
	for i, v := range mono {
		for ch := 0; ch < seg.Channels; ch++ {
			seg.Samples[i*seg.Channels+ch] = v
		}
	}
}
