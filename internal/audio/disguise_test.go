package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toneSegment(freq float64, seconds float64, rate int) *Segment {
	n := int(seconds * float64(rate))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.8 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return &Segment{Samples: samples, Rate: rate, Channels: 1}
}

func TestParseTier(t *testing.T) {
	for in, want := range map[string]Tier{
		"off": TierOff, "": TierOff,
		"low": TierLow, "medium": TierMedium, "high": TierHigh,
	} {
		got, err := ParseTier(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTier("extreme")
	assert.Error(t, err)
}

func TestDisguiseOffLeavesSegmentUntouched(t *testing.T) {
	seg := toneSegment(150, 0.5, 16000)
	want := append([]float32(nil), seg.Samples...)

	require.NoError(t, NewDisguise(TierOff).Transform(seg))
	assert.Equal(t, want, seg.Samples)
}

func TestDisguisePreservesLength(t *testing.T) {
	for _, tier := range []Tier{TierLow, TierMedium, TierHigh} {
		seg := toneSegment(150, 1, 16000)
		n := len(seg.Samples)
		require.NoError(t, NewDisguise(tier).Transform(seg))
		assert.Equal(t, n, len(seg.Samples), "tier %d changed the sample count", tier)
	}
}

func TestDisguiseLowRaisesPitch(t *testing.T) {
	seg := toneSegment(150, 1, 16000)
	require.NoError(t, NewDisguise(TierLow).Transform(seg))

	got := dominantFrequency(seg.Samples, seg.Rate)
	want := 150 * math.Pow(2, 2.5/12)
	assert.InDelta(t, want, got, want*0.05)
}

func TestDisguiseHighIsDeterministic(t *testing.T) {
	a := toneSegment(150, 1, 16000)
	b := toneSegment(150, 1, 16000)

	require.NoError(t, NewDisguise(TierHigh).Transform(a))
	require.NoError(t, NewDisguise(TierHigh).Transform(b))
	assert.Equal(t, a.Samples, b.Samples, "seeded random walk must reproduce exactly")
}

func TestDisguiseStereoHandling(t *testing.T) {
	n := 16000
	samples := make([]float32, 2*n)
	for i := 0; i < n; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*150*float64(i)/16000))
		samples[2*i] = v
		samples[2*i+1] = v
	}
	seg := &Segment{Samples: samples, Rate: 16000, Channels: 2}

	require.NoError(t, NewDisguise(TierLow).Transform(seg))
	assert.Len(t, seg.Samples, 2*n)
	// Both channels carry the processed signal.
	assert.Equal(t, seg.Samples[2000], seg.Samples[2001])
}

// dominantFrequency estimates pitch by autocorrelation peak.
func dominantFrequency(samples []float32, rate int) float64 {
	minLag := rate / 500
	maxLag := rate / 60

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i+lag < len(samples); i++ {
			corr += float64(samples[i]) * float64(samples[i+lag])
		}
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0
	}
	return float64(rate) / float64(bestLag)
}
