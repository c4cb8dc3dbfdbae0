package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentSegment(seconds float64, rate, channels int) *Segment {
	return &Segment{
		Samples:  make([]float32, int(seconds*float64(rate))*channels),
		Rate:     rate,
		Channels: channels,
	}
}

func TestMatchKeywordsWholeWordCaseInsensitive(t *testing.T) {
	words := []Word{
		{Text: "The", Start: 0.0, End: 0.2},
		{Text: "Secret,", Start: 0.5, End: 0.8},
		{Text: "secretive", Start: 1.0, End: 1.4},
	}

	regions := MatchKeywords(words, []string{"SECRET"}, 0.05)
	require.Len(t, regions, 1)
	assert.Equal(t, 0.5, regions[0].Start)
	assert.Equal(t, 0.8, regions[0].End)
	assert.Equal(t, 0.05, regions[0].Padding)
}

func TestMatchKeywordsEmptyInputs(t *testing.T) {
	assert.Nil(t, MatchKeywords(nil, []string{"x"}, 0))
	assert.Nil(t, MatchKeywords([]Word{{Text: "x", Start: 0, End: 1}}, nil, 0))
}

func TestCensorRegionEffectiveRange(t *testing.T) {
	r := CensorRegion{Start: 0.5, End: 0.8, Padding: 0.05}
	assert.InDelta(t, 0.45, r.EffectiveStart(), 1e-9)
	assert.InDelta(t, 0.85, r.EffectiveEnd(), 1e-9)

	early := CensorRegion{Start: 0.02, End: 0.1, Padding: 0.05}
	assert.Equal(t, 0.0, early.EffectiveStart())
}

func TestCensorBleepAlignment(t *testing.T) {
	// 3 s of silence at 16 kHz mono; the word "secret" sits at
	// [0.5, 0.8] and padding 0.05 widens it to [0.45, 0.85]. The 6400
	// samples in that range must carry tone energy, everything else
	// must stay zero.
	seg := silentSegment(3, 16000, 1)
	before := len(seg.Samples)

	regions := []CensorRegion{{Start: 0.5, End: 0.8, Padding: 0.05}}
	Censor(seg, regions, BleepTone)

	assert.Equal(t, before, len(seg.Samples), "censoring must not change sample count")

	start := int(0.45 * 16000)
	end := int(0.85 * 16000)
	assert.Equal(t, 6400, end-start)

	var energy float64
	for i := start; i < end; i++ {
		energy += float64(seg.Samples[i]) * float64(seg.Samples[i])
	}
	assert.Greater(t, energy, 0.0, "bleep range carries no energy")

	for i := 0; i < start; i++ {
		require.Zero(t, seg.Samples[i], "sample %d before the region was touched", i)
	}
	for i := end; i < len(seg.Samples); i++ {
		require.Zero(t, seg.Samples[i], "sample %d after the region was touched", i)
	}
}

func TestCensorSilenceMode(t *testing.T) {
	seg := silentSegment(1, 16000, 1)
	for i := range seg.Samples {
		seg.Samples[i] = 0.5
	}

	Censor(seg, []CensorRegion{{Start: 0.25, End: 0.75}}, BleepSilence)

	assert.Equal(t, float32(0.5), seg.Samples[100])
	assert.Equal(t, float32(0), seg.Samples[8000])
}

func TestCensorEmptyRegionsIsNoOp(t *testing.T) {
	seg := silentSegment(1, 16000, 1)
	for i := range seg.Samples {
		seg.Samples[i] = 0.25
	}
	Censor(seg, nil, BleepTone)
	for _, s := range seg.Samples {
		require.Equal(t, float32(0.25), s)
	}
}

func TestCensorStereoKeepsInterleaving(t *testing.T) {
	seg := silentSegment(1, 16000, 2)
	Censor(seg, []CensorRegion{{Start: 0.1, End: 0.2}}, BleepTone)

	// Both channels of a censored frame carry the same tone sample.
	idx := seg.SampleIndex(0.15)
	idx -= idx % 2
	idx += 2 // off the tone's zero crossing
	assert.Equal(t, seg.Samples[idx], seg.Samples[idx+1])
	assert.NotZero(t, seg.Samples[idx])
}

func TestSegmentDuration(t *testing.T) {
	assert.Equal(t, 3.0, silentSegment(3, 16000, 1).Duration())
	assert.Equal(t, 2.0, silentSegment(2, 44100, 2).Duration())
}
