package dsp

import "math"

// Pitch analysis parameters.
const (
	pitchFrameSize = 512
	pitchHopSize   = 256
	// voicedThreshold is the minimum normalized autocorrelation peak for
	// a frame to count as voiced.
	voicedThreshold = 0.3
	// pitch search band in Hz.
	pitchMinHz = 60
	pitchMaxHz = 500
	// unvoicedMarkSpacing places marks at a fixed cadence where no pitch
	// is detectable.
	unvoicedMarkSpacing = 0.005 // seconds
)

// pitchFrame is the per-hop analysis result.
type pitchFrame struct {
	voiced bool
	period int // lag in samples, valid when voiced
}

// ShiftRatio converts semitones to a frequency ratio.
func ShiftRatio(semitones float64) float64 {
	return math.Pow(2, semitones/12)
}

// PitchShift runs PSOLA over mono samples. ratioAt returns the desired
// frequency ratio for each pitch mark, which lets callers vary the shift
// per mark. Output length equals input length; the output peak never
// exceeds the input peak.
func PitchShift(samples []float32, rate int, ratioAt func(mark int) float64) []float32 {
	if len(samples) == 0 {
		return nil
	}

	frames := analyzePitch(samples, rate)
	marks := placeMarks(samples, frames, rate)
	if len(marks) < 2 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	// Synthesis mark positions: analysis spacing divided by the per-mark
	// ratio, accumulated.
	synth := make([]float64, len(marks))
	synth[0] = float64(marks[0])
	for i := 1; i < len(marks); i++ {
		spacing := float64(marks[i] - marks[i-1])
		synth[i] = synth[i-1] + spacing/ratioAt(i)
	}

	out := make([]float64, len(samples))
	norm := make([]float64, len(samples))

	for i, mark := range marks {
		period := localPeriod(frames, mark, rate)
		grain := 2 * period
		if grain < 4 {
			continue
		}
		window := Hann(grain)
		center := int(synth[i] + 0.5)

		for j := 0; j < grain; j++ {
			srcIdx := mark - period + j
			dstIdx := center - period + j
			if srcIdx < 0 || srcIdx >= len(samples) || dstIdx < 0 || dstIdx >= len(out) {
				continue
			}
			out[dstIdx] += window[j] * float64(samples[srcIdx])
			norm[dstIdx] += window[j]
		}
	}

	result := make([]float32, len(samples))
	for i := range out {
		if norm[i] > 0 {
			result[i] = float32(out[i] / norm[i])
		}
	}

	limitPeak(result, peak(samples))
	return result
}

// analyzePitch slides a frame across the input and estimates a period per
// hop by normalized autocorrelation.
func analyzePitch(samples []float32, rate int) []pitchFrame {
	minLag := rate / pitchMaxHz
	maxLag := rate / pitchMinHz
	if minLag < 1 {
		minLag = 1
	}

	numFrames := (len(samples) + pitchHopSize - 1) / pitchHopSize
	frames := make([]pitchFrame, numFrames)

	for fi := 0; fi < numFrames; fi++ {
		start := fi * pitchHopSize
		end := start + pitchFrameSize
		if end > len(samples) {
			end = len(samples)
		}
		frame := samples[start:end]
		if len(frame) <= maxLag {
			continue
		}

		var energy float64
		for _, s := range frame {
			energy += float64(s) * float64(s)
		}
		if energy == 0 {
			continue
		}

		bestLag := 0
		bestCorr := 0.0
		for lag := minLag; lag <= maxLag && lag < len(frame); lag++ {
			var corr float64
			for i := 0; i+lag < len(frame); i++ {
				corr += float64(frame[i]) * float64(frame[i+lag])
			}
			corr /= energy
			if corr > bestCorr {
				bestCorr = corr
				bestLag = lag
			}
		}

		if bestCorr > voicedThreshold {
			frames[fi] = pitchFrame{voiced: true, period: bestLag}
		}
	}
	return frames
}

// placeMarks walks the signal placing one mark per detected period, or at
// a fixed 5 ms cadence through unvoiced stretches.
func placeMarks(samples []float32, frames []pitchFrame, rate int) []int {
	fallback := int(unvoicedMarkSpacing * float64(rate))
	if fallback < 1 {
		fallback = 1
	}

	var marks []int
	pos := 0
	for pos < len(samples) {
		marks = append(marks, pos)
		step := fallback
		if fi := pos / pitchHopSize; fi < len(frames) && frames[fi].voiced {
			step = frames[fi].period
		}
		pos += step
	}
	return marks
}

func localPeriod(frames []pitchFrame, pos, rate int) int {
	if fi := pos / pitchHopSize; fi < len(frames) && frames[fi].voiced {
		return frames[fi].period
	}
	return int(unvoicedMarkSpacing * float64(rate))
}

func peak(samples []float32) float32 {
	var p float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > p {
			p = s
		}
	}
	return p
}

// limitPeak scales the buffer down when its peak exceeds the limit.
func limitPeak(samples []float32, limit float32) {
	p := peak(samples)
	if p <= limit || p == 0 {
		return
	}
	scale := limit / p
	for i := range samples {
		samples[i] *= scale
	}
}
