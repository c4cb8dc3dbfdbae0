package dsp

import "math"

// LPC formant warp parameters.
const (
	lpcOrder      = 16
	stftSize      = 2048
	stftHop       = 512
	envelopeFloor = 1e-9
)

// FormantWarp stretches the spectral envelope of mono samples along the
// frequency axis by ratio, leaving the fine structure (pitch) in place.
// A ratio of 1 returns the input unchanged. Output length equals input
// length.
func FormantWarp(samples []float32, ratio float64) []float32 {
	out := make([]float32, len(samples))
	copy(out, samples)
	if ratio == 1 || len(samples) < stftSize {
		return out
	}

	window := Hann(stftSize)
	acc := make([]float64, len(samples))
	norm := make([]float64, len(samples))
	spec := make([]complex128, stftSize)

	for start := 0; start+stftSize <= len(samples); start += stftHop {
		for i := 0; i < stftSize; i++ {
			spec[i] = complex(float64(samples[start+i])*window[i], 0)
		}
		FFT(spec)

		env := lpcEnvelope(samples[start:start+stftSize], window)
		warped := warpEnvelope(env, ratio)

		// Reshape: strip the original envelope, impose the warped one.
		for k := 0; k < stftSize; k++ {
			e := env[binIndex(k)]
			if e < envelopeFloor {
				e = envelopeFloor
			}
			spec[k] *= complex(warped[binIndex(k)]/e, 0)
		}

		IFFT(spec)
		for i := 0; i < stftSize; i++ {
			acc[start+i] += real(spec[i]) * window[i]
			norm[start+i] += window[i] * window[i]
		}
	}

	for i := range acc {
		if norm[i] > 0 {
			out[i] = float32(acc[i] / norm[i])
		}
	}
	return out
}

// binIndex folds a full-spectrum bin onto the half-spectrum envelope,
// keeping the warp symmetric so the inverse transform stays real.
func binIndex(k int) int {
	if k <= stftSize/2 {
		return k
	}
	return stftSize - k
}

// lpcEnvelope fits an order-16 all-pole model to the windowed frame and
// evaluates its magnitude response at the STFT bin frequencies.
func lpcEnvelope(frame []float32, window []float64) []float64 {
	windowed := make([]float64, stftSize)
	for i := range windowed {
		windowed[i] = float64(frame[i]) * window[i]
	}

	r := autocorrelate(windowed, lpcOrder)
	a, gain := levinson(r, lpcOrder)

	// Magnitude response 1/|A(e^jw)| via FFT of the coefficient vector.
	coeffs := make([]complex128, stftSize)
	coeffs[0] = 1
	for i := 1; i <= lpcOrder; i++ {
		coeffs[i] = complex(a[i], 0)
	}
	FFT(coeffs)

	env := make([]float64, stftSize/2+1)
	for k := range env {
		mag := cmplxAbs(coeffs[k])
		if mag < envelopeFloor {
			mag = envelopeFloor
		}
		env[k] = gain / mag
	}
	return env
}

// warpEnvelope resamples the envelope so a formant at frequency f moves
// to f*ratio.
func warpEnvelope(env []float64, ratio float64) []float64 {
	warped := make([]float64, len(env))
	for k := range warped {
		src := float64(k) / ratio
		lo := int(src)
		if lo >= len(env)-1 {
			warped[k] = env[len(env)-1]
			continue
		}
		frac := src - float64(lo)
		warped[k] = env[lo]*(1-frac) + env[lo+1]*frac
	}
	return warped
}

// autocorrelate returns r[0..order] of the frame.
func autocorrelate(x []float64, order int) []float64 {
	r := make([]float64, order+1)
	for lag := 0; lag <= order; lag++ {
		var sum float64
		for i := 0; i+lag < len(x); i++ {
			sum += x[i] * x[i+lag]
		}
		r[lag] = sum
	}
	return r
}

// levinson runs the Levinson-Durbin recursion, returning prediction
// coefficients a[0..order] (a[0] = 1) and the model gain.
func levinson(r []float64, order int) ([]float64, float64) {
	a := make([]float64, order+1)
	a[0] = 1
	e := r[0]
	if e == 0 {
		return a, 1
	}

	tmp := make([]float64, order+1)
	for m := 1; m <= order; m++ {
		var k float64
		for i := 1; i < m; i++ {
			k += a[i] * r[m-i]
		}
		k = -(r[m] + k) / e

		copy(tmp, a)
		for i := 1; i < m; i++ {
			a[i] = tmp[i] + k*tmp[m-i]
		}
		a[m] = k

		e *= 1 - k*k
		if e <= 0 {
			break
		}
	}
	return a, math.Sqrt(math.Abs(e))
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
