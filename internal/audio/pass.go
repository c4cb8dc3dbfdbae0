package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neutrinographics/faceguard/internal/media"
	"github.com/neutrinographics/faceguard/internal/observability"
)

// defaultCensorPadding widens each keyword hit on both sides.
const defaultCensorPadding = 0.05

// Pass is the optional post-video audio pipeline:
// decode -> transcribe -> censor -> disguise -> encode + mux. It runs
// single-threaded after the video pass on the same output file. A
// failing pass never invalidates the video output: transcription errors
// degrade to passthrough audio.
type Pass struct {
	Recognizer Recognizer
	Keywords   []string
	Padding    float64
	BleepMode  BleepMode
	Tier       Tier
}

// Run decodes srcPath's audio, applies the enabled stages and muxes the
// result into outPath. A source without an audio track is a clean no-op.
func (p *Pass) Run(srcPath, outPath string) error {
	start := time.Now()
	seg, err := Decode(srcPath)
	if err != nil {
		if errors.Is(err, media.ErrNoAudioStream) {
			slog.Info("audio pass skipped", "reason", "no audio stream")
			return nil
		}
		return fmt.Errorf("decode audio: %w", err)
	}
	observability.AudioStageDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())

	censored := false
	if len(p.Keywords) > 0 && p.Recognizer != nil {
		start = time.Now()
		words, err := p.Recognizer.Transcribe(seg)
		observability.AudioStageDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())
		if err != nil {
			slog.Warn("transcription failed, keeping passthrough audio", "error", err)
		} else {
			padding := p.Padding
			if padding == 0 {
				padding = defaultCensorPadding
			}
			regions := MatchKeywords(words, p.Keywords, padding)
			slog.Info("keyword censor", "words", len(words), "hits", len(regions))
			if len(regions) > 0 {
				Censor(seg, regions, p.BleepMode)
				censored = true
			}
		}
	}

	disguised := false
	if p.Tier != TierOff {
		start = time.Now()
		if err := NewDisguise(p.Tier).Transform(seg); err != nil {
			return fmt.Errorf("voice disguise: %w", err)
		}
		observability.AudioStageDuration.WithLabelValues("disguise").Observe(time.Since(start).Seconds())
		disguised = true
	}

	if !censored && !disguised {
		// Nothing changed; the writer's passthrough copy stands.
		return nil
	}

	start = time.Now()
	if err := Mux(outPath, seg); err != nil {
		return fmt.Errorf("mux processed audio: %w", err)
	}
	observability.AudioStageDuration.WithLabelValues("mux").Observe(time.Since(start).Seconds())
	return nil
}

// Enabled reports whether the pass would modify audio at all.
func (p *Pass) Enabled() bool {
	return (len(p.Keywords) > 0 && p.Recognizer != nil) || p.Tier != TierOff
}
