// Package usecase wires the core abstractions into the operations the
// CLI exposes: video blur, image blur, and preview scanning.
package usecase

import (
	"fmt"
	"sync/atomic"

	"github.com/neutrinographics/faceguard/internal/blur"
	"github.com/neutrinographics/faceguard/internal/media"
	"github.com/neutrinographics/faceguard/internal/pipeline"
	"github.com/neutrinographics/faceguard/internal/vision"
)

// BlurVideoOptions carries everything BlurVideo needs beyond the paths.
// BlurIDs and ExcludeIDs are mutually exclusive; the CLI layer enforces
// that before constructing the options.
type BlurVideoOptions struct {
	Detector   vision.Detector
	Blurrer    blur.Blurrer
	Lookahead  int
	Quality    int
	BlurIDs    []int64
	ExcludeIDs []int64
	Progress   pipeline.Progress
	Cancel     *atomic.Bool
	// SkipAudioCopy disables the writer's audio passthrough when a later
	// audio pass will replace the track anyway.
	SkipAudioCopy bool
}

// BlurVideo runs the full four-stage pipeline over a video file.
func BlurVideo(inPath, outPath string, opts BlurVideoOptions) error {
	reader, err := media.OpenFFmpegReader(inPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer reader.Close()

	meta := reader.Metadata()
	writer, err := media.OpenFFmpegWriter(outPath, meta, media.WriterOptions{
		Quality:   opts.Quality,
		CopyAudio: !opts.SkipAudioCopy,
	})
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	exec := pipeline.Executor{
		Reader:    reader,
		Writer:    writer,
		Detector:  opts.Detector,
		Filter:    vision.NewFilter(opts.BlurIDs, opts.ExcludeIDs),
		Merger:    vision.NewMerger(opts.Lookahead, meta.Width, meta.Height),
		Blurrer:   opts.Blurrer,
		Lookahead: opts.Lookahead,
		Progress:  opts.Progress,
		Cancel:    opts.Cancel,
	}
	return exec.Run()
}

// BlurImage anonymizes a single still image: read, detect, filter, blur,
// write. No threading, no lookahead merging.
func BlurImage(inPath, outPath string, detector vision.Detector, blurrer blur.Blurrer, blurIDs, excludeIDs []int64) error {
	reader, err := media.OpenImageReader(inPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer reader.Close()

	frame, err := reader.Next()
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	regions, err := detector.Detect(frame)
	if err != nil {
		return fmt.Errorf("detect: %w", err)
	}
	regions = vision.NewFilter(blurIDs, excludeIDs).Apply(regions)

	if err := blurrer.Blur(frame, regions); err != nil {
		return fmt.Errorf("blur: %w", err)
	}

	writer := media.NewImageWriter(outPath)
	if err := writer.Write(frame); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return writer.Close()
}
