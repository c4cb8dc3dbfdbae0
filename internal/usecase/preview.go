package usecase

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/neutrinographics/faceguard/internal/media"
	"github.com/neutrinographics/faceguard/internal/pipeline"
	"github.com/neutrinographics/faceguard/internal/vision"
)

// thumbnailSize is the square side of saved face thumbnails.
const thumbnailSize = 256

// PreviewResult carries the detection cache and the thumbnail written
// for each track ID. Feeding the cache into a CachedDetector for the
// blur pass guarantees the IDs the user inspected are exactly the IDs
// blurred.
type PreviewResult struct {
	Cache      *vision.DetectionCache
	Thumbnails map[int64]string
}

// Preview scans the whole video, populating a detection cache and saving
// the largest observed crop per track as a square thumbnail.
func Preview(inPath, thumbDir string, detector vision.Detector, progress pipeline.Progress, cancel *atomic.Bool) (*PreviewResult, error) {
	if err := os.MkdirAll(thumbDir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail dir: %w", err)
	}

	reader, err := media.OpenFFmpegReader(inPath)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer reader.Close()

	cache := vision.NewDetectionCache()
	thumbs := make(map[int64]string)
	bestArea := make(map[int64]float32)

	for {
		if cancel != nil && cancel.Load() {
			return nil, pipeline.ErrCanceled
		}

		frame, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read: %w", err)
		}

		regions, err := detector.Detect(frame)
		if err != nil {
			return nil, fmt.Errorf("detect frame %d: %w", frame.Index, err)
		}
		cache.Put(frame.Index, regions)

		for _, r := range regions {
			if r.TrackID == 0 || r.Empty() {
				continue
			}
			area := r.W * r.H
			if area <= bestArea[r.TrackID] {
				continue
			}
			bestArea[r.TrackID] = area

			path := filepath.Join(thumbDir, fmt.Sprintf("track_%d.jpg", r.TrackID))
			err := media.WriteThumbnail(path, frame,
				int(r.X), int(r.Y), int(r.W), int(r.H), thumbnailSize)
			if err != nil {
				slog.Warn("save thumbnail", "track", r.TrackID, "error", err)
				continue
			}
			thumbs[r.TrackID] = path
		}

		if progress != nil && !progress(frame.Index) {
			return nil, pipeline.ErrCanceled
		}
	}

	slog.Info("preview scan complete", "frames", cache.Len(), "tracks", len(thumbs))
	return &PreviewResult{Cache: cache, Thumbnails: thumbs}, nil
}
