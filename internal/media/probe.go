package media

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ffprobe JSON payload, reduced to the fields we read.
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NbFrames     string `json:"nb_frames"`
	Duration     string `json:"duration"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

// Probe inspects a media file with ffprobe and returns its video metadata.
func Probe(path string) (Metadata, error) {
	out, err := exec.Command("ffprobe",
		"-hide_banner",
		"-loglevel", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	).Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var probed probeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	for _, s := range probed.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.Width <= 0 || s.Height <= 0 {
			return Metadata{}, fmt.Errorf("unreadable dimensions in %s", path)
		}

		fps := parseRate(s.AvgFrameRate)
		total, _ := strconv.Atoi(s.NbFrames)
		if total == 0 && fps > 0 {
			// Some containers omit nb_frames; estimate from duration.
			dur, _ := strconv.ParseFloat(firstNonEmpty(s.Duration, probed.Format.Duration), 64)
			total = int(dur * fps)
		}

		return Metadata{
			Width:       s.Width,
			Height:      s.Height,
			FPS:         fps,
			TotalFrames: total,
			Codec:       s.CodecName,
			Path:        path,
		}, nil
	}

	return Metadata{}, fmt.Errorf("no video stream in %s", path)
}

// HasAudio reports whether the file carries at least one audio stream.
func HasAudio(path string) (bool, error) {
	out, err := exec.Command("ffprobe",
		"-hide_banner",
		"-loglevel", "error",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a",
		path,
	).Output()
	if err != nil {
		return false, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	var probed probeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		return false, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return len(probed.Streams) > 0, nil
}

// parseRate parses an ffprobe rational like "30000/1001".
func parseRate(r string) float64 {
	parts := strings.SplitN(r, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0
	}
	if len(parts) == 1 {
		return num
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || den == 0 {
		return 0
	}
	return num / den
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
