package audio

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// Recognizer transcribes a segment into timestamped words.
type Recognizer interface {
	Transcribe(seg *Segment) ([]Word, error)
}

// WhisperCLI shells out to a whisper.cpp binary for transcription. The
// segment is written to a temporary WAV, transcribed with word-level
// timestamps, and the JSON output parsed back.
type WhisperCLI struct {
	BinPath   string
	ModelPath string
}

func NewWhisperCLI(binPath, modelPath string) *WhisperCLI {
	if binPath == "" {
		binPath = "whisper-cli"
	}
	return &WhisperCLI{BinPath: binPath, ModelPath: modelPath}
}

// whisper.cpp full-JSON output, reduced to the fields we read.
type whisperOutput struct {
	Transcription []struct {
		Text    string `json:"text"`
		Offsets struct {
			From int64 `json:"from"` // milliseconds
			To   int64 `json:"to"`
		} `json:"offsets"`
	} `json:"transcription"`
}

func (w *WhisperCLI) Transcribe(seg *Segment) ([]Word, error) {
	if seg.Channels != 1 || seg.Rate != transcribeRate {
		return nil, fmt.Errorf("transcription needs mono %d Hz audio, got %d ch %d Hz",
			transcribeRate, seg.Channels, seg.Rate)
	}

	dir, err := os.MkdirTemp("", "faceguard-asr-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	wavPath := filepath.Join(dir, uuid.NewString()+".wav")
	if err := writeWAV(wavPath, seg); err != nil {
		return nil, err
	}

	outBase := filepath.Join(dir, "transcript")
	cmd := exec.Command(w.BinPath,
		"-m", w.ModelPath,
		"-f", wavPath,
		"-ojf",          // full JSON
		"-ml", "1",      // one word per segment
		"-of", outBase,
		"--no-prints",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("whisper: %w (%s)", err, string(out))
	}

	data, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var parsed whisperOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}

	words := make([]Word, 0, len(parsed.Transcription))
	for _, t := range parsed.Transcription {
		start := float64(t.Offsets.From) / 1000
		end := float64(t.Offsets.To) / 1000
		if end <= start {
			continue
		}
		words = append(words, Word{Text: t.Text, Start: start, End: end, Confidence: 1})
	}
	return words, nil
}
