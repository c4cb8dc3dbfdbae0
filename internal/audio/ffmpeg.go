package audio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"

	"github.com/neutrinographics/faceguard/internal/media"
)

// transcribeRate is the sample rate whisper models expect; the decode
// side always lands there.
const transcribeRate = 16000

// Decode extracts the audio track of a media file as mono float32 at
// 16 kHz. Returns media.ErrNoAudioStream when the file has no audio.
func Decode(path string) (*Segment, error) {
	hasAudio, err := media.HasAudio(path)
	if err != nil {
		return nil, err
	}
	if !hasAudio {
		return nil, media.ErrNoAudioStream
	}

	cmd := exec.Command("ffmpeg",
		"-hide_banner",
		"-loglevel", "warning",
		"-i", path,
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", "1",
		"-ar", strconv.Itoa(transcribeRate),
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start audio decode: %w", err)
	}
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "stage", "audio-decode", "output", scanner.Text())
		}
	}()

	raw, err := io.ReadAll(bufio.NewReaderSize(stdout, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read decoded audio: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg audio decode: %w", err)
	}

	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return &Segment{Samples: samples, Rate: transcribeRate, Channels: 1}, nil
}

// Mux encodes the processed segment as AAC and splices it into the video
// file in place of its current audio, replacing the file atomically.
func Mux(videoPath string, seg *Segment) error {
	tmp := videoPath + ".audio.tmp.mp4"

	cmd := exec.Command("ffmpeg",
		"-hide_banner",
		"-loglevel", "warning",
		"-y",
		"-f", "f32le",
		"-ac", strconv.Itoa(seg.Channels),
		"-ar", strconv.Itoa(seg.Rate),
		"-i", "pipe:0",
		"-i", videoPath,
		"-map", "1:v:0",
		"-map", "0:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		tmp,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start audio mux: %w", err)
	}

	buf := bufio.NewWriterSize(stdin, 1<<20)
	scratch := make([]byte, 4)
	for _, s := range seg.Samples {
		binary.LittleEndian.PutUint32(scratch, math.Float32bits(s))
		if _, err := buf.Write(scratch); err != nil {
			stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write samples: %w", err)
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush samples: %w", err)
	}
	if err := stdin.Close(); err != nil {
		return fmt.Errorf("close mux stdin: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("ffmpeg audio mux: %w", err)
	}

	if err := os.Rename(tmp, videoPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", videoPath, err)
	}
	return nil
}

// writeWAV dumps a mono segment as a 16-bit PCM WAV file, the input
// format the whisper CLI accepts.
func writeWAV(path string, seg *Segment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	dataLen := len(seg.Samples) * 2
	le := binary.LittleEndian

	header := make([]byte, 44)
	copy(header[0:], "RIFF")
	le.PutUint32(header[4:], uint32(36+dataLen))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	le.PutUint32(header[16:], 16)
	le.PutUint16(header[20:], 1) // PCM
	le.PutUint16(header[22:], uint16(seg.Channels))
	le.PutUint32(header[24:], uint32(seg.Rate))
	le.PutUint32(header[28:], uint32(seg.Rate*seg.Channels*2))
	le.PutUint16(header[32:], uint16(seg.Channels*2))
	le.PutUint16(header[34:], 16)
	copy(header[36:], "data")
	le.PutUint32(header[40:], uint32(dataLen))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}

	scratch := make([]byte, 2)
	for _, s := range seg.Samples {
		v := int16(clampSample(s) * 32767)
		le.PutUint16(scratch, uint16(v))
		if _, err := w.Write(scratch); err != nil {
			return fmt.Errorf("write wav data: %w", err)
		}
	}
	return w.Flush()
}

func clampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
