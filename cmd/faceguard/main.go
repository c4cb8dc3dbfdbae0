package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/neutrinographics/faceguard/internal/audio"
	"github.com/neutrinographics/faceguard/internal/blur"
	"github.com/neutrinographics/faceguard/internal/config"
	"github.com/neutrinographics/faceguard/internal/media"
	"github.com/neutrinographics/faceguard/internal/modelfetch"
	"github.com/neutrinographics/faceguard/internal/observability"
	"github.com/neutrinographics/faceguard/internal/pipeline"
	"github.com/neutrinographics/faceguard/internal/usecase"
	"github.com/neutrinographics/faceguard/internal/vision"
)

type flags struct {
	configPath    string
	confidence    float64
	blurStrength  int
	blurShape     string
	lookahead     int
	skipFrames    int
	previewDir    string
	blurIDs       string
	excludeIDs    string
	quality       int
	audioKeywords string
	voiceDisguise string
	modelPath     string
	metricsAddr   string
}

func main() {
	var f flags

	root := &cobra.Command{
		Use:   "faceguard <input> [output]",
		Short: "Anonymize faces in videos and images",
		Long: "faceguard detects faces frame by frame, tracks them across time and\n" +
			"applies a Gaussian blur to each one. An optional audio pass bleeps\n" +
			"keywords and disguises voices.",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(&f, args)
		},
	}

	root.Flags().StringVar(&f.configPath, "config", defaultConfigPath(), "path to config file")
	root.Flags().Float64Var(&f.confidence, "confidence", 0.5, "detector confidence threshold")
	root.Flags().IntVar(&f.blurStrength, "blur-strength", 201, "Gaussian kernel size (odd, positive)")
	root.Flags().StringVar(&f.blurShape, "blur-shape", "ellipse", "blur shape: ellipse or rect")
	root.Flags().IntVar(&f.lookahead, "lookahead", 10, "frames buffered for face slide-in")
	root.Flags().IntVar(&f.skipFrames, "skip-frames", 2, "run detection every Nth frame")
	root.Flags().StringVar(&f.previewDir, "preview", "", "save thumbnails to this directory and skip blurring")
	root.Flags().StringVar(&f.blurIDs, "blur-ids", "", "comma-separated track IDs to blur")
	root.Flags().StringVar(&f.excludeIDs, "exclude-ids", "", "comma-separated track IDs to preserve")
	root.Flags().IntVar(&f.quality, "quality", 18, "H.264 CRF quality")
	root.Flags().StringVar(&f.audioKeywords, "audio-keywords", "", "comma-separated keywords to bleep")
	root.Flags().StringVar(&f.voiceDisguise, "voice-disguise", "off", "voice disguise tier: off, low, medium or high")
	root.Flags().StringVar(&f.modelPath, "model", "", "path to the detector ONNX model")
	root.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	if err := root.Execute(); err != nil {
		if err == pipeline.ErrCanceled {
			fmt.Fprintln(os.Stderr, "canceled")
		} else {
			fmt.Fprintf(os.Stderr, "faceguard: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(f *flags, args []string) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	input := args[0]
	output := ""
	if len(args) > 1 {
		output = args[1]
	}
	if output == "" && f.previewDir == "" {
		return fmt.Errorf("output path required unless --preview is set")
	}

	blurIDs, err := parseIDList(f.blurIDs)
	if err != nil {
		return fmt.Errorf("--blur-ids: %w", err)
	}
	excludeIDs, err := parseIDList(f.excludeIDs)
	if err != nil {
		return fmt.Errorf("--exclude-ids: %w", err)
	}
	if len(blurIDs) > 0 && len(excludeIDs) > 0 {
		return fmt.Errorf("--blur-ids and --exclude-ids are mutually exclusive")
	}

	shape, err := blur.ParseShape(f.blurShape)
	if err != nil {
		return err
	}
	tier, err := audio.ParseTier(f.voiceDisguise)
	if err != nil {
		return err
	}
	keywords := splitList(f.audioKeywords)

	if f.metricsAddr != "" {
		go serveMetrics(f.metricsAddr)
	}

	cancel := &atomic.Bool{}
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("interrupt received, stopping")
		cancel.Store(true)
	}()

	// Initialize ONNX Runtime once per process.
	ort.SetSharedLibraryPath(onnxLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx runtime: %w", err)
	}
	defer ort.DestroyEnvironment()

	detector, err := buildDetector(f, cfg)
	if err != nil {
		return err
	}
	defer detector.Close()

	if isImagePath(input) {
		blurrer, err := blur.New(shape, f.blurStrength)
		if err != nil {
			return err
		}
		defer blurrer.Close()
		return usecase.BlurImage(input, output, detector, blurrer, blurIDs, excludeIDs)
	}

	if f.previewDir != "" {
		result, err := usecase.Preview(input, f.previewDir, detector, nil, cancel)
		if err != nil {
			return err
		}
		for id, path := range result.Thumbnails {
			fmt.Fprintf(os.Stderr, "track %d: %s\n", id, path)
		}
		return nil
	}

	blurrer, err := blur.New(shape, f.blurStrength)
	if err != nil {
		return err
	}
	defer blurrer.Close()

	audioPass := &audio.Pass{
		Keywords:  keywords,
		Padding:   cfg.Audio.CensorPadding,
		BleepMode: bleepMode(cfg),
		Tier:      tier,
	}
	if len(keywords) > 0 {
		if cfg.Audio.WhisperModel == "" {
			slog.Warn("audio keywords set but no whisper model configured, skipping censor")
		} else {
			audioPass.Recognizer = audio.NewWhisperCLI(cfg.Audio.WhisperBin, cfg.Audio.WhisperModel)
		}
	}

	err = usecase.BlurVideo(input, output, usecase.BlurVideoOptions{
		Detector:      detector,
		Blurrer:       blurrer,
		Lookahead:     f.lookahead,
		Quality:       f.quality,
		BlurIDs:       blurIDs,
		ExcludeIDs:    excludeIDs,
		Progress:      progressBar(input, cancel),
		Cancel:        cancel,
		SkipAudioCopy: audioPass.Enabled(),
	})
	if err != nil {
		return err
	}

	if audioPass.Enabled() {
		if err := audioPass.Run(input, output); err != nil {
			// The blurred video stands on its own; a failed audio pass
			// degrades to passthrough.
			slog.Error("audio pass failed, output keeps original audio", "error", err)
		}
	}
	return nil
}

// buildDetector resolves the model, builds the ONNX session and wraps it
// in the skip-frame decorator.
func buildDetector(f *flags, cfg *config.Config) (vision.Detector, error) {
	modelPath := f.modelPath
	if modelPath == "" {
		resolver := modelfetch.NewResolver(cfg.Models.Dir, func(name string, done, total int64) {
			if total > 0 {
				fmt.Fprintf(os.Stderr, "\rdownloading %s: %d%%", name, done*100/total)
			}
		})
		var err error
		modelPath, err = resolver.Resolve(cfg.Models.DetectorName, cfg.Models.DetectorURL)
		if err != nil {
			return nil, err
		}
	}

	opts, err := sessionOptions(cfg)
	if err != nil {
		return nil, err
	}
	if opts != nil {
		defer opts.Destroy()
	}

	yolo, err := vision.NewYOLODetector(modelPath, vision.YOLOConfig{
		ConfThreshold: float32(f.confidence),
		NMSThreshold:  float32(cfg.Detection.NMSThreshold),
		MinFaceSize:   float32(cfg.Detection.MinFaceSize),
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	if f.skipFrames > 1 {
		return vision.NewSkipDetector(yolo, f.skipFrames), nil
	}
	return yolo, nil
}

// sessionOptions caps ORT thread usage per the config. Returns nil for
// ORT defaults.
func sessionOptions(cfg *config.Config) (*ort.SessionOptions, error) {
	if cfg.Detection.IntraOpThreads == 0 && cfg.Detection.InterOpThreads == 0 {
		return nil, nil
	}
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	if cfg.Detection.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.Detection.IntraOpThreads); err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("set intra_op_threads: %w", err)
		}
	}
	if cfg.Detection.InterOpThreads > 0 {
		if err := opts.SetInterOpNumThreads(cfg.Detection.InterOpThreads); err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("set inter_op_threads: %w", err)
		}
	}
	return opts, nil
}

// progressBar renders job progress on stderr and doubles as the
// cancellation relay.
func progressBar(input string, cancel *atomic.Bool) pipeline.Progress {
	meta, err := media.Probe(input)
	total := meta.TotalFrames
	if err != nil || total <= 0 {
		total = 1
	}
	bar, barErr := pterm.DefaultProgressbar.
		WithTotal(total).
		WithWriter(os.Stderr).
		WithTitle("blurring").
		Start()
	if barErr != nil {
		return func(frame int) bool { return !cancel.Load() }
	}
	return func(frame int) bool {
		bar.Increment()
		return !cancel.Load()
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server error", "error", err)
	}
}

func bleepMode(cfg *config.Config) audio.BleepMode {
	if cfg.Audio.BleepSilence {
		return audio.BleepSilence
	}
	return audio.BleepTone
}

func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid track ID %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isImagePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".faceguard", "config.yaml")
}

// onnxLibPath returns the ONNX Runtime shared library name for the
// current platform.
func onnxLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
