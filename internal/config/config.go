package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Detection Detection `yaml:"detection"`
	Blur      Blur      `yaml:"blur"`
	Audio     Audio     `yaml:"audio"`
	Models    Models    `yaml:"models"`
	Logging   Logging   `yaml:"logging"`
}

type Detection struct {
	Confidence     float64 `yaml:"confidence"`
	NMSThreshold   float64 `yaml:"nms_threshold"`
	MinFaceSize    float64 `yaml:"min_face_size"`
	SkipFrames     int     `yaml:"skip_frames"`
	Lookahead      int     `yaml:"lookahead"`
	IntraOpThreads int     `yaml:"intra_op_threads"`
	InterOpThreads int     `yaml:"inter_op_threads"`
}

type Blur struct {
	Strength int    `yaml:"strength"`
	Shape    string `yaml:"shape"`
	Quality  int    `yaml:"quality"`
}

type Audio struct {
	WhisperBin    string  `yaml:"whisper_bin"`
	WhisperModel  string  `yaml:"whisper_model"`
	CensorPadding float64 `yaml:"censor_padding"`
	BleepSilence  bool    `yaml:"bleep_silence"`
}

type Models struct {
	Dir          string `yaml:"dir"`
	DetectorName string `yaml:"detector_name"`
	DetectorURL  string `yaml:"detector_url"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies environment variable
// overrides. A missing file yields pure defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Detection.Confidence == 0 {
		cfg.Detection.Confidence = 0.5
	}
	if cfg.Detection.NMSThreshold == 0 {
		cfg.Detection.NMSThreshold = 0.45
	}
	if cfg.Detection.SkipFrames == 0 {
		cfg.Detection.SkipFrames = 2
	}
	if cfg.Detection.Lookahead == 0 {
		cfg.Detection.Lookahead = 10
	}
	if cfg.Blur.Strength == 0 {
		cfg.Blur.Strength = 201
	}
	if cfg.Blur.Shape == "" {
		cfg.Blur.Shape = "ellipse"
	}
	if cfg.Blur.Quality == 0 {
		cfg.Blur.Quality = 18
	}
	if cfg.Audio.CensorPadding == 0 {
		cfg.Audio.CensorPadding = 0.05
	}
	if cfg.Models.Dir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.Models.Dir = home + "/.faceguard/models"
		} else {
			cfg.Models.Dir = "models"
		}
	}
	if cfg.Models.DetectorName == "" {
		cfg.Models.DetectorName = "yolov8n-face-pose.onnx"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FG_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detection.Confidence = f
		}
	}
	if v := os.Getenv("FG_SKIP_FRAMES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Detection.SkipFrames = n
		}
	}
	if v := os.Getenv("FG_LOOKAHEAD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Detection.Lookahead = n
		}
	}
	if v := os.Getenv("FG_BLUR_STRENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Blur.Strength = n
		}
	}
	if v := os.Getenv("FG_BLUR_SHAPE"); v != "" {
		cfg.Blur.Shape = v
	}
	if v := os.Getenv("FG_MODELS_DIR"); v != "" {
		cfg.Models.Dir = v
	}
	if v := os.Getenv("FG_DETECTOR_URL"); v != "" {
		cfg.Models.DetectorURL = v
	}
	if v := os.Getenv("FG_WHISPER_BIN"); v != "" {
		cfg.Audio.WhisperBin = v
	}
	if v := os.Getenv("FG_WHISPER_MODEL"); v != "" {
		cfg.Audio.WhisperModel = v
	}
	if v := os.Getenv("FG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FG_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
