// Package config loads settings from defaults, a TOML file and MUDRA_*
// environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/course"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MUDRA_"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full application configuration.
type Config struct {
	Training TrainingConfig `toml:"training" envPrefix:"TRAINING_"`
	Camera   CameraConfig   `toml:"camera" envPrefix:"CAMERA_"`
	Detector DetectorConfig `toml:"detector" envPrefix:"DETECTOR_"`
	Server   ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	Store    StoreConfig    `toml:"store" envPrefix:"STORE_"`
}

// TrainingConfig holds the session goal and detection timing in milliseconds.
type TrainingConfig struct {
	Goal            int `toml:"goal" env:"GOAL"`
	CooldownMs      int `toml:"cooldown-ms" env:"COOLDOWN_MS"`
	SuppressionMs   int `toml:"suppression-ms" env:"SUPPRESSION_MS"`
	NoHandTimeoutMs int `toml:"no-hand-timeout-ms" env:"NO_HAND_TIMEOUT_MS"`
}

type CameraConfig struct {
	Device int `toml:"device" env:"DEVICE"`
	FPS    int `toml:"fps" env:"FPS"`
}

type DetectorConfig struct {
	MaxHands               int     `toml:"max-hands" env:"MAX_HANDS"`
	ModelComplexity        int     `toml:"model-complexity" env:"MODEL_COMPLEXITY"`
	MinDetectionConfidence float64 `toml:"min-detection-confidence" env:"MIN_DETECTION_CONFIDENCE"`
	MinTrackingConfidence  float64 `toml:"min-tracking-confidence" env:"MIN_TRACKING_CONFIDENCE"`
	ScriptPath             string  `toml:"script-path" env:"SCRIPT_PATH"`
	PythonPath             string  `toml:"python-path" env:"PYTHON_PATH"`
}

type ServerConfig struct {
	Addr      string `toml:"addr" env:"ADDR"`
	StaticDir string `toml:"static-dir" env:"STATIC_DIR"`
}

// StoreConfig selects the SQLite database. ":memory:" keeps progress for the
// life of the process only.
type StoreConfig struct {
	Path string `toml:"path" env:"PATH"`
}

// Default returns the built-in configuration.
func Default() Config {
	timing := session.DefaultTiming()
	det := detector.DefaultConfig()
	return Config{
		Training: TrainingConfig{
			Goal:            course.DefaultGoal,
			CooldownMs:      int(timing.RecognitionCooldown / time.Millisecond),
			SuppressionMs:   int(timing.SuppressionWindow / time.Millisecond),
			NoHandTimeoutMs: int(timing.NoHandTimeout / time.Millisecond),
		},
		Camera: CameraConfig{
			Device: 0,
			FPS:    capture.DefaultFPS,
		},
		Detector: DetectorConfig{
			MaxHands:               det.MaxHands,
			ModelComplexity:        det.ModelComplexity,
			MinDetectionConfidence: det.MinConfidence,
			MinTrackingConfidence:  det.MinTrackingConf,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8080",
			StaticDir: "web",
		},
		Store: StoreConfig{
			Path: store.MemoryPath,
		},
	}
}

// Load reads defaults, then the TOML file at path, then environment
// overrides, and validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := cfg.decodeFile(path); err != nil {
		return Config{}, err
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat config: %w", err)
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// ParseEnv applies MUDRA_* environment variables to target.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects values the controller cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Training.Goal <= 0:
		return fmt.Errorf("%w: training.goal must be positive", ErrInvalid)
	case c.Training.CooldownMs <= 0:
		return fmt.Errorf("%w: training.cooldown-ms must be positive", ErrInvalid)
	case c.Training.SuppressionMs <= 0:
		return fmt.Errorf("%w: training.suppression-ms must be positive", ErrInvalid)
	case c.Training.NoHandTimeoutMs <= 0:
		return fmt.Errorf("%w: training.no-hand-timeout-ms must be positive", ErrInvalid)
	case c.Camera.FPS <= 0:
		return fmt.Errorf("%w: camera.fps must be positive", ErrInvalid)
	case c.Detector.MaxHands <= 0:
		return fmt.Errorf("%w: detector.max-hands must be positive", ErrInvalid)
	case c.Detector.MinDetectionConfidence < 0 || c.Detector.MinDetectionConfidence > 1:
		return fmt.Errorf("%w: detector.min-detection-confidence must be within [0, 1]", ErrInvalid)
	case c.Detector.MinTrackingConfidence < 0 || c.Detector.MinTrackingConfidence > 1:
		return fmt.Errorf("%w: detector.min-tracking-confidence must be within [0, 1]", ErrInvalid)
	case c.Server.Addr == "":
		return fmt.Errorf("%w: server.addr is empty", ErrInvalid)
	}
	return nil
}

// Timing converts the training section to controller timing.
func (c Config) Timing() session.Timing {
	return session.Timing{
		RecognitionCooldown: time.Duration(c.Training.CooldownMs) * time.Millisecond,
		SuppressionWindow:   time.Duration(c.Training.SuppressionMs) * time.Millisecond,
		NoHandTimeout:       time.Duration(c.Training.NoHandTimeoutMs) * time.Millisecond,
	}
}

// DetectorOptions converts the detector section to detector options.
func (c Config) DetectorOptions() detector.Config {
	return detector.Config{
		MaxHands:        c.Detector.MaxHands,
		ModelComplexity: c.Detector.ModelComplexity,
		MinConfidence:   c.Detector.MinDetectionConfidence,
		MinTrackingConf: c.Detector.MinTrackingConfidence,
		ScriptPath:      c.Detector.ScriptPath,
		PythonPath:      c.Detector.PythonPath,
	}
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
