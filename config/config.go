package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type EngineConfig struct {
	Backend        string  `yaml:"backend"` // yunet, http or grpc
	Address        string  `yaml:"address"`
	ScoreThreshold float32 `yaml:"scoreThreshold"`
	NMSThreshold   float32 `yaml:"nmsThreshold"`
	TopK           int     `yaml:"topK"`
	TimeoutMs      int     `yaml:"timeoutMs"`
}

type DisplayConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Window      string `yaml:"window"`
	Fullscreen  bool   `yaml:"fullscreen"`
	Rotate      string `yaml:"rotate"` // none, cw90, ccw90, 180
	QuitKey     string `yaml:"quitKey"`
	SnapshotKey string `yaml:"snapshotKey"`
}

type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type LogConfig struct {
	Development bool `yaml:"development"`
	Debug       bool `yaml:"debug"`
}

type Config struct {
	ModelPath     string        `yaml:"modelPath"`
	Source        string        `yaml:"source"`
	CaptureWidth  int           `yaml:"captureWidth"`
	CaptureHeight int           `yaml:"captureHeight"`
	FrameDelayMs  int           `yaml:"frameDelayMs"`
	Renderer      string        `yaml:"renderer"` // opencv or buffer
	SnapshotDir   string        `yaml:"snapshotDir"`
	SnapshotAt    int           `yaml:"snapshotAt"` // frame number to export, 0 disables
	Engine        EngineConfig  `yaml:"engine"`
	Display       DisplayConfig `yaml:"display"`
	Monitor       MonitorConfig `yaml:"monitor"`
	Log           LogConfig     `yaml:"log"`
}

func Default() Config {
	return Config{
		ModelPath:     "./model/face_detection_yunet_2023mar.onnx",
		Source:        "./model/test.mp4",
		CaptureWidth:  640,
		CaptureHeight: 640,
		FrameDelayMs:  20,
		Renderer:      "opencv",
		SnapshotDir:   ".",
		Engine: EngineConfig{
			Backend:        "yunet",
			ScoreThreshold: 0.5,
			NMSThreshold:   0.3,
			TopK:           5000,
			TimeoutMs:      2000,
		},
		Display: DisplayConfig{
			Enabled:     true,
			Window:      "Video",
			Fullscreen:  true,
			Rotate:      "ccw90", // portrait panel mounted sideways
			QuitKey:     "q",
			SnapshotKey: "s",
		},
		Monitor: MonitorConfig{Port: 50052},
	}
}

// Load reads a YAML file over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	configData, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(configData, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("modelPath is required")
	}
	if c.Source == "" {
		return fmt.Errorf("source is required")
	}
	if c.CaptureWidth <= 0 || c.CaptureHeight <= 0 {
		return fmt.Errorf("invalid capture size %dx%d", c.CaptureWidth, c.CaptureHeight)
	}
	if c.FrameDelayMs < 0 {
		return fmt.Errorf("frameDelayMs must not be negative, got %d", c.FrameDelayMs)
	}
	switch c.Renderer {
	case "opencv", "buffer":
	default:
		return fmt.Errorf("unsupported renderer %q", c.Renderer)
	}
	switch c.Engine.Backend {
	case "yunet":
	case "http", "grpc":
		if c.Engine.Address == "" {
			return fmt.Errorf("engine.address is required for the %s backend", c.Engine.Backend)
		}
	default:
		return fmt.Errorf("unsupported engine backend %q", c.Engine.Backend)
	}
	if c.Engine.ScoreThreshold < 0 || c.Engine.ScoreThreshold > 1 {
		return fmt.Errorf("scoreThreshold must be between 0.0 and 1.0, got %f", c.Engine.ScoreThreshold)
	}
	if c.Engine.NMSThreshold < 0 || c.Engine.NMSThreshold > 1 {
		return fmt.Errorf("nmsThreshold must be between 0.0 and 1.0, got %f", c.Engine.NMSThreshold)
	}
	switch c.Display.Rotate {
	case "", "none", "cw90", "ccw90", "180":
	default:
		return fmt.Errorf("unsupported display rotation %q", c.Display.Rotate)
	}
	if len(c.Display.QuitKey) > 1 || len(c.Display.SnapshotKey) > 1 {
		return fmt.Errorf("quitKey and snapshotKey must be single characters")
	}
	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		return fmt.Errorf("invalid monitor port %d", c.Monitor.Port)
	}
	return nil
}

func (c Config) FrameDelay() time.Duration {
	return time.Duration(c.FrameDelayMs) * time.Millisecond
}

func (c Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutMs) * time.Millisecond
}

// Key returns the key code for a single-character binding, or -1 when unset.
func Key(s string) int {
	if s == "" {
		return -1
	}
	return int(s[0])
}
