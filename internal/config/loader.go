package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FACECAM_"

var validate = validator.New()

// Load reads the config file at path on top of the defaults, applies .env
// and FACECAM_* environment overrides and validates the result. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := decode(cfg, path, data); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Detector.DetectTimeout.Duration < 0 || c.Detector.LoadTimeout.Duration < 0 {
		return errors.New("detector timeouts must be non-negative")
	}
	return nil
}

// Save writes the config as YAML or JSON depending on the file extension.
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var (
		data []byte
		err  error
	)

	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func decode(cfg *Config, path string, data []byte) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	return dec.Decode(cfg)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func applyEnvOverrides(cfg *Config) error {
	envMappings := map[string]func(string) error{
		"SOURCE":          func(v string) error { cfg.ActiveSource = SourceType(v); return nil },
		"DEVICE":          func(v string) error { cfg.Webcam.DeviceID = v; return nil },
		"LOCAL_PATH":      func(v string) error { cfg.Local.Path = v; return nil },
		"DETECTOR_URL":    func(v string) error { cfg.Detector.URL = v; return nil },
		"MODELS_URI":      func(v string) error { cfg.Detector.ModelsURI = v; return nil },
		"DETECT_TIMEOUT":  func(v string) error { return parseDuration(v, &cfg.Detector.DetectTimeout) },
		"LOG_LEVEL":       func(v string) error { cfg.Log.Level = v; return nil },
		"LOG_FILE":        func(v string) error { cfg.Log.File = v; return nil },
		"TARGET_FPS":      func(v string) error { return parseUint(v, &cfg.TargetFPS) },
		"DETECTOR_MODELS": func(v string) error { cfg.Detector.Models = splitList(v); return nil },
	}

	for name, setter := range envMappings {
		if value := os.Getenv(envPrefix + name); value != "" {
			if err := setter(value); err != nil {
				return fmt.Errorf("invalid value for %s%s: %w", envPrefix, name, err)
			}
		}
	}

	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseUint(s string, dst *uint) error {
	val, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return err
	}
	*dst = uint(val)
	return nil
}

func parseDuration(s string, dst *Duration) error {
	val, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	dst.Duration = val
	return nil
}

func defaultDevice() string {
	if runtime.GOOS == "windows" {
		return ""
	}
	return "/dev/video0"
}
