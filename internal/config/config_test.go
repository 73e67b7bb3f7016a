package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, SourceWebcam, cfg.GetSource())
	assert.Equal(t, DefaultDetectorURL, cfg.Detector.URL)
	assert.Equal(t, DefaultModels, cfg.Detector.Models)
	assert.Equal(t, 30*time.Second, cfg.GetDetectTimeout())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, uint(24), cfg.GetFPS())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facecam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
active_source: Local
target_fps: 10
local:
  path: /videos/demo.mp4
detector:
  url: ws://gpu-box:9000/ws
  models_uri: /weights
  models: [tiny_face_detector, age_gender]
  jpeg_quality: 75
  detect_timeout: 5s
  load_timeout: 1m
  retry_delay: 500ms
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SourceLocal, cfg.GetSource())
	assert.Equal(t, uint(10), cfg.GetFPS())
	assert.Equal(t, 640, cfg.GetWidth())
	assert.Equal(t, "/videos/demo.mp4", cfg.GetLocalPath())
	assert.Equal(t, "ws://gpu-box:9000/ws", cfg.Detector.URL)
	assert.Equal(t, []string{"tiny_face_detector", "age_gender"}, cfg.Detector.Models)
	assert.Equal(t, 75, cfg.GetJPEGQuality())
	assert.Equal(t, 5*time.Second, cfg.GetDetectTimeout())
	assert.Equal(t, time.Minute, cfg.Detector.LoadTimeout.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.Detector.RetryDelay.Duration)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"active_source": "Web-Camera",
		"scaled_width": 1280,
		"scaled_height": 720,
		"webcam": {"device_id": "/dev/video2"},
		"detector": {"detect_timeout": 2000000000}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1280, cfg.GetWidth())
	assert.Equal(t, 720, cfg.GetHeight())
	assert.Equal(t, "/dev/video2", cfg.GetDeviceID())
	assert.Equal(t, 2*time.Second, cfg.GetDetectTimeout())
	assert.Equal(t, DefaultDetectorURL, cfg.Detector.URL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown source":     `{"active_source": "YouTube"}`,
		"zero fps":           `{"target_fps": 0}`,
		"tiny frame":         `{"scaled_width": 4}`,
		"bad quality":        `{"detector": {"jpeg_quality": 101}}`,
		"no models":          `{"detector": {"models": []}}`,
		"bad log level":      `{"log": {"level": "loud"}}`,
		"bad duration":       `{"detector": {"detect_timeout": "soon"}}`,
		"negative":           `{"detector": {"load_timeout": "-1s"}}`,
		"malformed json":     `{"active_source": `,
		"missing url":        `{"detector": {"url": ""}}`,
		"missing models uri": `{"detector": {"models_uri": ""}}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FACECAM_SOURCE", "Local")
	t.Setenv("FACECAM_LOCAL_PATH", "/tmp/clip.mkv")
	t.Setenv("FACECAM_DETECTOR_URL", "ws://10.0.0.5:8080/ws")
	t.Setenv("FACECAM_MODELS_URI", "/srv/models")
	t.Setenv("FACECAM_DETECT_TIMEOUT", "12s")
	t.Setenv("FACECAM_TARGET_FPS", "15")
	t.Setenv("FACECAM_DETECTOR_MODELS", "tiny_face_detector, face_landmark_68,,")
	t.Setenv("FACECAM_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, SourceLocal, cfg.GetSource())
	assert.Equal(t, "/tmp/clip.mkv", cfg.GetLocalPath())
	assert.Equal(t, "ws://10.0.0.5:8080/ws", cfg.Detector.URL)
	assert.Equal(t, "/srv/models", cfg.Detector.ModelsURI)
	assert.Equal(t, 12*time.Second, cfg.GetDetectTimeout())
	assert.Equal(t, uint(15), cfg.GetFPS())
	assert.Equal(t, []string{"tiny_face_detector", "face_landmark_68"}, cfg.Detector.Models)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("FACECAM_TARGET_FPS", "fast")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FACECAM_TARGET_FPS")
}

func TestSaveAndReload(t *testing.T) {
	for _, name := range []string{"config.json", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := NewDefaultConfig()
			cfg.SetSource(SourceLocal)
			cfg.SetLocalPath("/data/in.mp4")
			cfg.SetFPS(30)
			cfg.SetWidth(320)
			cfg.SetHeight(240)
			cfg.SetDeviceID("/dev/video1")

			require.NoError(t, cfg.Save(path))

			loaded, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, SourceLocal, loaded.GetSource())
			assert.Equal(t, "/data/in.mp4", loaded.GetLocalPath())
			assert.Equal(t, uint(30), loaded.GetFPS())
			assert.Equal(t, 320, loaded.GetWidth())
			assert.Equal(t, 240, loaded.GetHeight())
			assert.Equal(t, "/dev/video1", loaded.GetDeviceID())
			assert.Equal(t, cfg.GetDetectTimeout(), loaded.GetDetectTimeout())
		})
	}
}

func TestApplyCopiesRuntimeSettings(t *testing.T) {
	cfg := NewDefaultConfig()

	next := NewDefaultConfig()
	next.SetFPS(5)
	next.SetSource(SourceLocal)
	next.Detector.URL = "ws://elsewhere/ws"
	next.Detector.JPEGQuality = 50
	next.Log.Level = "debug"

	cfg.Apply(next)

	assert.Equal(t, uint(5), cfg.GetFPS())
	assert.Equal(t, SourceLocal, cfg.GetSource())
	assert.Equal(t, 50, cfg.GetJPEGQuality())
	assert.Equal(t, DefaultDetectorURL, cfg.Detector.URL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestDurationEncoding(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, json.Unmarshal([]byte(`1500000000`), &d))
	assert.Equal(t, 1500*time.Millisecond, d.Duration)

	assert.Error(t, json.Unmarshal([]byte(`true`), &d))

	out, err := json.Marshal(Duration{45 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `"45s"`, string(out))

	var y struct {
		Timeout Duration `yaml:"timeout"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("timeout: 250ms"), &y))
	assert.Equal(t, 250*time.Millisecond, y.Timeout.Duration)

	assert.Error(t, yaml.Unmarshal([]byte("timeout: later"), &y))
}
