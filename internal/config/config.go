package config

import (
	"sync"
	"time"
)

type SourceType string

const (
	SourceLocal  SourceType = "Local"
	SourceWebcam SourceType = "Web-Camera"

	DefaultConfigPath  string = "config.json"
	DefaultDetectorURL string = "ws://localhost:8080/ws"
	DefaultModelsURI   string = "/models"
)

var SourcesList = [...]string{
	string(SourceWebcam),
	string(SourceLocal),
}

// DefaultModels are loaded in this order at start-up.
var DefaultModels = []string{
	"tiny_face_detector",
	"ssd_mobilenetv1",
	"face_landmark_68",
	"age_gender",
}

type LocalConfig struct {
	Path string `json:"path" yaml:"path"`
}

type WebcamConfig struct {
	DeviceID string `json:"device_id" yaml:"device_id"`
}

type DetectorConfig struct {
	URL           string   `json:"url" yaml:"url" validate:"required,url"`
	ModelsURI     string   `json:"models_uri" yaml:"models_uri" validate:"required"`
	Models        []string `json:"models" yaml:"models" validate:"required,min=1,dive,required"`
	JPEGQuality   int      `json:"jpeg_quality" yaml:"jpeg_quality" validate:"min=1,max=100"`
	DetectTimeout Duration `json:"detect_timeout" yaml:"detect_timeout"`
	LoadTimeout   Duration `json:"load_timeout" yaml:"load_timeout"`
	RetryDelay    Duration `json:"retry_delay" yaml:"retry_delay"`
}

type LogConfig struct {
	Level    string `json:"level" yaml:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	File     string `json:"file" yaml:"file"`
	NoColors bool   `json:"no_colors" yaml:"no_colors"`
}

type Config struct {
	mu sync.RWMutex

	ActiveSource SourceType `json:"active_source" yaml:"active_source" validate:"oneof=Local Web-Camera"`
	TargetFPS    uint       `json:"target_fps" yaml:"target_fps" validate:"min=1,max=120"`
	ScaledWidth  int        `json:"scaled_width" yaml:"scaled_width" validate:"min=16"`
	ScaledHeight int        `json:"scaled_height" yaml:"scaled_height" validate:"min=16"`

	Local    LocalConfig    `json:"local" yaml:"local"`
	Webcam   WebcamConfig   `json:"webcam" yaml:"webcam"`
	Detector DetectorConfig `json:"detector" yaml:"detector"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

func (c *Config) GetSource() SourceType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ActiveSource
}

func (c *Config) SetSource(s SourceType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ActiveSource = s
}

func (c *Config) GetFPS() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TargetFPS
}

func (c *Config) SetFPS(fps uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TargetFPS = fps
}

func (c *Config) GetWidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScaledWidth
}

func (c *Config) SetWidth(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScaledWidth = width
}

func (c *Config) GetHeight() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScaledHeight
}

func (c *Config) SetHeight(height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScaledHeight = height
}

func (c *Config) GetLocalPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Local.Path
}

func (c *Config) SetLocalPath(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Local.Path = p
}

func (c *Config) GetDeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Webcam.DeviceID
}

func (c *Config) SetDeviceID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Webcam.DeviceID = id
}

func (c *Config) GetDetectTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Detector.DetectTimeout.Duration
}

func (c *Config) GetJPEGQuality() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Detector.JPEGQuality
}

// Apply copies the runtime-tunable settings of other into c. Detector
// endpoint and logging are fixed for the life of the process.
func (c *Config) Apply(other *Config) {
	other.mu.RLock()
	source, fps := other.ActiveSource, other.TargetFPS
	w, h := other.ScaledWidth, other.ScaledHeight
	local, webcam := other.Local, other.Webcam
	detectTimeout, quality := other.Detector.DetectTimeout, other.Detector.JPEGQuality
	other.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ActiveSource = source
	c.TargetFPS = fps
	c.ScaledWidth = w
	c.ScaledHeight = h
	c.Local = local
	c.Webcam = webcam
	c.Detector.DetectTimeout = detectTimeout
	c.Detector.JPEGQuality = quality
}

func NewDefaultConfig() *Config {
	return &Config{
		ActiveSource: SourceWebcam,
		Local:        LocalConfig{Path: ""},
		Webcam:       WebcamConfig{DeviceID: defaultDevice()},
		TargetFPS:    24,
		ScaledWidth:  640,
		ScaledHeight: 480,
		Detector: DetectorConfig{
			URL:           DefaultDetectorURL,
			ModelsURI:     DefaultModelsURI,
			Models:        append([]string(nil), DefaultModels...),
			JPEGQuality:   90,
			DetectTimeout: Duration{30 * time.Second},
			LoadTimeout:   Duration{60 * time.Second},
			RetryDelay:    Duration{2 * time.Second},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
