package capture

import (
	"fmt"

	"facecam/internal/config"
)

// StreamerFactory builds the live feed for the configured source.
type StreamerFactory func(cfg *config.Config) (VideoStreamer, error)

func NewStreamer(cfg *config.Config) (VideoStreamer, error) {
	switch cfg.GetSource() {
	case config.SourceWebcam:
		return NewFFmpegWebcam(cfg.GetDeviceID(), cfg.GetFPS(), cfg.GetWidth(), cfg.GetHeight()), nil
	case config.SourceLocal:
		return NewLocalStreamer(cfg.GetLocalPath(), cfg.GetFPS(), cfg.GetWidth(), cfg.GetHeight())
	default:
		return nil, fmt.Errorf("unknown capture source: %s", cfg.GetSource())
	}
}
