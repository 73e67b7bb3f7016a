package cli

import (
	"context"

	"facecam/internal/app"
	"facecam/internal/config"
	"facecam/pkg/log"
	"facecam/processing/capture"
	processing "facecam/processing/detector"
)

// session wires the detector, model loader, capture manager and store that
// every front-end shares.
type session struct {
	cfg      *config.Config
	detector *processing.RemoteDetector
	loader   *processing.Loader
	camera   *capture.Manager
	store    *app.Store
}

func newSession(cfg *config.Config) *session {
	det := processing.NewRemoteDetector(cfg.Detector.URL,
		processing.WithRetryDelay(cfg.Detector.RetryDelay.Duration),
		processing.WithJPEGQuality(cfg.GetJPEGQuality),
		processing.WithLogger(log.Component("detector")),
	)

	loader := processing.NewLoader(det,
		cfg.Detector.ModelsURI,
		cfg.Detector.Models,
		cfg.Detector.LoadTimeout.Duration,
		log.Component("models"),
	)

	camera := capture.NewManager(cfg, nil, log.Component("capture"))

	workflow := app.NewWorkflow(camera, det, capture.OpenImage, cfg.GetDetectTimeout, log.Component("workflow"))

	return &session{
		cfg:      cfg,
		detector: det,
		loader:   loader,
		camera:   camera,
		store:    app.NewStore(workflow, app.State{}),
	}
}

func (s *session) start() {
	s.detector.Start()
}

// loadModelsAsync starts the one-time model load. Failures are logged by
// the loader and otherwise ignored.
func (s *session) loadModelsAsync(ctx context.Context) {
	go func() {
		_ = s.loader.Load(ctx)
	}()
}

// watchConfig applies on-disk config edits until ctx is done.
func (s *session) watchConfig(ctx context.Context, path string) {
	logger := log.Component("config")

	go func() {
		err := config.Watch(ctx, path, logger, func(next *config.Config) {
			s.cfg.Apply(next)
		})
		if err != nil {
			logger.WithError(err).Warn("config watch stopped")
		}
	}()
}

func (s *session) close() {
	s.camera.Close()
	s.detector.Stop()
}
