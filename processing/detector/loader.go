package processing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ModelLoaderAPI is the part of the inference pipeline that loads weights.
type ModelLoaderAPI interface {
	LoadModel(ctx context.Context, model, baseURI string) error
}

// Loader brings the pipeline's model bundles into memory once at start-up.
type Loader struct {
	api     ModelLoaderAPI
	baseURI string
	models  []string
	timeout time.Duration
	log     *logrus.Entry

	ready atomic.Bool
}

func NewLoader(api ModelLoaderAPI, baseURI string, models []string, timeout time.Duration, log *logrus.Entry) *Loader {
	return &Loader{
		api:     api,
		baseURI: baseURI,
		models:  append([]string(nil), models...),
		timeout: timeout,
		log:     log,
	}
}

// Ready reports whether every model loaded.
func (l *Loader) Ready() bool {
	return l.ready.Load()
}

// Load requests the models one after another and stops at the first
// failure. Failures are logged here; callers are not expected to surface
// them.
func (l *Loader) Load(ctx context.Context) error {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	for _, model := range l.models {
		start := time.Now()

		if err := l.api.LoadModel(ctx, model, l.baseURI); err != nil {
			l.log.WithError(err).WithField("model", model).Error("error loading models")
			return fmt.Errorf("load model %s: %w", model, err)
		}

		l.log.WithFields(logrus.Fields{
			"model":    model,
			"duration": time.Since(start).Round(time.Millisecond),
		}).Debug("model loaded")
	}

	l.ready.Store(true)
	l.log.WithField("count", len(l.models)).Info("models loaded successfully")

	return nil
}
