package capture

import (
	"errors"
	"image"
	"sync"
	"time"

	"facecam/internal/config"

	"github.com/sirupsen/logrus"
)

var ErrNoFeed = errors.New("no video feed available")

// Manager owns the live feed. It is either off or running a streamer built
// from the current config, and keeps the most recent frame as the input for
// feed detection.
type Manager struct {
	cfg     *config.Config
	factory StreamerFactory
	log     *logrus.Entry

	// switchMu serialises SetActive; mu guards the fields below.
	switchMu sync.Mutex
	mu       sync.RWMutex

	active    bool
	streamer  VideoStreamer
	stopChan  chan struct{}
	lastFrame image.Image
	fps       uint

	preview chan image.Image
}

func NewManager(cfg *config.Config, factory StreamerFactory, log *logrus.Entry) *Manager {
	if factory == nil {
		factory = NewStreamer
	}

	return &Manager{
		cfg:     cfg,
		factory: factory,
		log:     log,
		preview: make(chan image.Image, 1),
	}
}

// Preview delivers frames for display. Frames are dropped while nobody reads.
func (m *Manager) Preview() <-chan image.Image {
	return m.preview
}

func (m *Manager) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

func (m *Manager) FPS() uint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fps
}

// CurrentFrame returns the latest frame of the live feed.
func (m *Manager) CurrentFrame() (image.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.active || m.lastFrame == nil {
		return nil, ErrNoFeed
	}
	return m.lastFrame, nil
}

// SetActive starts or stops the feed. A streamer that fails to start leaves
// the manager active with no frames, so detection reports ErrNoFeed.
func (m *Manager) SetActive(on bool) error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	if m.active == on {
		m.mu.Unlock()
		return nil
	}
	m.active = on

	if !on {
		streamer, stop := m.streamer, m.stopChan
		m.streamer, m.stopChan = nil, nil
		m.lastFrame = nil
		m.fps = 0
		if stop != nil {
			close(stop)
		}
		m.mu.Unlock()

		if streamer != nil {
			streamer.Stop()
		}
		m.log.Info("camera stopped")
		return nil
	}
	m.mu.Unlock()

	streamer, err := m.factory(m.cfg)
	if err != nil {
		m.log.WithError(err).Warn("camera unavailable")
		return err
	}

	if err := streamer.Start(); err != nil {
		m.log.WithError(err).Warn("camera failed to start")
		return err
	}

	stop := make(chan struct{})

	m.mu.Lock()
	m.streamer = streamer
	m.stopChan = stop
	m.mu.Unlock()

	go m.consume(streamer, stop)

	m.log.WithField("source", m.cfg.GetSource()).Info("camera started")
	return nil
}

// Close stops the feed.
func (m *Manager) Close() {
	_ = m.SetActive(false)
}

func (m *Manager) consume(streamer VideoStreamer, stop <-chan struct{}) {
	frames := streamer.FrameChan()
	errs := streamer.ErrorChan()

	var frameCount uint
	lastFpsUpdate := time.Now()

	for {
		select {
		case <-stop:
			return

		case frame, ok := <-frames:
			if !ok {
				return
			}
			if frame == nil {
				continue
			}

			frameCount++
			elapsed := time.Since(lastFpsUpdate)

			m.mu.Lock()
			select {
			case <-stop:
				m.mu.Unlock()
				return
			default:
			}
			m.lastFrame = frame
			if elapsed >= time.Second {
				m.fps = frameCount
				frameCount = 0
				lastFpsUpdate = time.Now()
			}
			m.mu.Unlock()

			select {
			case m.preview <- frame:
			default:
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.log.WithError(err).Error("camera stream failed")

			m.mu.Lock()
			select {
			case <-stop:
			default:
				m.lastFrame = nil
			}
			m.mu.Unlock()
			return
		}
	}
}
