package app

import (
	"context"
	"fmt"
	"image"
	"runtime/debug"
	"sync"
	"time"

	"facecam/internal/models"

	"github.com/sirupsen/logrus"
)

// FrameSource is the live capture feed.
type FrameSource interface {
	CurrentFrame() (image.Image, error)
	SetActive(on bool) error
}

// Pipeline is the external inference pipeline: face detection, landmarks,
// then age and gender.
type Pipeline interface {
	DetectAll(ctx context.Context, img image.Image) ([]models.DetectionRecord, error)
}

// ImageOpener decodes a still image from a path.
type ImageOpener func(path string) (image.Image, error)

// Workflow holds the collaborators Update needs to build commands. Update
// itself only computes the next state.
type Workflow struct {
	camera    FrameSource
	pipeline  Pipeline
	openImage ImageOpener
	timeout   func() time.Duration
	log       *logrus.Entry

	// switched is the CameraSwitch last applied to the device.
	switchMu sync.Mutex
	switched uint64
}

func NewWorkflow(camera FrameSource, pipeline Pipeline, openImage ImageOpener, timeout func() time.Duration, log *logrus.Entry) *Workflow {
	if timeout == nil {
		timeout = func() time.Duration { return 0 }
	}

	return &Workflow{
		camera:    camera,
		pipeline:  pipeline,
		openImage: openImage,
		timeout:   timeout,
		log:       log,
	}
}

func (w *Workflow) Update(s State, msg Msg) (State, Cmd) {
	switch msg := msg.(type) {
	case DetectFeedRequested:
		return s, w.captureFrame

	case FeedUnavailable:
		w.log.WithError(msg.Err).Debug("feed detection without a frame")
		s.ErrorMessage = MsgNoFeed
		return s, nil

	case FrameCaptured:
		return w.startDetection(s, SourceFeed, msg.Frame)

	case FileSelected:
		s.SelectedFile = msg.Path
		s.SelectedSize = msg.Size
		return s, nil

	case UploadRequested:
		if !s.HasFile() {
			return s, nil
		}
		return s, w.decode(s.SelectedFile)

	case ImageDecoded:
		if msg.Path != s.SelectedFile {
			w.log.WithField("path", msg.Path).Debug("decoded image is no longer selected")
		}
		return w.startDetection(s, SourceUpload, msg.Image)

	case ImageDecodeFailed:
		w.log.WithError(msg.Err).WithField("path", msg.Path).Warn("image decode failed")
		s.ErrorMessage = MsgDetectionFailed
		return s, nil

	case DetectionFinished:
		return w.finishDetection(s, msg), nil

	case CameraToggled:
		s.CameraActive = !s.CameraActive
		s.CameraSwitch++
		return s, w.switchCamera(s.CameraSwitch, s.CameraActive)

	case CameraSwitched:
		if msg.Err != nil {
			w.log.WithError(msg.Err).WithField("active", msg.Active).Warn("camera switch failed")
		}
		return s, nil

	case ModalClosed:
		s.ErrorMessage = ""
		return s, nil
	}

	return s, nil
}

func (w *Workflow) startDetection(s State, source Source, frame image.Image) (State, Cmd) {
	s.Generation++
	s.Detections = nil
	s.Frame = nil
	s.Detecting = true

	gen := s.Generation

	return s, func() Msg {
		return w.runPipeline(gen, source, frame)
	}
}

func (w *Workflow) finishDetection(s State, msg DetectionFinished) State {
	if msg.Generation != s.Generation {
		w.log.WithFields(logrus.Fields{
			"generation": msg.Generation,
			"current":    s.Generation,
		}).Debug("stale detection result discarded")
		return s
	}

	s.Detecting = false

	switch {
	case msg.Err != nil:
		w.log.WithError(msg.Err).WithField("source", msg.Source).Warn("face detection failed")
		s.Detections = nil
		s.Frame = nil
		s.ErrorMessage = MsgDetectionFailed

	case len(msg.Records) == 0:
		s.Detections = nil
		s.Frame = nil
		if msg.Source == SourceUpload {
			s.ErrorMessage = MsgNoFacesInUpload
		} else {
			s.ErrorMessage = MsgNoFaces
		}

	default:
		s.Detections = msg.Records
		s.Frame = msg.Frame
	}

	return s
}

func (w *Workflow) captureFrame() Msg {
	frame, err := w.camera.CurrentFrame()
	if err != nil {
		return FeedUnavailable{Err: err}
	}
	return FrameCaptured{Frame: frame}
}

func (w *Workflow) decode(path string) Cmd {
	return func() Msg {
		img, err := w.openImage(path)
		if err != nil {
			return ImageDecodeFailed{Path: path, Err: err}
		}
		return ImageDecoded{Path: path, Image: img}
	}
}

// switchCamera applies toggles in order. Commands run on their own
// goroutines, so a switch that lost the race to a newer one is dropped
// instead of overriding it.
func (w *Workflow) switchCamera(seq uint64, on bool) Cmd {
	return func() Msg {
		w.switchMu.Lock()
		defer w.switchMu.Unlock()

		if seq <= w.switched {
			w.log.WithFields(logrus.Fields{
				"switch":  seq,
				"applied": w.switched,
			}).Debug("stale camera switch dropped")
			return nil
		}
		w.switched = seq

		return CameraSwitched{Active: on, Err: w.camera.SetActive(on)}
	}
}

func (w *Workflow) runPipeline(gen uint64, source Source, frame image.Image) (msg DetectionFinished) {
	msg = DetectionFinished{Generation: gen, Source: source, Frame: frame}

	defer func() {
		if r := recover(); r != nil {
			msg.Records = nil
			msg.Err = fmt.Errorf("pipeline panic: %v", r)
			w.log.Errorf("pipeline: %s (panic)\nstack: %s", r, debug.Stack())
		}
	}()

	ctx := context.Background()
	if d := w.timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	start := time.Now()
	msg.Records, msg.Err = w.pipeline.DetectAll(ctx, frame)

	w.log.WithFields(logrus.Fields{
		"source":     source,
		"generation": gen,
		"faces":      len(msg.Records),
		"duration":   time.Since(start).Round(time.Millisecond),
	}).Debug("pipeline finished")

	return msg
}
