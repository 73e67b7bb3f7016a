package app

import (
	"image"

	"facecam/internal/models"
)

// Msg is any event fed into Update.
type Msg interface{}

// Cmd performs a side effect off the update path and reports back with a
// Msg. A nil result ends the chain.
type Cmd func() Msg

// User actions.
type (
	DetectFeedRequested struct{}
	UploadRequested     struct{}
	CameraToggled       struct{}
	ModalClosed         struct{}

	FileSelected struct {
		Path string
		Size int64
	}
)

// Results of commands.
type (
	FrameCaptured struct {
		Frame image.Image
	}

	FeedUnavailable struct {
		Err error
	}

	ImageDecoded struct {
		Path  string
		Image image.Image
	}

	ImageDecodeFailed struct {
		Path string
		Err  error
	}

	DetectionFinished struct {
		Generation uint64
		Source     Source
		Frame      image.Image
		Records    []models.DetectionRecord
		Err        error
	}

	CameraSwitched struct {
		Active bool
		Err    error
	}
)
