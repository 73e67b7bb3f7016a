package app

import (
	"image"

	"facecam/internal/models"
)

// User-visible error messages shown in the error modal.
const (
	MsgNoFeed          = "No video feed available."
	MsgNoFaces         = "No faces detected."
	MsgNoFacesInUpload = "No faces detected in the uploaded image."
	MsgDetectionFailed = "Face detection failed."
)

// Source tells which entry point produced a detection.
type Source int

const (
	SourceFeed Source = iota
	SourceUpload
)

func (s Source) String() string {
	if s == SourceUpload {
		return "upload"
	}
	return "feed"
}

// State is the whole UI state. It is treated as a value: Update returns a
// new State and never mutates slices it received.
type State struct {
	SelectedFile string
	SelectedSize int64

	Detections []models.DetectionRecord

	// Frame is the image Detections refer to.
	Frame image.Image

	CameraActive bool
	ErrorMessage string

	// CameraSwitch numbers camera toggles; only the newest reaches the
	// device.
	CameraSwitch uint64

	// Generation numbers detection requests; only the newest may land.
	Generation uint64
	Detecting  bool
}

// ModalOpen is derived from the message so the two cannot disagree.
func (s State) ModalOpen() bool {
	return s.ErrorMessage != ""
}

func (s State) HasFile() bool {
	return s.SelectedFile != ""
}
