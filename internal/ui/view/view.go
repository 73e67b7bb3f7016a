// Package view turns application state into what the front-ends display.
// Everything here is a pure function of app.State.
package view

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"facecam/internal/app"
	"facecam/internal/models"

	"github.com/dustin/go-humanize"
)

const (
	Title = "Webcam Facial Recognition"

	ButtonDetectFeed  = "Detect Faces From Feed"
	ButtonStartCamera = "Start Webcam"
	ButtonStopCamera  = "Stop Webcam"
	ButtonUpload      = "Upload Image and Detect Faces"
	ButtonChooseFile  = "Choose Image..."
	ButtonCloseModal  = "Close"

	ModalTitle = "Error"
	NoFileText = "No file chosen"
)

// Card is one detected face.
type Card struct {
	Gender   string
	Age      string
	Position string
	Size     string

	Box models.Box
}

func (c Card) Lines() []string {
	return []string{
		"Gender: " + c.Gender,
		"Age: " + c.Age,
		"Face Position: " + c.Position,
		"Face Size: " + c.Size,
	}
}

type Modal struct {
	Visible bool
	Title   string
	Message string
}

type Model struct {
	Title        string
	CameraButton string
	SelectedFile string
	Detecting    bool
	Cards        []Card
	Modal        Modal
}

func Render(s app.State) Model {
	m := Model{
		Title:        Title,
		CameraButton: ButtonStartCamera,
		SelectedFile: fileLabel(s),
		Detecting:    s.Detecting,
		Modal: Modal{
			Visible: s.ModalOpen(),
			Title:   ModalTitle,
			Message: s.ErrorMessage,
		},
	}

	if s.CameraActive {
		m.CameraButton = ButtonStopCamera
	}

	if len(s.Detections) > 0 {
		m.Cards = make([]Card, 0, len(s.Detections))
		for _, d := range s.Detections {
			m.Cards = append(m.Cards, NewCard(d))
		}
	}

	return m
}

// NewCard formats a record: age and box size rounded to whole numbers, box
// position as reported.
func NewCard(d models.DetectionRecord) Card {
	return Card{
		Gender:   d.Gender.String(),
		Age:      strconv.Itoa(Round(d.Age)),
		Position: fmt.Sprintf("(x) %s, (y) %s", raw(d.Box.X), raw(d.Box.Y)),
		Size:     fmt.Sprintf("(width) %d, (height) %d", Round(d.Box.Width), Round(d.Box.Height)),
		Box:      d.Box,
	}
}

// Round rounds half up, so 2.5 becomes 3 and -2.5 becomes -2.
func Round(v float64) int {
	return int(math.Floor(v + 0.5))
}

func raw(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fileLabel(s app.State) string {
	if !s.HasFile() {
		return NoFileText
	}

	name := filepath.Base(s.SelectedFile)
	if s.SelectedSize > 0 {
		return fmt.Sprintf("%s (%s)", name, humanize.Bytes(uint64(s.SelectedSize)))
	}
	return name
}
