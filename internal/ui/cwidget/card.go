package cwidget

import (
	"fmt"

	"facecam/internal/ui/view"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// NewDetectionCard renders one face as a fyne card.
func NewDetectionCard(index int, c view.Card) *widget.Card {
	lines := c.Lines()
	labels := make([]fyne.CanvasObject, 0, len(lines))

	for _, line := range lines {
		labels = append(labels, widget.NewLabel(line))
	}

	return widget.NewCard(fmt.Sprintf("Face %d", index+1), "", container.NewVBox(labels...))
}
