package view

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"facecam/internal/models"
)

var (
	boxColor      = color.RGBA{0, 255, 0, 255}
	landmarkColor = color.RGBA{255, 64, 64, 255}
)

const boxThickness = 3

// maxPixel bounds converted coordinates so that box arithmetic cannot
// overflow int.
const maxPixel = 1 << 24

// Annotate returns a copy of frame with every detection's box and landmarks
// drawn on it. frame itself is left untouched. Boxes and landmarks with
// non-finite coordinates are skipped.
func Annotate(frame image.Image, detections []models.DetectionRecord) *image.RGBA {
	if frame == nil {
		return nil
	}

	bounds := frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame, bounds.Min, draw.Src)

	for _, d := range detections {
		b := d.Box
		if b.Empty() || !finite(b.X, b.Y, b.Width, b.Height) {
			continue
		}
		x1 := bounds.Min.X + pixel(b.X)
		y1 := bounds.Min.Y + pixel(b.Y)
		x2 := x1 + pixel(b.Width)
		y2 := y1 + pixel(b.Height)

		drawRect(out, x1, y1, x2, y2, boxColor)

		for _, p := range d.Landmarks {
			if !finite(p.X, p.Y) {
				continue
			}
			drawDot(out, bounds.Min.X+pixel(p.X), bounds.Min.Y+pixel(p.Y), landmarkColor)
		}
	}

	return out
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func pixel(v float64) int {
	return Round(math.Max(-maxPixel, math.Min(maxPixel, v)))
}

// drawRect strokes the rectangle with corners (x1, y1) and (x2, y2). Work is
// limited to the part of each edge that lies inside img.
func drawRect(img *image.RGBA, x1, y1, x2, y2 int, col color.RGBA) {
	for t := 0; t < boxThickness; t++ {
		hline(img, x1, x2, y1+t, col)
		hline(img, x1, x2, y2-t, col)
		vline(img, x1+t, y1, y2, col)
		vline(img, x2-t, y1, y2, col)
	}
}

func hline(img *image.RGBA, x1, x2, y int, col color.RGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for x := max(x1, b.Min.X); x <= min(x2, b.Max.X-1); x++ {
		img.SetRGBA(x, y, col)
	}
}

func vline(img *image.RGBA, x, y1, y2 int, col color.RGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	for y := max(y1, b.Min.Y); y <= min(y2, b.Max.Y-1); y++ {
		img.SetRGBA(x, y, col)
	}
}

func drawDot(img *image.RGBA, x, y int, col color.RGBA) {
	b := img.Bounds()
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if (image.Point{x + dx, y + dy}).In(b) {
				img.SetRGBA(x+dx, y+dy, col)
			}
		}
	}
}
