package capture

import (
	"fmt"
	"image"
	"io"
	"os/exec"
	"time"
)

const bytesPerPixel = 4

func rawVideoArgs(fps uint, width, height int) []string {
	return []string{
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", fps, width, height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	}
}

// pipeReader turns ffmpeg's raw RGBA output into frames.
type pipeReader struct {
	width, height int

	// pace is the minimum interval between frames; zero reads as fast as
	// ffmpeg produces them.
	pace time.Duration

	// block makes sends wait for the receiver instead of dropping frames.
	block bool
}

func (r pipeReader) run(stdout io.Reader, frames chan<- image.Image, errs chan<- error, stop <-chan struct{}) {
	frameSize := r.width * r.height * bytesPerPixel
	buffer := make([]byte, frameSize)

	var tick <-chan time.Time
	if r.pace > 0 {
		ticker := time.NewTicker(r.pace)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-stop:
				return
			case <-tick:
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
		}

		if _, err := io.ReadFull(stdout, buffer); err != nil {
			select {
			case <-stop:
			default:
				errs <- fmt.Errorf("read frame: %w", err)
			}
			return
		}

		pixelData := make([]byte, len(buffer))
		copy(pixelData, buffer)

		img := &image.RGBA{
			Pix:    pixelData,
			Stride: r.width * bytesPerPixel,
			Rect:   image.Rect(0, 0, r.width, r.height),
		}

		if r.block {
			select {
			case frames <- img:
			case <-stop:
				return
			}
			continue
		}

		select {
		case frames <- img:
		default:
		}
	}
}

func killProcess(cmd *exec.Cmd) {
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
}
