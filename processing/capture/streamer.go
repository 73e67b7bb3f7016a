package capture

import (
	"image"
)

// VideoStreamer produces a live sequence of frames. Frames are fresh
// allocations and may be retained by the receiver.
type VideoStreamer interface {
	Start() error
	Stop()
	FrameChan() <-chan image.Image
	ErrorChan() <-chan error
}
