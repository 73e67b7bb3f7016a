package capture

import (
	"encoding/json"
	"fmt"
	"image"
	"os/exec"
	"sync"
	"time"
)

const defaultFPS uint = 30

// LocalFileStreamer plays a video file as if it were a live camera, paced
// to the target frame rate.
type LocalFileStreamer struct {
	stopOnce sync.Once

	path      string
	targetFPS uint

	width  int
	height int

	sourceWidth  uint16
	sourceHeight uint16

	cmd       *exec.Cmd
	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

func NewLocalStreamer(path string, targetFPS uint, scaledWidth int, scaledHeight int) (*LocalFileStreamer, error) {
	if path == "" {
		return nil, fmt.Errorf("no video file configured")
	}

	w, h, err := probeVideoDimensions(path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}

	if targetFPS == 0 {
		targetFPS = defaultFPS
	}

	return &LocalFileStreamer{
		path:         path,
		targetFPS:    targetFPS,
		sourceWidth:  w,
		sourceHeight: h,
		width:        scaledWidth,
		height:       scaledHeight,
		frameChan:    make(chan image.Image, 10),
		errChan:      make(chan error, 1),
		stopChan:     make(chan struct{}),
	}, nil
}

// SourceSize reports the probed dimensions of the file before scaling.
func (ls *LocalFileStreamer) SourceSize() (int, int) {
	return int(ls.sourceWidth), int(ls.sourceHeight)
}

func (ls *LocalFileStreamer) Start() error {
	args := append([]string{"-i", ls.path}, rawVideoArgs(ls.targetFPS, ls.width, ls.height)...)
	ls.cmd = exec.Command("ffmpeg", args...)

	stdout, err := ls.cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := ls.cmd.Start(); err != nil {
		return err
	}

	reader := pipeReader{
		width:  ls.width,
		height: ls.height,
		pace:   time.Second / time.Duration(ls.targetFPS),
		block:  true,
	}

	go func() {
		defer close(ls.frameChan)
		defer close(ls.errChan)
		defer stdout.Close()
		defer killProcess(ls.cmd)

		reader.run(stdout, ls.frameChan, ls.errChan, ls.stopChan)
	}()

	return nil
}

func (ls *LocalFileStreamer) Stop() {
	ls.stopOnce.Do(func() {
		close(ls.stopChan)
		killProcess(ls.cmd)
	})
}

func (ls *LocalFileStreamer) FrameChan() <-chan image.Image {
	return ls.frameChan
}

func (ls *LocalFileStreamer) ErrorChan() <-chan error {
	return ls.errChan
}

type probeData struct {
	Streams []struct {
		Width  uint16 `json:"width"`
		Height uint16 `json:"height"`
	} `json:"streams"`
}

func probeVideoDimensions(path string) (uint16, uint16, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, 0, err
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (uint16, uint16, error) {
	var data probeData
	if err := json.Unmarshal(output, &data); err != nil {
		return 0, 0, err
	}

	if len(data.Streams) == 0 {
		return 0, 0, fmt.Errorf("no video streams found")
	}

	return data.Streams[0].Width, data.Streams[0].Height, nil
}
