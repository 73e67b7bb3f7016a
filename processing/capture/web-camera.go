package capture

import (
	"bytes"
	"fmt"
	"image"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"sync"
)

// FFmpegWebcamStreamer reads a camera through ffmpeg (v4l2 or dshow). Audio
// is never requested.
type FFmpegWebcamStreamer struct {
	stopOnce sync.Once

	deviceName string
	width      int
	height     int
	targetFPS  uint

	cmd       *exec.Cmd
	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

func NewFFmpegWebcam(deviceName string, targetFps uint, scaledWidth int, scaledHeight int) *FFmpegWebcamStreamer {
	return &FFmpegWebcamStreamer{
		deviceName: deviceName,
		width:      scaledWidth,
		height:     scaledHeight,
		targetFPS:  targetFps,

		frameChan: make(chan image.Image),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

func webcamInputArgs(device string) []string {
	if runtime.GOOS == "windows" {
		return []string{"-f", "dshow", "-i", fmt.Sprintf("video=%s", device)}
	}
	return []string{"-f", "v4l2", "-i", device}
}

func (ws *FFmpegWebcamStreamer) Start() error {
	if ws.deviceName == "" {
		return fmt.Errorf("no camera device configured")
	}

	args := append(webcamInputArgs(ws.deviceName), rawVideoArgs(ws.targetFPS, ws.width, ws.height)...)
	ws.cmd = exec.Command("ffmpeg", args...)

	var stderr bytes.Buffer
	ws.cmd.Stderr = &stderr

	stdout, err := ws.cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := ws.cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w. Details: %s", err, stderr.String())
	}

	go func() {
		defer close(ws.frameChan)
		defer close(ws.errChan)
		defer stdout.Close()
		defer killProcess(ws.cmd)

		pipeReader{width: ws.width, height: ws.height}.run(stdout, ws.frameChan, ws.errChan, ws.stopChan)
	}()

	return nil
}

func (ws *FFmpegWebcamStreamer) Stop() {
	ws.stopOnce.Do(func() {
		close(ws.stopChan)
		killProcess(ws.cmd)
	})
}

func (ws *FFmpegWebcamStreamer) FrameChan() <-chan image.Image { return ws.frameChan }
func (ws *FFmpegWebcamStreamer) ErrorChan() <-chan error       { return ws.errChan }

var dshowDeviceRe = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

// ListCameras returns the capture devices ffmpeg can open on this platform.
func ListCameras() ([]string, error) {
	if runtime.GOOS != "windows" {
		devices, err := filepath.Glob("/dev/video*")
		if err != nil {
			return nil, err
		}
		sort.Strings(devices)
		return devices, nil
	}

	cmd := exec.Command("ffmpeg", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// ffmpeg exits non-zero after listing; the listing is on stderr.
	_ = cmd.Run()

	return parseDshowDevices(stderr.String()), nil
}

func parseDshowDevices(output string) []string {
	var cameras []string
	seen := make(map[string]bool)

	for _, m := range dshowDeviceRe.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			cameras = append(cameras, name)
			seen[name] = true
		}
	}

	return cameras
}
