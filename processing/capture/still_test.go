package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImagePNG(t *testing.T) {
	img, err := DecodeImage(bytes.NewReader(pngBytes(t, 12, 7)))
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 7, img.Bounds().Dy())
}

func TestDecodeImageRejectsNonImages(t *testing.T) {
	tests := map[string][]byte{
		"text":  []byte("this is a plain text file, not a picture"),
		"empty": {},
		"pdf":   []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<< /Type /Catalog >>\nendobj\n"),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeImage(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrUnsupportedImage)
		})
	}
}

func TestDecodeImageCorruptBody(t *testing.T) {
	data := pngBytes(t, 4, 4)
	_, err := DecodeImage(bytes.NewReader(data[:40]))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupportedImage)
}

func TestOpenImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 5, 5), 0o644))

	img, err := OpenImage(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 5), img.Bounds())

	_, err = OpenImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = OpenImage("")
	assert.Error(t, err)
}

func TestParseProbeOutput(t *testing.T) {
	w, h, err := parseProbeOutput([]byte(`{"programs": [], "streams": [{"width": 1920, "height": 1080}]}`))
	require.NoError(t, err)
	assert.Equal(t, uint16(1920), w)
	assert.Equal(t, uint16(1080), h)

	_, _, err = parseProbeOutput([]byte(`{"streams": []}`))
	assert.Error(t, err)

	_, _, err = parseProbeOutput([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseDshowDevices(t *testing.T) {
	output := `[dshow @ 000001] "Integrated Camera" (video)
[dshow @ 000001]   Alternative name "@device_pnp_\\?\usb#vid_04f2"
[dshow @ 000001] "Microphone Array" (audio)
[dshow @ 000001] "OBS Virtual Camera" (video)
[dshow @ 000001] "Integrated Camera" (video)
dummy: Immediate exit requested`

	assert.Equal(t, []string{"Integrated Camera", "OBS Virtual Camera"}, parseDshowDevices(output))
	assert.Empty(t, parseDshowDevices(""))
}

func TestRawVideoArgs(t *testing.T) {
	args := strings.Join(rawVideoArgs(15, 320, 240), " ")
	assert.Equal(t, "-vf fps=15,scale=320:240 -f image2pipe -pix_fmt rgba -vcodec rawvideo -", args)
}

func TestPipeReaderSplitsFrames(t *testing.T) {
	const w, h = 2, 2
	frameSize := w * h * bytesPerPixel

	raw := make([]byte, 2*frameSize)
	raw[0] = 11
	raw[frameSize] = 22

	frames := make(chan image.Image)
	errs := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go pipeReader{width: w, height: h, block: true}.run(bytes.NewReader(raw), frames, errs, stop)

	for _, want := range []uint8{11, 22} {
		select {
		case img := <-frames:
			rgba, ok := img.(*image.RGBA)
			require.True(t, ok)
			assert.Equal(t, image.Rect(0, 0, w, h), rgba.Bounds())
			assert.Equal(t, want, rgba.Pix[0])
		case <-time.After(time.Second):
			t.Fatal("frame not delivered")
		}
	}

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("EOF not reported")
	}
}
