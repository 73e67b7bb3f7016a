package capture

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedImage = errors.New("unsupported image format")

// headerSize covers every signature filetype matches on.
const headerSize = 261

// OpenImage decodes a still image from disk, honouring EXIF orientation.
func OpenImage(fileName string) (image.Image, error) {
	if fileName == "" {
		return nil, fmt.Errorf("filename missing")
	}

	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeImage(f)
}

// DecodeImage sniffs r and decodes it when it holds a supported image.
func DecodeImage(r io.ReadSeeker) (image.Image, error) {
	head := make([]byte, headerSize)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return nil, ErrUnsupportedImage
		}
		return nil, err
	}

	kind, _ := filetype.Match(head[:n])
	if !filetype.IsImage(head[:n]) || !decodable(kind.MIME.Value) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, kind.MIME.Value)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	return img, nil
}

func decodable(mime string) bool {
	switch mime {
	case "image/jpeg", "image/png", "image/gif", "image/bmp", "image/tiff", "image/webp":
		return true
	default:
		return false
	}
}
