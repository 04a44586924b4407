package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	_ "golang.org/x/image/webp"
)

// MaxPixels bounds the decoded size of any frame. A small compressed file
// can declare enormous dimensions, so the header is checked first.
const MaxPixels = 40_000_000

var ErrTooLarge = errors.New("image too large")

// Frame is an encoded still image. Frames are never mutated in place;
// every transformation returns a new Frame.
type Frame struct {
	Data []byte
	MIME string
	Seq  int
}

func NewFrame(data []byte) Frame {
	return Frame{Data: data, MIME: sniff(data)}
}

func (f Frame) Empty() bool {
	return len(f.Data) == 0
}

func sniff(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return http.DetectContentType(data)
}

func Decode(f Frame) (image.Image, error) {
	if f.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	if _, _, err := Dimensions(f); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Dimensions reads only the image header. Frames over MaxPixels return
// ErrTooLarge.
func Dimensions(f Frame) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode config: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return 0, 0, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}

func EncodeJPEG(img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

func jpegQuality(q float64) int {
	v := int(q*100 + 0.5)
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}
