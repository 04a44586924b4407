package imaging

import (
	"image"
	"log/slog"

	"golang.org/x/image/draw"
)

const (
	DefaultThumbnailWidth   = 300
	DefaultThumbnailQuality = 0.6
)

type Preprocessor struct {
	logger *slog.Logger
}

func NewPreprocessor(logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{logger: logger.With("component", "preprocessor")}
}

// ToMachineReadable returns a grayscale, contrast-boosted JPEG whose longest
// side is at most maxDimension. Frames are never upscaled. On any decoding
// or encoding failure the source frame is returned unchanged.
func (p *Preprocessor) ToMachineReadable(f Frame, maxDimension int, quality float64) Frame {
	img, err := Decode(f)
	if err != nil {
		p.logger.Debug("machine readable: decode failed, using original", "error", err)
		return f
	}

	img = fitWithin(img, maxDimension, draw.CatmullRom)
	data, err := EncodeJPEG(ocrFilter(img), quality)
	if err != nil {
		p.logger.Debug("machine readable: encode failed, using original", "error", err)
		return f
	}

	return Frame{Data: data, MIME: "image/jpeg", Seq: f.Seq}
}

// ToDisplayable is a passthrough so the preview stays responsive.
func (p *Preprocessor) ToDisplayable(f Frame) Frame {
	return f
}

func (p *Preprocessor) ToThumbnail(f Frame, targetWidth int) Frame {
	if targetWidth <= 0 {
		targetWidth = DefaultThumbnailWidth
	}

	img, err := Decode(f)
	if err != nil {
		p.logger.Debug("thumbnail: decode failed, using original", "error", err)
		return f
	}

	b := img.Bounds()
	if b.Dx() > targetWidth {
		h := max(1, b.Dy()*targetWidth/b.Dx())
		img = scale(img, targetWidth, h, draw.ApproxBiLinear)
	}

	data, err := EncodeJPEG(img, DefaultThumbnailQuality)
	if err != nil {
		p.logger.Debug("thumbnail: encode failed, using original", "error", err)
		return f
	}

	return Frame{Data: data, MIME: "image/jpeg", Seq: f.Seq}
}

func fitWithin(img image.Image, maxDimension int, interp draw.Interpolator) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if maxDimension <= 0 || longest <= maxDimension {
		return img
	}

	ratio := float64(maxDimension) / float64(longest)
	nw := max(1, int(float64(w)*ratio+0.5))
	nh := max(1, int(float64(h)*ratio+0.5))
	return scale(img, nw, nh, interp)
}

func scale(img image.Image, w, h int, interp draw.Interpolator) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	interp.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
