package imaging

import (
	"image"
	"image/color"
)

const (
	ocrContrast   = 1.5
	ocrBrightness = 1.1
)

// ocrFilter flattens colour, boosts contrast around mid grey and lifts
// brightness slightly. The output is the same for every frame so that
// retries and reprocessing are reproducible.
func ocrFilter(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			luma := (299*float64(r>>8) + 587*float64(g>>8) + 114*float64(bl>>8)) / 1000
			v := ((luma-128)*ocrContrast + 128) * ocrBrightness
			dst.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: clamp8(v)})
		}
	}
	return dst
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
