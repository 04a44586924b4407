package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"testing"
)

func newTestPreprocessor() *Preprocessor {
	return NewPreprocessor(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testPNG(t *testing.T, w, h int) Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 180, B: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return NewFrame(buf.Bytes())
}

func decodeSize(t *testing.T, f Frame) (int, int) {
	t.Helper()
	w, h, err := Dimensions(f)
	if err != nil {
		t.Fatalf("dimensions: %v", err)
	}
	return w, h
}

func TestNewFrame_SniffsMIME(t *testing.T) {
	f := testPNG(t, 4, 4)
	if f.MIME != "image/png" {
		t.Errorf("expected image/png, got %s", f.MIME)
	}
	if NewFrame(nil).MIME != "" {
		t.Error("empty frame should have empty MIME")
	}
}

func TestToMachineReadable_Downscales(t *testing.T) {
	p := newTestPreprocessor()
	src := testPNG(t, 400, 200)

	out := p.ToMachineReadable(src, 100, 0.7)

	w, h := decodeSize(t, out)
	if w != 100 || h != 50 {
		t.Errorf("expected 100x50, got %dx%d", w, h)
	}
	if out.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", out.MIME)
	}
}

func TestToMachineReadable_PortraitUsesLongestSide(t *testing.T) {
	p := newTestPreprocessor()
	out := p.ToMachineReadable(testPNG(t, 150, 600), 300, 0.85)

	w, h := decodeSize(t, out)
	if w != 75 || h != 300 {
		t.Errorf("expected 75x300, got %dx%d", w, h)
	}
}

func TestToMachineReadable_NeverUpscales(t *testing.T) {
	p := newTestPreprocessor()
	src := testPNG(t, 120, 80)

	for _, maxDim := range []int{120, 121, 800, 2000} {
		out := p.ToMachineReadable(src, maxDim, 0.85)
		w, h := decodeSize(t, out)
		if w != 120 || h != 80 {
			t.Errorf("maxDim %d: expected 120x80, got %dx%d", maxDim, w, h)
		}
	}
}

func TestToMachineReadable_IsGrayscale(t *testing.T) {
	p := newTestPreprocessor()
	out := p.ToMachineReadable(testPNG(t, 32, 32), 64, 0.9)

	img, err := jpeg.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Errorf("expected grayscale output, got %T", img)
	}
}

func TestToMachineReadable_UndecodableReturnsOriginal(t *testing.T) {
	p := newTestPreprocessor()
	src := Frame{Data: []byte("definitely not an image"), MIME: "text/plain", Seq: 3}

	out := p.ToMachineReadable(src, 100, 0.5)
	if !bytes.Equal(out.Data, src.Data) || out.Seq != 3 {
		t.Error("expected original frame back on decode failure")
	}
}

func TestToMachineReadable_DoesNotMutateSource(t *testing.T) {
	p := newTestPreprocessor()
	src := testPNG(t, 50, 50)
	orig := append([]byte(nil), src.Data...)

	p.ToMachineReadable(src, 20, 0.6)

	if !bytes.Equal(src.Data, orig) {
		t.Error("source frame bytes were modified")
	}
}

func TestToDisplayable_Passthrough(t *testing.T) {
	p := newTestPreprocessor()
	src := testPNG(t, 10, 10)
	out := p.ToDisplayable(src)
	if !bytes.Equal(out.Data, src.Data) {
		t.Error("displayable frame should be identical")
	}
}

func TestToThumbnail(t *testing.T) {
	p := newTestPreprocessor()

	tests := []struct {
		name        string
		w, h, width int
		wantW       int
		wantH       int
	}{
		{"downsizes to width", 600, 400, 300, 300, 200},
		{"default width", 900, 300, 0, 300, 100},
		{"small image kept", 120, 90, 300, 120, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := p.ToThumbnail(testPNG(t, tt.w, tt.h), tt.width)
			w, h := decodeSize(t, out)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("expected %dx%d, got %dx%d", tt.wantW, tt.wantH, w, h)
			}
		})
	}
}

func TestToThumbnail_UndecodableReturnsOriginal(t *testing.T) {
	p := newTestPreprocessor()
	src := Frame{Data: []byte{0x00, 0x01}}
	if out := p.ToThumbnail(src, 300); !bytes.Equal(out.Data, src.Data) {
		t.Error("expected original frame back")
	}
}

func TestJPEGQuality(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0.85, 85},
		{0.6, 60},
		{0, 1},
		{-1, 1},
		{1.5, 100},
	}
	for _, tt := range tests {
		if got := jpegQuality(tt.in); got != tt.want {
			t.Errorf("jpegQuality(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestOCRFilter(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.RGBA{0, 0, 0, 255})
	img.Set(1, 0, color.RGBA{128, 128, 128, 255})
	img.Set(2, 0, color.RGBA{255, 255, 255, 255})

	out := ocrFilter(img)

	if got := out.GrayAt(0, 0).Y; got != 0 {
		t.Errorf("black should stay 0, got %d", got)
	}
	if got := out.GrayAt(1, 0).Y; got != 141 {
		t.Errorf("mid grey should lift to 141, got %d", got)
	}
	if got := out.GrayAt(2, 0).Y; got != 255 {
		t.Errorf("white should clamp to 255, got %d", got)
	}
}
