package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
)

type fakeStream struct {
	mu       sync.Mutex
	caps     Capabilities
	settings Settings
	photo    []byte
	photoErr error
	frame    image.Image
	applied  []Constraints
	applyErr error
	closed   bool
}

func (s *fakeStream) Capabilities() Capabilities { return s.caps }

func (s *fakeStream) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *fakeStream) Apply(ctx context.Context, c Constraints) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applied = append(s.applied, c)
	return nil
}

func (s *fakeStream) TakePhoto(ctx context.Context) ([]byte, error) {
	if s.photoErr != nil {
		return nil, s.photoErr
	}
	return s.photo, nil
}

func (s *fakeStream) GrabFrame(ctx context.Context) (image.Image, error) {
	if s.frame == nil {
		return nil, errors.New("no frame")
	}
	return s.frame, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeDevice struct {
	mu      sync.Mutex
	newFn   func() *fakeStream
	openErr error
	streams []*fakeStream
	opens   []Constraints
}

func (d *fakeDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens = append(d.opens, c)
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := d.newFn()
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opens)
}

func (d *fakeDevice) last() *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[len(d.streams)-1]
}

type fakePermission struct{ err error }

func (p fakePermission) Request(ctx context.Context) error { return p.err }

type fakePicker struct {
	data []byte
	err  error
}

func (p fakePicker) Pick(ctx context.Context) ([]byte, error) { return p.data, p.err }

func grayFrame(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.SetGray(x, h/2, color.Gray{Y: 255})
	}
	return img
}

// waitingPicker stays open until its context ends, like a user who never
// takes the photo.
type waitingPicker struct{ opened chan struct{} }

func (p waitingPicker) Pick(ctx context.Context) ([]byte, error) {
	close(p.opened)
	<-ctx.Done()
	return nil, ctx.Err()
}
