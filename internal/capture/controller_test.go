package capture

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eleven-am/label-scan/internal/shared"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func richStream() *fakeStream {
	return &fakeStream{
		caps: Capabilities{
			Torch:         true,
			Zoom:          true,
			MinZoom:       1,
			MaxZoom:       5,
			FocusModes:    []string{"manual", ModeContinuous},
			ExposureModes: []string{ModeContinuous},
		},
		settings: Settings{Width: 1920, Height: 1080, Zoom: 1},
		photo:    []byte("photo-bytes"),
	}
}

func basicStream() *fakeStream {
	return &fakeStream{
		settings: Settings{Width: 640, Height: 480},
		photoErr: ErrUnsupported,
		frame:    grayFrame(640, 480),
	}
}

func newTestController(dev *fakeDevice, cfg Config) *Controller {
	cfg.Device = dev
	cfg.Logger = quietLogger()
	return NewController(cfg)
}

func TestController_StartProbesCapabilities(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	c := newTestController(dev, Config{})

	if err := c.Start(context.Background(), "back"); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := c.Snapshot()
	if snap.State != StateStreaming {
		t.Errorf("expected streaming, got %s", snap.State)
	}
	if !snap.HasTorch || !snap.SupportsZoom {
		t.Errorf("expected torch and zoom support, got %+v", snap)
	}
	if snap.MinZoom != 1 || snap.MaxZoom != 5 {
		t.Errorf("unexpected zoom range %v..%v", snap.MinZoom, snap.MaxZoom)
	}

	if dev.opens[0].DeviceID != "back" || dev.opens[0].Width != 1920 || dev.opens[0].FrameRate != 30 {
		t.Errorf("unexpected constraints %+v", dev.opens[0])
	}

	applied := dev.last().applied
	if len(applied) != 1 || applied[0].FocusMode != ModeContinuous || applied[0].ExposureMode != ModeContinuous {
		t.Errorf("expected continuous focus and exposure, got %+v", applied)
	}
	if applied[0].WhiteBalanceMode != "" {
		t.Error("white balance was not offered and should not be applied")
	}
}

func TestController_AbsentCapabilitiesAreNotErrors(t *testing.T) {
	dev := &fakeDevice{newFn: basicStream}
	c := newTestController(dev, Config{})

	if err := c.Start(context.Background(), ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := c.Snapshot()
	if snap.HasTorch || snap.SupportsZoom {
		t.Errorf("expected no capabilities, got %+v", snap)
	}
	if len(dev.last().applied) != 0 {
		t.Error("nothing should be applied when no auto modes are offered")
	}
}

func TestController_RestartReleasesPreviousStream(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	c := newTestController(dev, Config{})
	ctx := context.Background()

	c.Start(ctx, "back")
	first := dev.last()
	c.Start(ctx, "front")

	if !first.isClosed() {
		t.Error("previous stream should be closed before a new one opens")
	}
	if dev.last().isClosed() {
		t.Error("current stream should be open")
	}
}

func TestController_PermissionDenied(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	c := newTestController(dev, Config{
		Permission: fakePermission{err: errors.New("user said no")},
		Language:   shared.LanguageEnglish,
	})

	err := c.Start(context.Background(), "")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	snap := c.Snapshot()
	if snap.State != StateError {
		t.Errorf("expected error state, got %s", snap.State)
	}
	if snap.Error != errorMessages[shared.LanguageEnglish][msgPermission] {
		t.Errorf("unexpected message %q", snap.Error)
	}
	if dev.openCount() != 0 {
		t.Error("device should not be opened without permission")
	}
}

func TestController_NoCamera(t *testing.T) {
	c := NewController(Config{Logger: quietLogger(), Language: shared.LanguageArabic})

	if err := c.Start(context.Background(), ""); !errors.Is(err, ErrNoCamera) {
		t.Fatalf("expected ErrNoCamera, got %v", err)
	}
	if got := c.Snapshot().Error; got != errorMessages[shared.LanguageArabic][msgNoCamera] {
		t.Errorf("unexpected message %q", got)
	}
}

func TestController_OpenFailure(t *testing.T) {
	dev := &fakeDevice{newFn: richStream, openErr: errors.New("device busy")}
	c := newTestController(dev, Config{Language: shared.LanguageEnglish})

	if err := c.Start(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
	if got := c.Snapshot().Error; got != errorMessages[shared.LanguageEnglish][msgGeneric] {
		t.Errorf("unexpected message %q", got)
	}
}

func TestController_CaptureUsesPhotoAPI(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	c := newTestController(dev, Config{})
	c.Start(context.Background(), "")

	frame, err := c.Capture(context.Background(), false)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if string(frame.Data) != "photo-bytes" {
		t.Errorf("expected photo bytes, got %q", frame.Data)
	}
	if c.State() != StateStreaming {
		t.Errorf("expected streaming after capture, got %s", c.State())
	}
}

func TestController_CaptureRasterizesVideoFrame(t *testing.T) {
	dev := &fakeDevice{newFn: basicStream}
	c := newTestController(dev, Config{})
	c.Start(context.Background(), "")

	frame, err := c.Capture(context.Background(), false)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if frame.MIME != "image/jpeg" {
		t.Errorf("expected jpeg, got %s", frame.MIME)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("expected native 640x480, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestController_CaptureWithoutStream(t *testing.T) {
	c := newTestController(&fakeDevice{newFn: richStream}, Config{})
	if _, err := c.Capture(context.Background(), false); !errors.Is(err, ErrNoStream) {
		t.Errorf("expected ErrNoStream, got %v", err)
	}
}

func TestController_DebouncedCapture(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	c := newTestController(dev, Config{Debounce: time.Hour})
	c.Start(context.Background(), "")
	ctx := context.Background()

	if _, err := c.Capture(ctx, true); err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if _, err := c.Capture(ctx, true); !errors.Is(err, ErrDebounced) {
		t.Errorf("expected ErrDebounced, got %v", err)
	}
	if _, err := c.Capture(ctx, false); err != nil {
		t.Errorf("undebounced capture should not be limited: %v", err)
	}
}

func TestController_DebounceWindowExpires(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	c := newTestController(dev, Config{Debounce: 20 * time.Millisecond})
	c.Start(context.Background(), "")
	ctx := context.Background()

	c.Capture(ctx, true)
	time.Sleep(40 * time.Millisecond)
	if _, err := c.Capture(ctx, true); err != nil {
		t.Errorf("capture after the interval should pass: %v", err)
	}
}

func TestController_ToggleTorch(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	c := newTestController(dev, Config{})
	ctx := context.Background()

	if c.ToggleTorch(ctx) {
		t.Error("torch should stay off without a stream")
	}

	c.Start(ctx, "")
	if !c.ToggleTorch(ctx) {
		t.Error("expected torch on")
	}
	if c.ToggleTorch(ctx) {
		t.Error("expected torch off")
	}
	if got := len(dev.last().applied); got != 3 {
		t.Errorf("expected auto modes plus two torch changes, got %d", got)
	}
}

func TestController_ToggleTorchUnsupported(t *testing.T) {
	dev := &fakeDevice{newFn: basicStream}
	c := newTestController(dev, Config{})
	c.Start(context.Background(), "")

	if c.ToggleTorch(context.Background()) {
		t.Error("torch should be a no-op without support")
	}
	if len(dev.last().applied) != 0 {
		t.Error("no constraint should be applied")
	}
}

func TestController_SetZoomClamps(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	c := newTestController(dev, Config{})
	ctx := context.Background()
	c.Start(ctx, "")

	tests := []struct {
		in, want float64
	}{
		{3, 3},
		{10, 5},
		{0.2, 1},
	}
	for _, tt := range tests {
		if got := c.SetZoom(ctx, tt.in); got != tt.want {
			t.Errorf("SetZoom(%v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
	if c.Snapshot().Zoom != 1 {
		t.Errorf("expected snapshot zoom 1, got %v", c.Snapshot().Zoom)
	}
}

func TestController_SetZoomUnsupported(t *testing.T) {
	dev := &fakeDevice{newFn: basicStream}
	c := newTestController(dev, Config{})
	c.Start(context.Background(), "")

	if got := c.SetZoom(context.Background(), 3); got != 0 {
		t.Errorf("expected zoom unchanged, got %v", got)
	}
}

func TestController_NativeFallback(t *testing.T) {
	tests := []struct {
		name    string
		picker  fakePicker
		wantErr error
	}{
		{"photo taken", fakePicker{data: []byte("native-photo")}, nil},
		{"cancelled", fakePicker{err: ErrPickerCancelled}, ErrPickerCancelled},
		{"empty result", fakePicker{}, ErrPickerCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeDevice{newFn: richStream}
			c := newTestController(dev, Config{Picker: tt.picker})
			ctx := context.Background()
			c.Start(ctx, "back")
			first := dev.last()

			frame, err := c.OpenNativeFallback(ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && string(frame.Data) != "native-photo" {
				t.Errorf("unexpected frame %q", frame.Data)
			}

			if !first.isClosed() {
				t.Error("live stream should be stopped during fallback")
			}
			if dev.openCount() != 2 {
				t.Errorf("expected stream restart, got %d opens", dev.openCount())
			}
			if dev.opens[1].DeviceID != "back" {
				t.Errorf("expected restart on the same device, got %q", dev.opens[1].DeviceID)
			}
			if c.State() != StateStreaming {
				t.Errorf("expected streaming after fallback, got %s", c.State())
			}
		})
	}
}

func TestController_NativeFallbackWithoutStream(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	c := newTestController(dev, Config{Picker: fakePicker{data: []byte("x")}})

	if _, err := c.OpenNativeFallback(context.Background()); err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if dev.openCount() != 0 {
		t.Error("no stream should be started when none was running")
	}
	if c.State() != StateIdle {
		t.Errorf("expected idle, got %s", c.State())
	}
}

func TestController_NativeFallbackUnavailable(t *testing.T) {
	c := newTestController(&fakeDevice{newFn: richStream}, Config{})
	if _, err := c.OpenNativeFallback(context.Background()); !errors.Is(err, ErrNoPicker) {
		t.Errorf("expected ErrNoPicker, got %v", err)
	}
	if c.Snapshot().HasFallback {
		t.Error("snapshot should report no fallback")
	}
}

func TestController_Stop(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	c := newTestController(dev, Config{})
	c.Start(context.Background(), "")

	c.Stop()

	if !dev.last().isClosed() {
		t.Error("stream should be closed")
	}
	snap := c.Snapshot()
	if snap.State != StateIdle || snap.HasTorch {
		t.Errorf("expected idle with capabilities cleared, got %+v", snap)
	}
}

func TestController_SubscribeReceivesTransitions(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	c := newTestController(dev, Config{})

	events, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.Start(context.Background(), "")
	c.Capture(context.Background(), false)

	want := []struct {
		typ   EventType
		state State
	}{
		{EventState, StateRequestingPermission},
		{EventState, StateStreaming},
		{EventState, StateCapturing},
		{EventCaptured, StateCapturing},
		{EventState, StateStreaming},
	}

	for i, w := range want {
		select {
		case ev := <-events:
			if ev.Type != w.typ || ev.State != w.state {
				t.Errorf("event %d: expected %s/%s, got %s/%s", i, w.typ, w.state, ev.Type, ev.State)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d: timed out", i)
		}
	}
}

func TestController_UnsubscribeClosesChannel(t *testing.T) {
	c := newTestController(&fakeDevice{newFn: richStream}, Config{})
	events, unsubscribe := c.Subscribe()

	unsubscribe()
	unsubscribe()

	if _, ok := <-events; ok {
		t.Error("expected closed channel")
	}
	c.Stop()
}

func TestController_StopCancelsNativeFallback(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	picker := waitingPicker{opened: make(chan struct{})}
	c := newTestController(dev, Config{Picker: picker})
	ctx := context.Background()
	c.Start(ctx, "back")

	errCh := make(chan error, 1)
	go func() {
		_, err := c.OpenNativeFallback(ctx)
		errCh <- err
	}()
	<-picker.opened

	if _, err := c.OpenNativeFallback(ctx); !errors.Is(err, ErrPickInProgress) {
		t.Errorf("expected ErrPickInProgress, got %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked on the open picker")
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrPickerCancelled) {
			t.Fatalf("expected ErrPickerCancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("picker was not cancelled by Stop")
	}

	if dev.openCount() != 1 {
		t.Errorf("stopped camera must not restart, got %d opens", dev.openCount())
	}
	if c.State() != StateIdle {
		t.Errorf("expected idle, got %s", c.State())
	}
}

func TestController_NativeFallbackTimesOut(t *testing.T) {
	dev := &fakeDevice{newFn: richStream}
	picker := waitingPicker{opened: make(chan struct{})}
	c := newTestController(dev, Config{Picker: picker, PickTimeout: 20 * time.Millisecond})

	if _, err := c.OpenNativeFallback(context.Background()); !errors.Is(err, ErrPickerCancelled) {
		t.Fatalf("expected ErrPickerCancelled, got %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("expected idle, got %s", c.State())
	}
}
