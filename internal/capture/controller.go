package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/eleven-am/label-scan/internal/imaging"
	"github.com/eleven-am/label-scan/internal/shared"
)

type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateStreaming            State = "streaming"
	StateCapturing            State = "capturing"
	StateError                State = "error"
	StateFallback             State = "fallback"
)

type EventType string

const (
	EventState    EventType = "state"
	EventCaptured EventType = "captured"
)

type Event struct {
	Type  EventType `json:"type"`
	State State     `json:"state"`
	Error string    `json:"error,omitempty"`
	Bytes int       `json:"bytes,omitempty"`
	At    time.Time `json:"at"`
}

// Snapshot is the controller state exposed to the UI. Capability flags
// drive which controls are shown.
type Snapshot struct {
	State        State    `json:"state"`
	Error        string   `json:"error,omitempty"`
	HasTorch     bool     `json:"hasTorch"`
	TorchOn      bool     `json:"torchOn"`
	SupportsZoom bool     `json:"supportsZoom"`
	MinZoom      float64  `json:"minZoom"`
	MaxZoom      float64  `json:"maxZoom"`
	Zoom         float64  `json:"zoom"`
	HasFallback  bool     `json:"hasFallback"`
	Settings     Settings `json:"settings"`
}

type Config struct {
	Device       Device
	Permission   Permission
	Picker       Picker
	DeviceID     string
	Width        int
	Height       int
	FrameRate    int
	Debounce     time.Duration
	PhotoQuality float64
	PickTimeout  time.Duration
	Language     shared.Language
	Logger       *slog.Logger
}

// Controller owns the camera. At most one stream is live at a time and
// every hardware operation is serialised.
type Controller struct {
	device     Device
	permission Permission
	picker     Picker
	cfg        Config
	limiter    *rate.Limiter
	logger     *slog.Logger

	hw       sync.Mutex
	stream   Stream
	deviceID string

	pickCancel  context.CancelFunc
	pickStopped bool

	mu      sync.RWMutex
	snap    Snapshot
	subs    map[int]chan Event
	nextSub int
}

func NewController(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Width == 0 {
		cfg.Width = 1920
	}
	if cfg.Height == 0 {
		cfg.Height = 1080
	}
	if cfg.FrameRate == 0 {
		cfg.FrameRate = 30
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.PhotoQuality == 0 {
		cfg.PhotoQuality = 0.92
	}
	if cfg.PickTimeout == 0 {
		cfg.PickTimeout = 5 * time.Minute
	}
	if cfg.Language == "" {
		cfg.Language = shared.LanguageArabic
	}

	return &Controller{
		device:     cfg.Device,
		permission: cfg.Permission,
		picker:     cfg.Picker,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(cfg.Debounce), 1),
		logger:     cfg.Logger.With("component", "camera"),
		snap:       Snapshot{State: StateIdle, HasFallback: cfg.Picker != nil},
		subs:       make(map[int]chan Event),
	}
}

// Start opens the camera, releasing any previous stream first. On failure
// the controller moves to StateError with a displayable message; callers
// should offer the native fallback.
func (c *Controller) Start(ctx context.Context, deviceID string) error {
	c.hw.Lock()
	defer c.hw.Unlock()
	return c.startLocked(ctx, deviceID)
}

func (c *Controller) startLocked(ctx context.Context, deviceID string) error {
	c.releaseLocked()

	if deviceID == "" {
		deviceID = c.cfg.DeviceID
	}

	c.setState(StateRequestingPermission, "")

	if c.permission != nil {
		if err := c.permission.Request(ctx); err != nil {
			return c.fail(fmt.Errorf("%w: %w", ErrPermissionDenied, err))
		}
	}

	if c.device == nil {
		return c.fail(ErrNoCamera)
	}

	stream, err := c.device.Open(ctx, Constraints{
		DeviceID:  deviceID,
		Width:     c.cfg.Width,
		Height:    c.cfg.Height,
		FrameRate: c.cfg.FrameRate,
	})
	if err != nil {
		return c.fail(fmt.Errorf("open camera: %w", err))
	}

	c.stream = stream
	c.deviceID = deviceID
	c.probe(ctx)
	c.setState(StateStreaming, "")

	c.logger.Info("camera started", "device", deviceID, "settings", stream.Settings())
	return nil
}

// probe records optional capabilities and turns on continuous focus,
// exposure and white balance where offered. Failures are ignored.
func (c *Controller) probe(ctx context.Context) {
	caps := c.stream.Capabilities()
	settings := c.stream.Settings()

	c.mu.Lock()
	c.snap.HasTorch = caps.Torch
	c.snap.TorchOn = caps.Torch && settings.Torch
	c.snap.SupportsZoom = caps.Zoom && caps.MaxZoom > caps.MinZoom
	c.snap.MinZoom = caps.MinZoom
	c.snap.MaxZoom = caps.MaxZoom
	c.snap.Zoom = settings.Zoom
	c.snap.Settings = settings
	c.mu.Unlock()

	var auto Constraints
	if contains(caps.FocusModes, ModeContinuous) {
		auto.FocusMode = ModeContinuous
	}
	if contains(caps.ExposureModes, ModeContinuous) {
		auto.ExposureMode = ModeContinuous
	}
	if contains(caps.WhiteBalanceModes, ModeContinuous) {
		auto.WhiteBalanceMode = ModeContinuous
	}
	if auto == (Constraints{}) {
		return
	}
	if err := c.stream.Apply(ctx, auto); err != nil {
		c.logger.Debug("continuous auto modes not applied", "error", err)
	}
}

// Stop releases the hardware and cancels an open native picker.
func (c *Controller) Stop() {
	c.hw.Lock()
	defer c.hw.Unlock()

	if c.pickCancel != nil {
		c.pickStopped = true
		c.pickCancel()
	}
	c.releaseLocked()
	c.setState(StateIdle, "")
}

func (c *Controller) releaseLocked() {
	if c.stream == nil {
		return
	}
	if err := c.stream.Close(); err != nil {
		c.logger.Warn("camera close failed", "error", err)
	}
	c.stream = nil

	c.mu.Lock()
	c.snap.HasTorch = false
	c.snap.TorchOn = false
	c.snap.SupportsZoom = false
	c.snap.MinZoom, c.snap.MaxZoom, c.snap.Zoom = 0, 0, 0
	c.snap.Settings = Settings{}
	c.mu.Unlock()
}

// ToggleTorch flips the torch and returns its new state. Without a stream
// or torch support it does nothing.
func (c *Controller) ToggleTorch(ctx context.Context) bool {
	c.hw.Lock()
	defer c.hw.Unlock()

	c.mu.RLock()
	hasTorch, on := c.snap.HasTorch, c.snap.TorchOn
	c.mu.RUnlock()

	if c.stream == nil || !hasTorch {
		c.logger.Debug("torch toggle ignored", "streaming", c.stream != nil, "has_torch", hasTorch)
		return on
	}

	next := !on
	if err := c.stream.Apply(ctx, Constraints{Torch: &next}); err != nil {
		c.logger.Debug("torch toggle failed", "error", err)
		return on
	}

	c.mu.Lock()
	c.snap.TorchOn = next
	c.mu.Unlock()
	return next
}

// SetZoom clamps level into the supported range and returns the applied
// value. Without zoom support it does nothing.
func (c *Controller) SetZoom(ctx context.Context, level float64) float64 {
	c.hw.Lock()
	defer c.hw.Unlock()

	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()

	if c.stream == nil || !snap.SupportsZoom {
		c.logger.Debug("zoom ignored", "streaming", c.stream != nil)
		return snap.Zoom
	}

	level = min(max(level, snap.MinZoom), snap.MaxZoom)
	if err := c.stream.Apply(ctx, Constraints{Zoom: &level}); err != nil {
		c.logger.Debug("zoom failed", "error", err)
		return snap.Zoom
	}

	c.mu.Lock()
	c.snap.Zoom = level
	c.mu.Unlock()
	return level
}

// Capture takes one still. Debounced captures are limited to one per
// debounce interval and return ErrDebounced otherwise.
func (c *Controller) Capture(ctx context.Context, debounced bool) (imaging.Frame, error) {
	c.hw.Lock()
	defer c.hw.Unlock()

	if c.stream == nil {
		return imaging.Frame{}, ErrNoStream
	}
	if debounced && !c.limiter.Allow() {
		return imaging.Frame{}, ErrDebounced
	}

	c.setState(StateCapturing, "")
	defer c.setState(StateStreaming, "")

	data, err := c.stream.TakePhoto(ctx)
	if err != nil {
		if !errors.Is(err, ErrUnsupported) {
			c.logger.Debug("photo capture failed, using video frame", "error", err)
		}
		data, err = c.rasterize(ctx)
		if err != nil {
			return imaging.Frame{}, fmt.Errorf("capture frame: %w", err)
		}
	}

	c.publish(Event{Type: EventCaptured, State: StateCapturing, Bytes: len(data), At: time.Now()})
	return imaging.NewFrame(data), nil
}

// rasterize encodes the current video frame at its native size.
func (c *Controller) rasterize(ctx context.Context) ([]byte, error) {
	img, err := c.stream.GrabFrame(ctx)
	if err != nil {
		return nil, err
	}
	return imaging.EncodeJPEG(img, c.cfg.PhotoQuality)
}

// OpenNativeFallback hands over to the OS camera. The live stream is
// stopped first and, if one was running, restarted afterwards whether or
// not the user took a photo. The hardware lock is not held while the
// picker is open, so Stop can cancel it. A picker that stays open longer
// than PickTimeout counts as cancelled.
func (c *Controller) OpenNativeFallback(ctx context.Context) (imaging.Frame, error) {
	c.hw.Lock()
	if c.picker == nil {
		c.hw.Unlock()
		return imaging.Frame{}, ErrNoPicker
	}
	if c.pickCancel != nil {
		c.hw.Unlock()
		return imaging.Frame{}, ErrPickInProgress
	}

	wasStreaming := c.stream != nil
	deviceID := c.deviceID

	c.releaseLocked()
	c.setState(StateFallback, "")

	pickCtx, cancel := context.WithTimeout(ctx, c.cfg.PickTimeout)
	c.pickCancel = cancel
	c.pickStopped = false
	c.hw.Unlock()

	data, pickErr := c.picker.Pick(pickCtx)
	cancel()

	c.hw.Lock()
	stopped := c.pickStopped
	c.pickCancel = nil
	switch {
	case stopped || c.stream != nil:
	case wasStreaming:
		if err := c.startLocked(context.WithoutCancel(ctx), deviceID); err != nil {
			c.logger.Warn("camera restart after fallback failed", "error", err)
		}
	default:
		c.setState(StateIdle, "")
	}
	c.hw.Unlock()

	if stopped {
		return imaging.Frame{}, ErrPickerCancelled
	}
	if pickErr != nil {
		if errors.Is(pickErr, ErrPickerCancelled) || errors.Is(pickErr, context.DeadlineExceeded) {
			return imaging.Frame{}, ErrPickerCancelled
		}
		return imaging.Frame{}, fmt.Errorf("native picker: %w", pickErr)
	}
	if len(data) == 0 {
		return imaging.Frame{}, ErrPickerCancelled
	}

	c.publish(Event{Type: EventCaptured, State: StateFallback, Bytes: len(data), At: time.Now()})
	return imaging.NewFrame(data), nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Controller) State() State {
	return c.Snapshot().State
}

// Subscribe returns a channel of state and capture events. Slow
// subscribers miss events rather than block the camera.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, 16)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Controller) fail(err error) error {
	msg := displayError(c.cfg.Language, err)
	c.logger.Warn("camera start failed", "error", err)
	c.setState(StateError, msg)
	return err
}

func (c *Controller) setState(state State, msg string) {
	c.mu.Lock()
	c.snap.State = state
	c.snap.Error = msg
	c.mu.Unlock()

	c.publish(Event{Type: EventState, State: state, Error: msg, At: time.Now()})
}

func (c *Controller) publish(ev Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
