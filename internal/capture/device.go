package capture

import (
	"context"
	"errors"
	"image"
)

var (
	ErrUnsupported      = errors.New("capability not supported")
	ErrNoStream         = errors.New("no active camera stream")
	ErrNoCamera         = errors.New("no camera available")
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrPickerCancelled  = errors.New("picker cancelled")
	ErrNoPicker         = errors.New("no native picker configured")
	ErrPickInProgress   = errors.New("native picker already open")
	ErrDebounced        = errors.New("capture requested too soon after the previous one")
)

const ModeContinuous = "continuous"

// Constraints describe what the caller wants from a stream. Zero values
// leave the corresponding setting alone.
type Constraints struct {
	DeviceID         string
	Width            int
	Height           int
	FrameRate        int
	Torch            *bool
	Zoom             *float64
	FocusMode        string
	ExposureMode     string
	WhiteBalanceMode string
}

type Capabilities struct {
	Torch             bool
	Zoom              bool
	MinZoom           float64
	MaxZoom           float64
	FocusModes        []string
	ExposureModes     []string
	WhiteBalanceModes []string
}

type Settings struct {
	DeviceID  string  `json:"deviceId"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate int     `json:"frameRate"`
	Torch     bool    `json:"torch"`
	Zoom      float64 `json:"zoom"`
}

// Device is a platform camera API.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is one live video track. Close must release the hardware.
type Stream interface {
	Capabilities() Capabilities
	Settings() Settings
	Apply(ctx context.Context, c Constraints) error
	// TakePhoto returns an encoded still, or ErrUnsupported when the
	// platform has no single-frame capture API.
	TakePhoto(ctx context.Context) ([]byte, error)
	GrabFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// Permission gates camera access on platforms that require consent.
type Permission interface {
	Request(ctx context.Context) error
}

// Picker is the OS still-camera fallback. It returns ErrPickerCancelled
// when the user backs out.
type Picker interface {
	Pick(ctx context.Context) ([]byte, error)
}

func contains(modes []string, mode string) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}
