package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type FFmpegConfig struct {
	Path         string
	Format       string
	Input        string
	StartTimeout time.Duration
	Logger       *slog.Logger
}

// FFmpegDevice reads a live camera through an ffmpeg subprocess that
// writes MJPEG frames to stdout. It has no still-photo API, torch or zoom.
type FFmpegDevice struct {
	cfg    FFmpegConfig
	logger *slog.Logger
}

func NewFFmpegDevice(cfg FFmpegConfig) *FFmpegDevice {
	if cfg.Path == "" {
		cfg.Path = "ffmpeg"
	}
	if cfg.Format == "" {
		cfg.Format = defaultFormat()
	}
	if cfg.Input == "" {
		cfg.Input = defaultInput()
	}
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &FFmpegDevice{cfg: cfg, logger: cfg.Logger.With("component", "ffmpeg-camera")}
}

func defaultFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "v4l2"
	}
}

func defaultInput() string {
	switch runtime.GOOS {
	case "darwin":
		return "0"
	case "windows":
		return "video=Integrated Camera"
	default:
		return "/dev/video0"
	}
}

func (d *FFmpegDevice) args(input string, c Constraints) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-f", d.cfg.Format}
	if c.FrameRate > 0 {
		args = append(args, "-framerate", strconv.Itoa(c.FrameRate))
	}
	if c.Width > 0 && c.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", c.Width, c.Height))
	}
	return append(args, "-i", input, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "2", "-")
}

// Open starts ffmpeg and waits for the first frame so that a busy or
// missing device fails here rather than on first capture.
func (d *FFmpegDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	path, err := exec.LookPath(d.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found: %w", ErrNoCamera, err)
	}

	input := c.DeviceID
	if input == "" {
		input = d.cfg.Input
	}
	if d.cfg.Format == "v4l2" {
		if _, err := os.Stat(input); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoCamera, err)
		}
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, path, d.args(input, c)...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 2 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	s := &ffmpegStream{
		cancel: cancel,
		ready:  make(chan struct{}),
		exited: make(chan struct{}),
		settings: Settings{
			DeviceID:  input,
			Width:     c.Width,
			Height:    c.Height,
			FrameRate: c.FrameRate,
		},
	}

	go s.read(stdout)
	go func() {
		s.waitErr = cmd.Wait()
		s.stderr = strings.TrimSpace(stderr.String())
		close(s.exited)
	}()

	timer := time.NewTimer(d.cfg.StartTimeout)
	defer timer.Stop()

	select {
	case <-s.ready:
		d.logger.Info("ffmpeg stream ready", "input", input, "width", s.settings.Width, "height", s.settings.Height)
		return s, nil
	case <-s.exited:
		return nil, fmt.Errorf("ffmpeg exited before first frame: %v: %s", s.waitErr, s.stderr)
	case <-timer.C:
		s.Close()
		return nil, errors.New("timed out waiting for first camera frame")
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}
}

type ffmpegStream struct {
	cancel    context.CancelFunc
	ready     chan struct{}
	readyOnce sync.Once
	exited    chan struct{}
	closeOnce sync.Once
	waitErr   error
	stderr    string

	mu       sync.Mutex
	latest   []byte
	settings Settings
}

func (s *ffmpegStream) read(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 16<<20)
	scanner.Split(splitJPEG)

	for scanner.Scan() {
		frame := bytes.Clone(scanner.Bytes())

		s.mu.Lock()
		s.latest = frame
		s.mu.Unlock()

		s.readyOnce.Do(func() {
			if cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame)); err == nil {
				s.mu.Lock()
				s.settings.Width, s.settings.Height = cfg.Width, cfg.Height
				s.mu.Unlock()
			}
			close(s.ready)
		})
	}
}

func (s *ffmpegStream) Capabilities() Capabilities {
	return Capabilities{}
}

func (s *ffmpegStream) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *ffmpegStream) Apply(ctx context.Context, c Constraints) error {
	if c.Torch != nil || c.Zoom != nil {
		return ErrUnsupported
	}
	return nil
}

func (s *ffmpegStream) TakePhoto(ctx context.Context) ([]byte, error) {
	return nil, ErrUnsupported
}

func (s *ffmpegStream) GrabFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-s.exited:
		return nil, ErrNoStream
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	data := s.latest
	s.mu.Unlock()

	if len(data) == 0 {
		return nil, ErrNoStream
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode camera frame: %w", err)
	}
	return img, nil
}

func (s *ffmpegStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.exited
	})
	return nil
}

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// splitJPEG is a bufio.SplitFunc yielding whole JPEG images from an MJPEG
// byte stream.
func splitJPEG(data []byte, atEOF bool) (int, []byte, error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		if len(data) > 1 {
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}

	end := bytes.Index(data[start+2:], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	stop := start + 2 + end + 2
	return stop, data[start:stop], nil
}
