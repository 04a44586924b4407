package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/eleven-am/label-scan/internal/analysis"
	"github.com/eleven-am/label-scan/internal/capture"
	"github.com/eleven-am/label-scan/internal/history"
	"github.com/eleven-am/label-scan/internal/imaging"
	"github.com/eleven-am/label-scan/internal/shots"
	"github.com/eleven-am/label-scan/internal/verdict"
)

var (
	ErrNoShots    = errors.New("no shots to analyse")
	ErrInProgress = errors.New("a scan is already in progress")
	ErrBadImage   = errors.New("unreadable image")
)

const gestureCaptureTimeout = 10 * time.Second

var tracer = otel.Tracer("github.com/eleven-am/label-scan/internal/scan")

// Analyzer is the classification pipeline behind a scan.
type Analyzer interface {
	AnalyzeImages(ctx context.Context, req analysis.Request) (verdict.Result, error)
	AnalyzeText(ctx context.Context, req analysis.Request) (verdict.Result, error)
	AnalyzeBarcode(ctx context.Context, barcode string, req analysis.Request) (verdict.Result, error)
}

// Camera produces stills for the shot set.
type Camera interface {
	Capture(ctx context.Context, debounced bool) (imaging.Frame, error)
	OpenNativeFallback(ctx context.Context) (imaging.Frame, error)
}

type Config struct {
	ThumbnailWidth int
	HoldThreshold  time.Duration
}

// Outcome is a finished scan. Entry is nil when nothing was recorded.
type Outcome struct {
	Result verdict.Result
	Entry  *history.Entry
}

// Service runs the acquisition pipeline: it fills the shot set from the
// camera or uploads, submits it for analysis and records usable verdicts.
// At most one scan is in flight.
type Service struct {
	shots    *shots.Set
	camera   Camera
	analyzer Analyzer
	history  *history.Store
	pre      *imaging.Preprocessor
	gesture  *capture.Gesture
	cfg      Config
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	scanID uint64
}

func NewService(cfg Config, set *shots.Set, camera Camera, analyzer Analyzer, hist *history.Store, pre *imaging.Preprocessor, logger *slog.Logger) *Service {
	if cfg.ThumbnailWidth <= 0 {
		cfg.ThumbnailWidth = imaging.DefaultThumbnailWidth
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		shots:    set,
		camera:   camera,
		analyzer: analyzer,
		history:  hist,
		pre:      pre,
		cfg:      cfg,
		logger:   logger.With("component", "scan"),
	}
	s.gesture = capture.NewGesture(cfg.HoldThreshold, s.onGesture)
	return s
}

// Capture takes a still from the camera and adds it to the shot set. A
// full set is rejected before the camera is touched.
func (s *Service) Capture(ctx context.Context, debounced bool) (int, error) {
	if s.shots.Full() {
		return 0, shots.ErrFull
	}

	frame, err := s.camera.Capture(ctx, debounced)
	if err != nil {
		return 0, err
	}
	return s.shots.Append(frame)
}

// Fallback adds a photo taken with the native camera. A cancelled picker
// returns capture.ErrPickerCancelled and leaves the set untouched.
func (s *Service) Fallback(ctx context.Context) (int, error) {
	if s.shots.Full() {
		return 0, shots.ErrFull
	}

	frame, err := s.camera.OpenNativeFallback(ctx)
	if err != nil {
		return 0, err
	}
	if err := checkFrame(frame); err != nil {
		return 0, err
	}
	return s.shots.Append(frame)
}

// AddShot appends an uploaded image. Undecodable images and images over
// imaging.MaxPixels are rejected with ErrBadImage.
func (s *Service) AddShot(data []byte) (int, error) {
	frame := imaging.NewFrame(data)
	if err := checkFrame(frame); err != nil {
		return 0, err
	}
	return s.shots.Append(frame)
}

func checkFrame(f imaging.Frame) error {
	if _, _, err := imaging.Dimensions(f); err != nil {
		return fmt.Errorf("%w: %w", ErrBadImage, err)
	}
	return nil
}

func (s *Service) RemoveShot(index int) (bool, error) {
	return s.shots.Remove(index)
}

func (s *Service) ClearShots() {
	s.shots.Clear()
}

func (s *Service) Shots() *shots.Set {
	return s.shots
}

// Shot returns the frame at index in a form fit for display.
func (s *Service) Shot(index int) (imaging.Frame, error) {
	f, err := s.shots.Get(index)
	if err != nil {
		return imaging.Frame{}, err
	}
	return s.pre.ToDisplayable(f), nil
}

// PressShutter starts a shutter gesture.
func (s *Service) PressShutter() bool {
	return s.gesture.Press()
}

// ReleaseShutter ends the gesture. A quick tap captures a debounced shot
// before returning; after a long press the burst shot was already taken.
func (s *Service) ReleaseShutter() capture.Mode {
	return s.gesture.Release()
}

func (s *Service) onGesture(mode capture.Mode) {
	ctx, cancel := context.WithTimeout(context.Background(), gestureCaptureTimeout)
	defer cancel()

	index, err := s.Capture(ctx, mode == capture.ModeSingle)
	if err != nil {
		s.logger.Debug("gesture capture skipped", "mode", mode, "error", err)
		return
	}
	s.logger.Debug("gesture capture", "mode", mode, "index", index)
}

// AnalyzeShots submits the current shot set. The submitted frames are
// removed once the analysis completes, whatever the verdict, and kept when
// it is cancelled. Frames added while the scan runs stay for the next one.
func (s *Service) AnalyzeShots(ctx context.Context, req analysis.Request) (Outcome, error) {
	frames := s.shots.Frames()
	if len(frames) == 0 {
		return Outcome{}, ErrNoShots
	}

	ctx, done, err := s.begin(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer done()

	ctx, span := tracer.Start(ctx, "scan.images", trace.WithAttributes(attribute.Int("scan.frames", len(frames))))
	defer span.End()

	req.Frames = frames
	result, err := s.analyzer.AnalyzeImages(ctx, req)
	annotate(span, result, err)
	if errors.Is(err, analysis.ErrCancelled) {
		s.logger.Info("scan cancelled", "frames", len(frames))
		return Outcome{}, err
	}

	s.shots.Discard(frames)
	if err != nil {
		return Outcome{Result: result}, err
	}

	return Outcome{Result: result, Entry: s.record(ctx, result, &frames[0])}, nil
}

func (s *Service) AnalyzeText(ctx context.Context, req analysis.Request) (Outcome, error) {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer done()

	ctx, span := tracer.Start(ctx, "scan.text")
	defer span.End()

	result, err := s.analyzer.AnalyzeText(ctx, req)
	annotate(span, result, err)
	if err != nil {
		return Outcome{Result: result}, err
	}
	return Outcome{Result: result, Entry: s.record(ctx, result, nil)}, nil
}

func (s *Service) AnalyzeBarcode(ctx context.Context, barcode string, req analysis.Request) (Outcome, error) {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer done()

	ctx, span := tracer.Start(ctx, "scan.barcode", trace.WithAttributes(attribute.String("scan.barcode", barcode)))
	defer span.End()

	result, err := s.analyzer.AnalyzeBarcode(ctx, barcode, req)
	annotate(span, result, err)
	if err != nil {
		return Outcome{Result: result}, err
	}
	return Outcome{Result: result, Entry: s.record(ctx, result, nil)}, nil
}

// Cancel aborts the in-flight scan. It reports whether there was one.
func (s *Service) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

func (s *Service) begin(ctx context.Context) (context.Context, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil, nil, ErrInProgress
	}

	ctx, cancel := context.WithCancel(ctx)
	s.scanID++
	id := s.scanID
	s.cancel = cancel

	return ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.scanID == id {
			s.cancel = nil
		}
		cancel()
	}, nil
}

func annotate(span trace.Span, result verdict.Result, err error) {
	if err != nil {
		span.RecordError(err)
		return
	}
	span.SetAttributes(
		attribute.String("scan.status", string(result.Status)),
		attribute.Int("scan.confidence", result.Confidence),
	)
}

// record stores a usable verdict with a thumbnail of the first frame.
// Failures are logged and do not affect the verdict.
func (s *Service) record(ctx context.Context, result verdict.Result, first *imaging.Frame) *history.Entry {
	if !result.Usable() || s.history == nil {
		return nil
	}

	var thumb []byte
	if first != nil {
		thumb = s.pre.ToThumbnail(*first, s.cfg.ThumbnailWidth).Data
	}

	entry, err := s.history.Add(context.WithoutCancel(ctx), result, thumb)
	if err != nil {
		s.logger.Warn("history not recorded", "error", err)
		return nil
	}
	return entry
}

func (s *Service) History(ctx context.Context) ([]history.Entry, error) {
	if s.history == nil {
		return []history.Entry{}, nil
	}
	return s.history.List(ctx)
}

func (s *Service) ClearHistory(ctx context.Context) error {
	if s.history == nil {
		return nil
	}
	return s.history.Clear(ctx)
}

func (s *Service) HistoryLimit() int {
	if s.history == nil {
		return 0
	}
	return s.history.Limit()
}
