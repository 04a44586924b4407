package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/eleven-am/label-scan/internal/analysis"
	"github.com/eleven-am/label-scan/internal/capture"
	"github.com/eleven-am/label-scan/internal/fastpath"
	"github.com/eleven-am/label-scan/internal/history"
	"github.com/eleven-am/label-scan/internal/imaging"
	"github.com/eleven-am/label-scan/internal/product"
	"github.com/eleven-am/label-scan/internal/scan"
	"github.com/eleven-am/label-scan/internal/shared"
	"github.com/eleven-am/label-scan/internal/shots"
)

func ProvideMatcher(cfg *Config) (*fastpath.Matcher, error) {
	return fastpath.NewDefaultMatcher(cfg.Fastpath.TermsFile)
}

func ProvidePreprocessor(log *slog.Logger) *imaging.Preprocessor {
	return imaging.NewPreprocessor(log)
}

func ProvideAnalysisClient(cfg *Config) *analysis.Client {
	return analysis.NewClient(analysisConfig(cfg), nil)
}

func analysisConfig(cfg *Config) analysis.Config {
	return analysis.Config{
		BaseURL:      cfg.Analysis.BaseURL,
		AppVersion:   cfg.Analysis.AppVersion,
		FirstTimeout: cfg.Analysis.FirstTimeout,
		RetryTimeout: cfg.Analysis.RetryTimeout,
		TextTimeout:  cfg.Analysis.TextTimeout,
		BackoffStep:  cfg.Analysis.BackoffStep,
	}
}

func ProvideProductClient(cfg *Config) *product.Client {
	return product.NewClient(product.Config{
		BaseURL:   cfg.Product.BaseURL,
		UserAgent: cfg.Product.UserAgent,
		Timeout:   cfg.Product.Timeout,
	}, nil)
}

func ProvideAnalyzer(
	cfg *Config,
	client *analysis.Client,
	pre *imaging.Preprocessor,
	matcher *fastpath.Matcher,
	products *product.Client,
	log *slog.Logger,
) *analysis.Analyzer {
	return analysis.NewAnalyzer(analysisConfig(cfg), client, pre, matcher, products, log)
}

// ProvideCamera builds the controller over an ffmpeg-backed device and the
// hand-off directory picker. The stream is released on shutdown.
func ProvideCamera(lc fx.Lifecycle, cfg *Config, log *slog.Logger) *capture.Controller {
	camera := capture.NewController(capture.Config{
		Device: capture.NewFFmpegDevice(capture.FFmpegConfig{
			Path:   cfg.Camera.FFmpegPath,
			Format: cfg.Camera.Format,
			Input:  cfg.Camera.Device,
			Logger: log,
		}),
		Picker:      capture.NewFilePicker(cfg.Camera.PickerDir, log),
		DeviceID:    cfg.Camera.Device,
		Width:       cfg.Camera.Width,
		Height:      cfg.Camera.Height,
		FrameRate:   cfg.Camera.FrameRate,
		Debounce:    cfg.Camera.Debounce,
		PickTimeout: cfg.Camera.PickTimeout,
		Language:    shared.ParseLanguage(cfg.Camera.Language),
		Logger:      log,
	})

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			camera.Stop()
			return nil
		},
	})
	return camera
}

func ProvideShotSet(cfg *Config) *shots.Set {
	return shots.NewSet(cfg.Shots.Capacity)
}

func ProvideScanService(
	cfg *Config,
	set *shots.Set,
	camera *capture.Controller,
	analyzer *analysis.Analyzer,
	hist *history.Store,
	pre *imaging.Preprocessor,
	log *slog.Logger,
) *scan.Service {
	return scan.NewService(scan.Config{
		ThumbnailWidth: cfg.History.ThumbnailWidth,
		HoldThreshold:  cfg.Camera.HoldThreshold,
	}, set, camera, analyzer, hist, pre, log)
}

var PipelineModule = fx.Options(
	fx.Provide(
		ProvideMatcher,
		ProvidePreprocessor,
		ProvideAnalysisClient,
		ProvideProductClient,
		ProvideAnalyzer,
		ProvideCamera,
		ProvideShotSet,
		ProvideScanService,
	),
)
