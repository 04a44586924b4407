package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/fx"

	"github.com/eleven-am/label-scan/internal/analysis"
	"github.com/eleven-am/label-scan/internal/bootstrap"
	"github.com/eleven-am/label-scan/internal/capture"
	"github.com/eleven-am/label-scan/internal/scan"
	"github.com/eleven-am/label-scan/internal/shared"
)

type imageList []string

func (l *imageList) String() string { return strings.Join(*l, ",") }

func (l *imageList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var images imageList
	text := flag.String("text", "", "classify an ingredient list")
	barcode := flag.String("barcode", "", "look up and classify a barcode")
	useCamera := flag.Bool("camera", false, "capture one shot from the configured camera")
	showHistory := flag.Bool("history", false, "print scan history and exit")
	lang := flag.String("lang", "ar", "result language (ar, en)")
	naming := flag.String("naming", "app", "ingredient naming (app, original)")
	flag.Var(&images, "image", "image file to analyse (repeatable)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options{
		text:        *text,
		barcode:     *barcode,
		images:      images,
		useCamera:   *useCamera,
		showHistory: *showHistory,
		req: analysis.Request{
			Language: shared.ParseLanguage(*lang),
			Naming:   shared.ParseIngredientNaming(*naming),
		},
	}); err != nil {
		fmt.Fprintf(os.Stderr, "scan: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	text        string
	barcode     string
	images      []string
	useCamera   bool
	showHistory bool
	req         analysis.Request
}

func run(ctx context.Context, opts options) error {
	var (
		service *scan.Service
		camera  *capture.Controller
		logger  *slog.Logger
	)

	app := fx.New(
		fx.NopLogger,
		fx.Provide(bootstrap.LoadConfig),
		bootstrap.InfrastructureModule,
		bootstrap.PipelineModule,
		fx.Populate(&service, &camera, &logger),
	)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := app.Stop(context.Background()); err != nil {
			logger.Warn("shutdown failed", "error", err)
		}
	}()

	if opts.showHistory {
		entries, err := service.History(ctx)
		if err != nil {
			return err
		}
		return printJSON(entries)
	}

	var (
		outcome scan.Outcome
		err     error
	)
	switch {
	case opts.text != "":
		opts.req.Text = opts.text
		outcome, err = service.AnalyzeText(ctx, opts.req)
	case opts.barcode != "":
		outcome, err = service.AnalyzeBarcode(ctx, opts.barcode, opts.req)
	default:
		if err := collect(ctx, service, camera, opts); err != nil {
			return err
		}
		outcome, err = service.AnalyzeShots(ctx, opts.req)
	}

	if errors.Is(err, analysis.ErrCancelled) {
		return nil
	}
	if perr := printJSON(outcome.Result); perr != nil {
		return perr
	}
	return err
}

func collect(ctx context.Context, service *scan.Service, camera *capture.Controller, opts options) error {
	for _, path := range opts.images {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := service.AddShot(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	if opts.useCamera {
		if err := camera.Start(ctx, ""); err != nil {
			return err
		}
		if _, err := service.Capture(ctx, false); err != nil {
			return err
		}
	}

	if service.Shots().Len() == 0 {
		return errors.New("nothing to scan: pass -text, -barcode, -image or -camera")
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
