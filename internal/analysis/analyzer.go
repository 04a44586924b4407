package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eleven-am/label-scan/internal/fastpath"
	"github.com/eleven-am/label-scan/internal/imaging"
	"github.com/eleven-am/label-scan/internal/product"
	"github.com/eleven-am/label-scan/internal/shared"
	"github.com/eleven-am/label-scan/internal/verdict"
)

type ProductLookup interface {
	Lookup(ctx context.Context, barcode string, lang shared.Language) (*product.Product, error)
}

// Analyzer runs image, text and barcode analyses against the classification
// service. It keeps no state between calls.
type Analyzer struct {
	client   *Client
	pre      *imaging.Preprocessor
	matcher  *fastpath.Matcher
	products ProductLookup
	cfg      Config
	logger   *slog.Logger
}

func NewAnalyzer(cfg Config, client *Client, pre *imaging.Preprocessor, matcher *fastpath.Matcher, products ProductLookup, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if pre == nil {
		pre = imaging.NewPreprocessor(logger)
	}
	return &Analyzer{
		client:   client,
		pre:      pre,
		matcher:  matcher,
		products: products,
		cfg:      cfg.withDefaults(),
		logger:   logger.With("component", "analyzer"),
	}
}

func (a *Analyzer) Tiers() []Tier {
	out := make([]Tier, len(a.cfg.Tiers))
	copy(out, a.cfg.Tiers)
	return out
}

// AnalyzeImages submits the frames, retrying on transient failures with a
// smaller tier each time. Every attempt reprocesses the source frames.
//
// A cancelled ctx returns ErrCancelled and no result. Quota and version
// rejections return ErrQuotaExceeded or ErrUpdateRequired together with a
// failure verdict carrying the user-facing copy. When all attempts fail the
// returned verdict has confidence 0 and a nil error.
func (a *Analyzer) AnalyzeImages(ctx context.Context, req Request) (verdict.Result, error) {
	if len(req.Frames) == 0 {
		return verdict.Result{}, ErrEmptyRequest
	}

	lang := req.language()
	tiers := a.cfg.Tiers
	last := Outcome{Kind: KindRetryable, Reason: ReasonConnection}

	for attempt, tier := range tiers {
		if ctx.Err() != nil {
			return verdict.Result{}, ErrCancelled
		}

		images, err := a.prepare(ctx, req.Frames, tier)
		if err != nil {
			return verdict.Result{}, ErrCancelled
		}

		timeout := a.cfg.RetryTimeout
		if attempt == 0 {
			timeout = a.cfg.FirstTimeout
		}

		a.logger.Info("image analysis attempt",
			"attempt", attempt,
			"frames", len(images),
			"max_dimension", tier.MaxDimension,
			"quality", tier.Quality,
			"timeout", timeout)

		out := a.attempt(ctx, timeout, req, images)

		switch out.Kind {
		case KindSuccess:
			a.logger.Info("image analysis complete", "attempt", attempt, "status", out.Result.Status, "confidence", out.Result.Confidence)
			return out.Result, nil
		case KindCancelled:
			a.logger.Info("image analysis cancelled", "attempt", attempt)
			return verdict.Result{}, ErrCancelled
		case KindFatal:
			a.logger.Warn("image analysis rejected", "attempt", attempt, "reason", out.Reason)
			return a.fatal(lang, out)
		}

		last = out
		a.logger.Warn("image analysis attempt failed", "attempt", attempt, "reason", out.Reason, "error", out.Err)

		if attempt < len(tiers)-1 {
			if !sleep(ctx, a.cfg.BackoffStep*time.Duration(attempt+1)) {
				return verdict.Result{}, ErrCancelled
			}
		}
	}

	return verdict.Failure(failureMessage(lang, last.Reason, true)), nil
}

// AnalyzeText checks the local term list first and only calls the service
// when nothing matched. There is a single attempt.
func (a *Analyzer) AnalyzeText(ctx context.Context, req Request) (verdict.Result, error) {
	req.Frames = nil
	req.Text = strings.TrimSpace(req.Text)
	if err := req.Validate(); err != nil {
		return verdict.Result{}, err
	}

	lang := req.language()

	if a.matcher != nil {
		if matches := a.matcher.Match(req.Text); len(matches) > 0 {
			a.logger.Info("text matched locally", "matches", len(matches))
			return verdict.FastPath(message(lang, msgFastPath), matches), nil
		}
	}

	out := a.attempt(ctx, a.cfg.TextTimeout, req, nil)

	switch out.Kind {
	case KindSuccess:
		return out.Result, nil
	case KindCancelled:
		return verdict.Result{}, ErrCancelled
	case KindFatal:
		return a.fatal(lang, out)
	}

	a.logger.Warn("text analysis failed", "reason", out.Reason, "error", out.Err)
	return verdict.Failure(failureMessage(lang, out.Reason, false)), nil
}

// AnalyzeBarcode resolves the barcode to an ingredient list and analyses it
// as text. A product without ingredients is DOUBTFUL without any analysis.
func (a *Analyzer) AnalyzeBarcode(ctx context.Context, barcode string, req Request) (verdict.Result, error) {
	lang := req.language()

	if a.products == nil {
		return verdict.Result{}, errors.New("product lookup not configured")
	}

	p, err := a.products.Lookup(ctx, barcode, lang)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return verdict.Result{}, ErrCancelled
		case errors.Is(err, product.ErrInvalidBarcode):
			return verdict.Result{}, err
		case errors.Is(err, product.ErrNotFound):
			a.logger.Info("barcode not found", "barcode", barcode)
			return verdict.Failure(message(lang, msgProductNotFound)), nil
		default:
			a.logger.Warn("product lookup failed", "barcode", barcode, "error", err)
			return verdict.Failure(message(lang, msgConnection)), nil
		}
	}

	if !p.HasIngredients() {
		return verdict.NoIngredients(message(lang, msgNoIngredients)), nil
	}

	req.Text = p.Ingredients
	return a.AnalyzeText(ctx, req)
}

func (a *Analyzer) attempt(ctx context.Context, timeout time.Duration, req Request, images []string) Outcome {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := a.client.send(attemptCtx, req, images)
	if ctx.Err() != nil {
		return Outcome{Kind: KindCancelled, Err: ctx.Err()}
	}
	return out
}

func (a *Analyzer) fatal(lang shared.Language, out Outcome) (verdict.Result, error) {
	switch out.Reason {
	case ReasonQuotaExceeded:
		return verdict.Failure(message(lang, msgQuotaExceeded)), ErrQuotaExceeded
	case ReasonUpdateRequired:
		return verdict.Failure(message(lang, msgUpdateRequired)), ErrUpdateRequired
	default:
		return verdict.Failure(message(lang, msgConnection)), out.Err
	}
}

// prepare encodes every frame at the tier in parallel. Results keep the
// frames' original order.
func (a *Analyzer) prepare(ctx context.Context, frames []imaging.Frame, tier Tier) ([]string, error) {
	encoded := make([]string, len(frames))
	g, gctx := errgroup.WithContext(ctx)

	for i, f := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := a.pre.ToMachineReadable(f, tier.MaxDimension, tier.Quality)
			encoded[i] = base64.StdEncoding.EncodeToString(out.Data)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return encoded, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
