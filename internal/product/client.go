package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/eleven-am/label-scan/internal/shared"
)

const DefaultBaseURL = "https://world.openfoodfacts.org"

var (
	ErrNotFound       = errors.New("product not found")
	ErrInvalidBarcode = errors.New("invalid barcode")
)

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Product is the subset of a product record the pipeline needs. Ingredients
// is already resolved to the preferred language.
type Product struct {
	Barcode     string `json:"barcode"`
	Name        string `json:"name"`
	Ingredients string `json:"ingredients"`
}

func (p Product) HasIngredients() bool {
	return strings.TrimSpace(p.Ingredients) != ""
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "label-scan/1.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
	}
}

type offResponse struct {
	Status  int        `json:"status"`
	Product offProduct `json:"product"`
}

type offProduct struct {
	Name              string `json:"product_name"`
	IngredientsText   string `json:"ingredients_text"`
	IngredientsTextEN string `json:"ingredients_text_en"`
	IngredientsTextAR string `json:"ingredients_text_ar"`
}

func (p offProduct) ingredients(lang shared.Language) string {
	candidates := []string{p.IngredientsTextEN, p.IngredientsText}
	if lang == shared.LanguageArabic {
		candidates = []string{p.IngredientsTextAR, p.IngredientsTextEN, p.IngredientsText}
	}
	for _, c := range candidates {
		if s := strings.TrimSpace(c); s != "" {
			return s
		}
	}
	return ""
}

func (c *Client) Lookup(ctx context.Context, barcode string, lang shared.Language) (*Product, error) {
	barcode = strings.TrimSpace(barcode)
	if !validBarcode(barcode) {
		return nil, ErrInvalidBarcode
	}

	q := url.Values{}
	q.Set("fields", "product_name,ingredients_text,ingredients_text_en,ingredients_text_ar")
	endpoint := fmt.Sprintf("%s/api/v2/product/%s.json?%s", c.baseURL, barcode, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("product request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product lookup returned status %d", resp.StatusCode)
	}

	var body offResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	if body.Status == 0 {
		return nil, ErrNotFound
	}

	return &Product{
		Barcode:     barcode,
		Name:        strings.TrimSpace(body.Product.Name),
		Ingredients: body.Product.ingredients(lang),
	}, nil
}

func validBarcode(s string) bool {
	if len(s) < 6 || len(s) > 14 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
