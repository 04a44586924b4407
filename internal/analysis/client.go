package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 1 << 20

// Client performs single attempts against the classification service.
// Timeouts come from the caller's context; the http.Client has none.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appVersion string
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	cfg = cfg.withDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		appVersion: cfg.AppVersion,
	}
}

func (c *Client) send(ctx context.Context, req Request, images []string) Outcome {
	body, err := json.Marshal(wireRequest{Images: images, Text: req.Text})
	if err != nil {
		return Outcome{Kind: KindFatal, Reason: ReasonBadResponse, Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze", bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: KindFatal, Reason: ReasonConnection, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-user-id", req.userID())
	httpReq.Header.Set("x-language", req.language().String())
	httpReq.Header.Set("x-ingredient-language", string(req.naming()))
	httpReq.Header.Set("x-app-version", c.appVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classify(0, nil, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classify(0, nil, fmt.Errorf("read response: %w", err))
	}

	return classify(resp.StatusCode, respBody, nil)
}

// IsAvailable reports whether the service answers at all. Any HTTP status
// counts, since the root path is not part of the contract.
func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}
