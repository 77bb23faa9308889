package optical

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stocktrace/stocktrace-backend/pkg/config"
)

// HTTPAPIDecoder posts the image to a remote decode endpoint and reads the
// decoded text from its JSON response.
type HTTPAPIDecoder struct {
	endpoint   string
	confidence float64
	client     *http.Client
}

type apiResponse struct {
	Text string `json:"text"`
}

// NewHTTPAPIDecoder builds a decoder around a remote endpoint. An empty
// endpoint disables the decoder.
func NewHTTPAPIDecoder(endpoint string, confidence float64, timeout time.Duration) *HTTPAPIDecoder {
	return &HTTPAPIDecoder{
		endpoint:   endpoint,
		confidence: confidence,
		client:     &http.Client{Timeout: timeout},
	}
}

func (d *HTTPAPIDecoder) Name() string {
	return "api"
}

func (d *HTTPAPIDecoder) Decode(ctx context.Context, image []byte) (*Result, error) {
	if d.endpoint == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("build decode request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call decode api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decode api returned %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse decode response: %w", err)
	}
	if payload.Text == "" {
		return nil, nil
	}
	return &Result{Content: payload.Text, Confidence: d.confidence}, nil
}

// FromConfig assembles the standard decoder chain from scan configuration.
func FromConfig(cfg config.ScanConfig) []Decoder {
	return []Decoder{
		NewCommandDecoder("zxing", cfg.ZxingCommand, cfg.ZxingConfidence),
		NewCommandDecoder("quirc", cfg.QuircCommand, cfg.QuircConfidence),
		NewHTTPAPIDecoder(cfg.APIEndpoint, cfg.APIConfidence, cfg.Timeout),
	}
}
