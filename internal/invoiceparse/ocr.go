package invoiceparse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/taxmate/internal/config"
	"github.com/smallbiznis/taxmate/internal/observability/tracing"
)

var ErrOCRUnavailable = errors.New("ocr_unavailable")

// Extractor reads text from an image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, contentType string) (string, error)
}

// HTTPExtractor posts the raw image to an OCR sidecar that answers
// {"text": "..."}.
type HTTPExtractor struct {
	endpoint string
	client   *http.Client
}

func NewHTTPExtractor(cfg config.Config) Extractor {
	endpoint := strings.TrimSpace(cfg.OCR.Endpoint)
	if endpoint == "" {
		return unavailableExtractor{}
	}
	timeout := time.Duration(cfg.OCR.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPExtractor{
		endpoint: endpoint,
		client:   tracing.WrapHTTPClient(&http.Client{Timeout: timeout}),
	}
}

type ocrResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

func (e *HTTPExtractor) Extract(ctx context.Context, image []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(image))
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read ocr response: %w", err)
	}

	var out ocrResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode ocr response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Error == "" {
			out.Error = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("ocr failed with status %d: %s", resp.StatusCode, out.Error)
	}
	return out.Text, nil
}

type unavailableExtractor struct{}

func (unavailableExtractor) Extract(context.Context, []byte, string) (string, error) {
	return "", ErrOCRUnavailable
}
