// Package idp calls the external document extraction services.
package idp

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

	"github.com/hyperjump/docverify/internal/stream"
	"github.com/hyperjump/docverify/pkg/utils"
	"go.uber.org/zap"
)

const (
	maxErrorBody  = 500
	userAgent     = "docverify/1.0"
	acceptHeaders = "application/json, application/jsonl"
)

var (
	// ErrTimeout is returned when an extraction call exceeds its overall deadline.
	ErrTimeout = errors.New("extraction request timed out")
	// ErrMissingAPIKey is returned before any call when no API key is configured.
	ErrMissingAPIKey = errors.New("IDP API key not configured")
	// ErrInvalidResponse is returned for empty or non-object response bodies.
	ErrInvalidResponse = errors.New("IDP API returned invalid data")
)

// APIError is a non-2xx answer from an extraction service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("IDP API error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// MedicalExtractor extracts lab report data from a stored document.
type MedicalExtractor interface {
	ExtractMedical(ctx context.Context, sourceURL string) (*stream.Result, error)
}

// FinanceExtractor extracts identity and income fields for a proposal.
type FinanceExtractor interface {
	ExtractFinance(ctx context.Context, proposalNumber string) (map[string]any, error)
}

// Config holds service endpoints and bounds.
type Config struct {
	MedicalURL     string
	FinanceURL     string
	APIKey         string
	RequestTimeout time.Duration
	FinanceTimeout time.Duration
}

// Client implements both extractor ports over HTTP.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	reassembler *stream.Reassembler
	logger      *zap.Logger
}

// NewClient creates a client. Streaming medical responses are combined by reassembler.
func NewClient(cfg Config, reassembler *stream.Reassembler, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 20 * time.Minute
	}
	if cfg.FinanceTimeout <= 0 {
		cfg.FinanceTimeout = 60 * time.Second
	}
	if reassembler == nil {
		reassembler = stream.NewReassembler(stream.DefaultOptions(), logger)
	}
	return &Client{
		cfg:         cfg,
		httpClient:  &http.Client{},
		reassembler: reassembler,
		logger:      logger,
	}
}

// ExtractMedical uploads sourceURL for extraction. Streamed responses are reassembled
// page by page; a plain JSON response is returned as a single done page.
func (c *Client) ExtractMedical(ctx context.Context, sourceURL string) (*stream.Result, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"s3_url": sourceURL, "api_key": c.cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.MedicalURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", acceptHeaders)
	req.Header.Set("User-Agent", userAgent)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.timeoutOr(ctx, fmt.Errorf("failed to send request: %w", err))
	}
	if apiErr := statusError(resp); apiErr != nil {
		c.logger.Warn("medical extraction failed", zap.Int("status", apiErr.StatusCode), zap.String("body", apiErr.Body))
		return nil, apiErr
	}

	if isStreaming(resp) {
		c.logger.Info("processing streaming extraction response", zap.String("content_type", resp.Header.Get("Content-Type")))
		res, err := c.reassembler.Reassemble(ctx, resp.Body)
		if err != nil {
			return nil, c.timeoutOr(ctx, err)
		}
		return res, nil
	}

	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.timeoutOr(ctx, fmt.Errorf("failed to read response: %w", err))
	}
	doc, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	combined, err := stream.CombinePages([]map[string]any{doc})
	if err != nil {
		return nil, err
	}
	return &stream.Result{
		Status:        stream.StatusDone,
		Document:      combined,
		Pages:         1,
		BytesReceived: int64(len(raw)),
		Duration:      time.Since(started),
	}, nil
}

// ExtractFinance asks the finance service to process every document of a proposal.
func (c *Client) ExtractFinance(ctx context.Context, proposalNumber string) (map[string]any, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FinanceTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"proposal_number": proposalNumber})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	url := strings.TrimRight(c.cfg.FinanceURL, "/") + "/process-document"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.timeoutOr(ctx, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()
	if apiErr := statusError(resp); apiErr != nil {
		c.logger.Warn("finance extraction failed", zap.Int("status", apiErr.StatusCode), zap.String("proposal_number", proposalNumber))
		return nil, apiErr
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.timeoutOr(ctx, fmt.Errorf("failed to read response: %w", err))
	}
	return decodeObject(raw)
}

// timeoutOr maps an expired request deadline to ErrTimeout.
func (c *Client) timeoutOr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn("extraction request timed out", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// statusError reads and closes the body of a non-2xx response.
func statusError(resp *http.Response) *APIError {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*maxErrorBody))
	resp.Body.Close()
	return &APIError{StatusCode: resp.StatusCode, Body: utils.Truncate(string(raw), maxErrorBody)}
}

func isStreaming(resp *http.Response) bool {
	for _, te := range resp.TransferEncoding {
		if strings.EqualFold(te, "chunked") {
			return true
		}
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	return strings.Contains(ct, "jsonl") || strings.Contains(ct, "stream")
}

func decodeObject(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: expected object", ErrInvalidResponse)
	}
	return doc, nil
}
