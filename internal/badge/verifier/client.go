// Package verifier is the client for the external certificate verification service.
package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"skillbadge/internal/badge/models"
)

const (
	verifyPath       = "/verify-certificate"
	fileField        = "certificate"
	nameField        = "name"
	maxResponseBytes = 4 << 20
)

// Document is the uploaded certificate.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the verification client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient HTTPDoer
}

// Client calls the verification service. It never retries.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  HTTPDoer
}

// New creates a verification client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  client,
	}
}

// errorBody matches error payloads the service returns on failure.
type errorBody struct {
	Error  string `json:"error"`
	Detail any    `json:"detail"`
}

// Verify submits doc with the expected holder name. On any failure it returns
// an all-false outcome with Error set together with a *GatewayError, so
// callers can treat "could not verify" like "verified but invalid".
func (c *Client) Verify(ctx context.Context, doc Document, expectedName string) (models.VerificationOutcome, error) {
	outcome, err := c.verify(ctx, doc, expectedName)
	if err != nil {
		var ge *GatewayError
		if errors.As(err, &ge) {
			return models.UnverifiedOutcome(ge.Message), err
		}
		return models.UnverifiedOutcome("verification failed"), transportError(ErrorInternal, "verification failed", err)
	}
	return outcome, nil
}

func (c *Client) verify(ctx context.Context, doc Document, expectedName string) (models.VerificationOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType, err := encodeForm(doc, expectedName)
	if err != nil {
		return models.VerificationOutcome{}, transportError(ErrorInternal, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+verifyPath, body)
	if err != nil {
		return models.VerificationOutcome{}, transportError(ErrorInternal, "failed to create request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.VerificationOutcome{}, transportError(ErrorTimeout, "verification service timed out", err)
		}
		return models.VerificationOutcome{}, transportError(ErrorOutage, "verification service unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.VerificationOutcome{}, transportError(ErrorBadData, "failed to read verification response", err)
	}

	switch {
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		ge := transportError(ErrorOutage, fmt.Sprintf("verification service unavailable: %d", resp.StatusCode), nil)
		ge.StatusCode = resp.StatusCode
		return models.VerificationOutcome{}, ge
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return models.VerificationOutcome{}, serviceError(resp.StatusCode, describeFailure(raw, resp.StatusCode))
	}

	var outcome models.VerificationOutcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return models.VerificationOutcome{}, transportError(ErrorBadData, "malformed verification response", err)
	}
	if outcome.Error != "" {
		return models.VerificationOutcome{}, serviceError(resp.StatusCode, outcome.Error)
	}
	if outcome.CoursesFound == nil {
		outcome.CoursesFound = []models.Course{}
	}
	return outcome, nil
}

func encodeForm(doc Document, expectedName string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, doc.Filename))
	ct := doc.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, "", err
	}
	if err := w.WriteField(nameField, expectedName); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func describeFailure(raw []byte, status int) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if s, ok := eb.Detail.(string); ok && s != "" {
			return s
		}
	}
	return fmt.Sprintf("verification service returned %d", status)
}
