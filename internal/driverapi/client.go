package driverapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"crm/internal/domain"
)

var (
	// ErrNotFound is returned when the API answers 404 for a driver.
	ErrNotFound = errors.New("driver not found")

	// ErrInvalidWorkspace is returned when no workspace id is given.
	ErrInvalidWorkspace = errors.New("invalid workspace id")
)

// StatusError is returned for any other non-2xx answer.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("driver api: %s returned %d", e.URL, e.StatusCode)
}

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 512

// Client talks to the remote driver analytics API.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a client for baseURL with a per-request timeout.
// When nrApp is not nil, outgoing requests are traced as external segments.
func NewClient(baseURL string, timeout time.Duration, nrApp *newrelic.Application, opts ...Option) *Client {
	transport := http.DefaultTransport
	if nrApp != nil {
		transport = newrelic.NewRoundTripper(transport)
	}

	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetDriver fetches one driver. An empty driverID asks for the workspace's
// current driver.
func (c *Client) GetDriver(ctx context.Context, workspace, driverID string) (*domain.DriverRecord, error) {
	if workspace == "" {
		return nil, ErrInvalidWorkspace
	}

	endpoint := c.baseURL + "/drivers/" + url.PathEscape(workspace)
	if driverID != "" {
		endpoint += "/" + url.PathEscape(driverID)
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var record domain.DriverRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("decode driver: %w", err)
	}
	if record.DriverOriginID == "" {
		return nil, ErrNotFound
	}
	return &record, nil
}

// ListDrivers fetches a page of drivers. The endpoint answers either with a
// bare array or with {"data": [...]}; both are accepted.
func (c *Client) ListDrivers(ctx context.Context, workspace string, limit, offset int) ([]domain.DriverRecord, error) {
	if workspace == "" {
		return nil, ErrInvalidWorkspace
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))
	endpoint := c.baseURL + "/drivers/" + url.PathEscape(workspace) + "/list?" + query.Encode()

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return decodeDriverList(body)
}

func decodeDriverList(body []byte) ([]domain.DriverRecord, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var records []domain.DriverRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode driver list: %w", err)
		}
		return records, nil
	}

	var envelope struct {
		Data []domain.DriverRecord `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode driver list: %w", err)
	}
	return envelope.Data, nil
}

// TotalRevenue returns the raw revenu-general payload for the range.
func (c *Client) TotalRevenue(ctx context.Context, workspace string, start, end time.Time) (json.RawMessage, error) {
	return c.rangeQuery(ctx, "revenu-general", workspace, start, end)
}

// DailyRevenue returns the raw revenu-journalier payload for the range.
func (c *Client) DailyRevenue(ctx context.Context, workspace string, start, end time.Time) (json.RawMessage, error) {
	return c.rangeQuery(ctx, "revenu-journalier", workspace, start, end)
}

// CoreElectron returns the raw core-electron payload for the range.
func (c *Client) CoreElectron(ctx context.Context, workspace string, start, end time.Time) (json.RawMessage, error) {
	return c.rangeQuery(ctx, "core-electron", workspace, start, end)
}

func (c *Client) rangeQuery(ctx context.Context, resource, workspace string, start, end time.Time) (json.RawMessage, error) {
	if workspace == "" {
		return nil, ErrInvalidWorkspace
	}

	endpoint := fmt.Sprintf("%s/%s/%s/%s/%s",
		c.baseURL, resource, url.PathEscape(workspace), FormatDate(start), FormatDate(end))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%s: response is not valid JSON", resource)
	}
	return json.RawMessage(body), nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("url", endpoint).Msg("driver api request failed")
		return nil, fmt.Errorf("driver api: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("driver api request")

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{URL: endpoint, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
