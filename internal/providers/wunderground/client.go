package wunderground

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// API: Weather Underground conditions + forecast + alerts in a single call, keyed by lat,lon.
// Sample request: https://api.wunderground.com/api/<key>/conditions/forecast/alert/q/40.759211,-73.984638.json
const (
	baseURL        = "https://api.wunderground.com"
	defaultTimeout = 10 * time.Second
)

// ErrInvalidBody is returned when the response body is not a decodable JSON envelope
var ErrInvalidBody = errors.New("invalid response body")

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch returned status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// NewClient creates a client for the public endpoint
func NewClient(apiKey string, logger *slog.Logger) *Client {
	return NewClientWithBaseURL(baseURL, apiKey, &http.Client{Timeout: defaultTimeout}, logger)
}

// NewClientWithBaseURL creates a client against a custom endpoint and HTTP client
func NewClientWithBaseURL(base, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		apiKey:     apiKey,
		logger:     logger.With("component", "wunderground-client"),
	}
}

// ConditionsURL builds the request URL for the given coordinate
func (c *Client) ConditionsURL(latitude, longitude float64) (*url.URL, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + fmt.Sprintf("/api/%s/conditions/forecast/alert/q/%s,%s.json",
		c.apiKey,
		strconv.FormatFloat(latitude, 'f', -1, 64),
		strconv.FormatFloat(longitude, 'f', -1, 64),
	)

	return u, nil
}

// GetConditions fetches current observation data for the given coordinate
func (c *Client) GetConditions(ctx context.Context, latitude, longitude float64) (*ConditionsAPIResponse, error) {
	u, err := c.ConditionsURL(latitude, longitude)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug("fetching conditions", "latitude", latitude, "longitude", longitude)

	// Make the HTTP request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Parse the JSON response
	var apiResp ConditionsAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	return &apiResp, nil
}
