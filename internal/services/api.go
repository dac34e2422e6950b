// Outbound HTTP calls to the Spotify Web API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/shared"
	"golang.org/x/time/rate"
)

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// ProviderRequest describes one call relative to the API base URL.
type ProviderRequest struct {
	Method   string
	Endpoint string
	Body     any
	Query    url.Values
}

// UpstreamError is a failed call: a non-2xx status, or a transport failure when StatusCode is 0.
type UpstreamError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       []byte
	// Payload is the decoded JSON body, nil when the body was empty or not JSON.
	Payload any
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request %s %s failed: %v", e.Method, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("request %s %s failed with status code %d", e.Method, e.Endpoint, e.StatusCode)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrUpstreamAPI}
	}
	return []error{shared.ErrUpstreamAPI, e.Err}
}

// ForwarderOptions configures [NewForwarder].
type ForwarderOptions struct {
	BaseURL string
	Client  *http.Client
	// RateLimit is the outbound requests per second; zero or less disables limiting.
	RateLimit float64
	Timeout   time.Duration
	Logger    *log.Logger
}

// Forwarder performs authenticated calls against the Web API.
type Forwarder struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewForwarder creates a [Forwarder]; the base URL defaults to the public Web API.
func NewForwarder(opts ForwarderOptions) *Forwarder {
	if opts.BaseURL == "" {
		opts.BaseURL = SpotifyAPIBaseURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &Forwarder{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: opts.Client,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     shared.WithLogger(opts.Logger, "component", "services.forwarder"),
	}
}

// Forward performs req with the given access token.
func (f *Forwarder) Forward(ctx context.Context, token string, req ProviderRequest) (*APIResponse, error) {
	fail := func(err error) *UpstreamError {
		f.logger.Error("upstream request failed", "method", req.Method, "endpoint", req.Endpoint, "error", err)
		return &UpstreamError{Method: req.Method, Endpoint: req.Endpoint, Err: err}
	}

	fullURL := f.baseURL + req.Endpoint
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fail(fmt.Errorf("failed to encode body: %w", err))
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fail(fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fail(fmt.Errorf("rate limiter: %w", err))
	}

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, fail(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fail(fmt.Errorf("failed to read response: %w", err))
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &jsonData); err == nil {
			apiResp.IsJSON = true
			apiResp.JSONData = jsonData
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		f.logger.Error("upstream returned error status",
			"method", req.Method, "endpoint", req.Endpoint, "status", resp.StatusCode, "body", string(data))
		return nil, &UpstreamError{
			Method:     req.Method,
			Endpoint:   req.Endpoint,
			StatusCode: resp.StatusCode,
			Body:       data,
			Payload:    jsonData,
		}
	}

	f.logger.Debug("upstream request", "method", req.Method, "endpoint", req.Endpoint, "status", resp.StatusCode)
	return apiResp, nil
}
