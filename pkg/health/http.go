package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPChecker probes a dependent HTTP endpoint, such as a replica's own
// status page, rather than the primary database connection itself — the
// reconciler reaches for TCP or exec checks against the Postgres port
// and reserves HTTPChecker for auxiliary services fronted by HTTP.
type HTTPChecker struct {
	// URL is the endpoint to probe, e.g. "http://10.0.0.5:8080/health".
	URL string

	// Method is the HTTP method to use (default: GET).
	Method string

	// Headers are sent with every request.
	Headers map[string]string

	// ExpectedStatusMin/Max bound the status codes treated as healthy
	// (default: 200-399).
	ExpectedStatusMin int
	ExpectedStatusMax int

	// Client performs the request; overridden in tests to point at an
	// httptest.Server.
	Client *http.Client
}

// NewHTTPChecker returns an HTTPChecker with a 10s client timeout and a
// 200-399 healthy range.
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:               url,
		Method:            "GET",
		Headers:           make(map[string]string),
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 399,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Check issues one HTTP request and reports whether the response status
// fell inside the configured range.
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, h.Method, h.URL, nil)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("building request for %s: %v", h.URL, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("%s %s: %v", h.Method, h.URL, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode >= h.ExpectedStatusMin && resp.StatusCode <= h.ExpectedStatusMax

	message := fmt.Sprintf("%s %s -> %d %s", h.Method, h.URL, resp.StatusCode, http.StatusText(resp.StatusCode))
	if !healthy {
		message = fmt.Sprintf("%s (wanted %d-%d)", message, h.ExpectedStatusMin, h.ExpectedStatusMax)
	}

	return Result{
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type reports CheckTypeHTTP.
func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}

// WithMethod overrides the HTTP method.
func (h *HTTPChecker) WithMethod(method string) *HTTPChecker {
	h.Method = method
	return h
}

// WithHeader sets one request header, e.g. an auth token for a
// secured status endpoint.
func (h *HTTPChecker) WithHeader(key, value string) *HTTPChecker {
	h.Headers[key] = value
	return h
}

// WithStatusRange overrides the healthy status-code range.
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// WithTimeout overrides the client's request timeout.
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}
