package subscription

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPProvider reads subscriptions from the provider's REST API
type HTTPProvider struct {
	client *resty.Client
}

// NewHTTPProvider creates a provider client. Retries are left to the
// caller's RetryPolicy.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetAuthToken(apiKey).
		SetHeader("Accept", "application/json")
	return &HTTPProvider{client: client}
}

type providerError struct {
	Error string `json:"error"`
}

// StatusError is a non-2xx provider response
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying may help
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// FetchSubscription calls GET /v1/subscriptions/{resellerID}
func (p *HTTPProvider) FetchSubscription(ctx context.Context, resellerID string) (*ProviderSubscription, error) {
	var (
		result  ProviderSubscription
		failure providerError
	)
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&failure).
		Get("/v1/subscriptions/" + url.PathEscape(resellerID))
	if err != nil {
		return nil, fmt.Errorf("failed to call provider: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, ErrNoSubscription
	case resp.IsError():
		return nil, &StatusError{StatusCode: resp.StatusCode(), Message: failure.Error}
	}
	return &result, nil
}
