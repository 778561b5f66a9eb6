package renderproxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v5"

	"eventsync/internal/client"
)

// Client loads a page through a ScraperAPI-style rendering endpoint:
// GET {base}?api_key=..&url=..&render=true&keep_headers=true returns the
// rendered HTML of url.
type Client struct {
	base        string
	apiKey      string
	render      bool
	keepHeaders bool
	retries     uint
	httpClient  *http.Client
}

type Options struct {
	BaseURL     string
	APIKey      string
	Render      bool
	KeepHeaders bool
	Retries     int
}

var ErrNoAPIKey = errors.New("render proxy api key is not configured")

func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = client.NewHTTPClient(0)
	}
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = "http://api.scraperapi.com/"
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		base:        base,
		apiKey:      strings.TrimSpace(opts.APIKey),
		render:      opts.Render,
		keepHeaders: opts.KeepHeaders,
		retries:     uint(retries),
		httpClient:  httpClient,
	}
}

// BuildURL returns the proxy URL that renders target.
func (c *Client) BuildURL(target string) (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", fmt.Errorf("parse proxy base: %w", err)
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	q.Set("url", target)
	if c.keepHeaders {
		q.Set("keep_headers", "true")
	}
	if c.render {
		q.Set("render", "true")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) Fetch(ctx context.Context, target string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}
	proxyURL, err := c.BuildURL(target)
	if err != nil {
		return "", err
	}
	op := func() (string, error) {
		body, err := c.get(ctx, proxyURL)
		if err == nil {
			return body, nil
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return "", backoff.Permanent(err)
		}
		return "", err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.retries+1),
	)
}

func (c *Client) get(ctx context.Context, fullURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", client.DefaultUserAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &client.APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}
