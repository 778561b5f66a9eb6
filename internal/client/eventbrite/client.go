package eventbrite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"

	"eventsync/internal/cache"
	"eventsync/internal/client"
)

const defaultDuration = 2 * time.Hour

// Client reads single events from the Eventbrite v3 API.
type Client struct {
	host       string
	token      string
	httpClient *http.Client
	cache      cache.Store
	cacheTTL   time.Duration
	retries    uint
}

type Options struct {
	BaseURL  string
	Token    string
	Cache    cache.Store
	CacheTTL time.Duration
	Retries  int
}

var ErrNoToken = errors.New("eventbrite token is not configured")

// Detail is the subset of an API event the pipeline uses.
type Detail struct {
	ID            string
	Title         string
	Description   string
	URL           string
	LogoURL       string
	Start         time.Time
	End           time.Time
	IsFree        bool
	Online        bool
	VenueName     string
	VenueAddress  string
	OrganizerName string
	Currency      string
	Capacity      *int
}

func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = client.NewHTTPClient(10 * time.Second)
	}
	host := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if host == "" {
		host = "https://www.eventbriteapi.com"
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		host:       host,
		token:      strings.TrimSpace(opts.Token),
		httpClient: httpClient,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		retries:    uint(retries),
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.token != ""
}

// GetEvent returns the event with venue, organizer and ticket classes
// expanded. Successful bodies are cached for the configured ttl.
func (c *Client) GetEvent(ctx context.Context, id string) (*Detail, error) {
	if !c.Enabled() {
		return nil, ErrNoToken
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("event id is required")
	}

	if c.cache != nil {
		if body, ok, err := c.cache.Get(ctx, id); err == nil && ok {
			return ParseDetail(body)
		}
	}

	query := url.Values{}
	query.Set("expand", "venue,ticket_classes,organizer")
	path := "/v3/events/" + url.PathEscape(id) + "/"

	op := func() ([]byte, error) {
		body, err := c.doRequest(ctx, path, query)
		if err == nil {
			return body, nil
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.retries+1),
	)
	if err != nil {
		return nil, err
	}

	detail, err := ParseDetail(body)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		_ = c.cache.Set(ctx, id, body, c.cacheTTL)
	}
	return detail, nil
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &client.APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// ParseDetail extracts a Detail from a v3 event body.
func ParseDetail(body []byte) (*Detail, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid event json")
	}
	doc := gjson.ParseBytes(body)

	start, ok := parseWhen(doc.Get("start"))
	if !ok {
		return nil, fmt.Errorf("event %s: missing start", doc.Get("id").String())
	}
	end, ok := parseWhen(doc.Get("end"))
	if !ok || !end.After(start) {
		end = start.Add(defaultDuration)
	}

	d := &Detail{
		ID:            doc.Get("id").String(),
		Title:         strings.TrimSpace(doc.Get("name.text").String()),
		Description:   strings.TrimSpace(doc.Get("description.text").String()),
		URL:           doc.Get("url").String(),
		LogoURL:       firstString(doc, "logo.original.url", "logo.url"),
		Start:         start,
		End:           end,
		IsFree:        doc.Get("is_free").Bool(),
		Online:        doc.Get("online_event").Bool(),
		OrganizerName: strings.TrimSpace(doc.Get("organizer.name").String()),
		Currency:      doc.Get("currency").String(),
	}
	if capacity := doc.Get("capacity"); capacity.Exists() && capacity.Type == gjson.Number {
		n := int(capacity.Int())
		d.Capacity = &n
	}

	venue := doc.Get("venue")
	if venue.Exists() && venue.Type == gjson.JSON {
		d.VenueName = strings.TrimSpace(venue.Get("name").String())
		d.VenueAddress = strings.TrimSpace(firstString(venue,
			"address.localized_address_display",
			"address.address_1",
			"address.city",
		))
	} else {
		d.Online = true
	}
	if d.Online {
		if d.VenueName == "" {
			d.VenueName = "Online Event"
		}
		if d.VenueAddress == "" {
			d.VenueAddress = "Online"
		}
	}
	if d.OrganizerName == "" {
		d.OrganizerName = "Unknown Organizer"
	}
	return d, nil
}

// parseWhen prefers the utc instant and falls back to local time in the
// event's own timezone.
func parseWhen(v gjson.Result) (time.Time, bool) {
	if !v.Exists() {
		return time.Time{}, false
	}
	if raw := v.Get("utc").String(); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC(), true
		}
	}
	raw := v.Get("local").String()
	if raw == "" {
		return time.Time{}, false
	}
	loc := time.UTC
	if tz := v.Get("timezone").String(); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", raw, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func firstString(v gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := strings.TrimSpace(v.Get(p).String()); s != "" {
			return s
		}
	}
	return ""
}
