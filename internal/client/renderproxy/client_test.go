package renderproxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"eventsync/internal/client"
)

func TestBuildURL(t *testing.T) {
	c := NewClient(nil, Options{BaseURL: "http://proxy.local/", APIKey: "k", Render: true, KeepHeaders: true})
	raw, err := c.BuildURL("https://www.meetup.com/find/?location=in--Chennai")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	u, _ := url.Parse(raw)
	q := u.Query()
	if q.Get("api_key") != "k" || q.Get("render") != "true" || q.Get("keep_headers") != "true" {
		t.Fatalf("query=%v", q)
	}
	if q.Get("url") != "https://www.meetup.com/find/?location=in--Chennai" {
		t.Fatalf("url param=%q", q.Get("url"))
	}
}

func TestFetchWithoutKey(t *testing.T) {
	c := NewClient(nil, Options{})
	if _, err := c.Fetch(context.Background(), "https://example.com"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err=%v want=%v", err, ErrNoAPIKey)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("<html>" + r.URL.Query().Get("url") + "</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), Options{BaseURL: srv.URL, APIKey: "k", Retries: 2})
	body, err := c.Fetch(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if body != "<html>https://example.com/x</html>" {
		t.Fatalf("body=%q", body)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls=%d want=2", got)
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), Options{BaseURL: srv.URL, APIKey: "k", Retries: 3})
	_, err := c.Fetch(context.Background(), "https://example.com")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Fatalf("err=%v want 403 APIError", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls=%d want=1", got)
	}
}
