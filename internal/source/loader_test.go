package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"eventsync/internal/client"
	"eventsync/internal/config"
)

func TestDirectLoaderFeedsAdapter(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(alleventsHTML))
	}))
	defer srv.Close()

	deps := testDeps(DirectLoader{HTTP: srv.Client(), UserAgent: "eventsync-test"})
	a := &AllEvents{Config: config.SourceConfig{URL: srv.URL + "/chennai/business", City: "Chennai"}, Deps: deps}
	batch, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(batch.Candidates) != 2 {
		t.Fatalf("candidates=%d want=2", len(batch.Candidates))
	}
	if gotUA != "eventsync-test" {
		t.Fatalf("user agent=%q", gotUA)
	}
}

func TestDirectLoaderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	sess, err := DirectLoader{HTTP: srv.Client()}.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sess.Close()
	_, err = sess.Load(context.Background(), srv.URL)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden {
		t.Fatalf("err=%v", err)
	}
	if apiErr.Retryable() {
		t.Fatalf("403 should not be retryable")
	}
}

func TestLoadersFor(t *testing.T) {
	direct := &staticLoader{}
	l := Loaders{Direct: direct}
	if got, err := l.For(""); err != nil || got != PageLoader(direct) {
		t.Fatalf("empty name should map to direct: %v %v", got, err)
	}
	if _, err := l.For("proxy"); err == nil {
		t.Fatalf("expected error for unconfigured proxy")
	}
	if _, err := l.For("carrier-pigeon"); err == nil {
		t.Fatalf("expected error for unknown loader")
	}
}
