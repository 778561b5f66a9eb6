package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"eventsync/internal/client"
	"eventsync/internal/client/renderproxy"
	"eventsync/internal/config"
)

// PageLoader opens a session that can load listing pages. Sessions are owned
// by one adapter fetch and closed on every exit path.
type PageLoader interface {
	Open(ctx context.Context) (Session, error)
}

type Session interface {
	Load(ctx context.Context, url string) (string, error)
	Close() error
}

const (
	LoaderDirect  = "direct"
	LoaderProxy   = "proxy"
	LoaderBrowser = "browser"
)

// DirectLoader fetches raw HTML over plain HTTP.
type DirectLoader struct {
	HTTP      *http.Client
	UserAgent string
}

func (l DirectLoader) Open(ctx context.Context) (Session, error) {
	httpClient := l.HTTP
	if httpClient == nil {
		httpClient = client.NewHTTPClient(30 * time.Second)
	}
	ua := l.UserAgent
	if ua == "" {
		ua = client.DefaultUserAgent
	}
	return &directSession{http: httpClient, ua: ua}, nil
}

type directSession struct {
	http *http.Client
	ua   string
}

func (s *directSession) Load(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &client.APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}

func (s *directSession) Close() error { return nil }

// ProxyLoader renders pages through the rendering proxy.
type ProxyLoader struct {
	Client *renderproxy.Client
}

func (l ProxyLoader) Open(ctx context.Context) (Session, error) {
	if l.Client == nil {
		return nil, fmt.Errorf("render proxy not configured")
	}
	return proxySession{c: l.Client}, nil
}

type proxySession struct {
	c *renderproxy.Client
}

func (s proxySession) Load(ctx context.Context, url string) (string, error) {
	return s.c.Fetch(ctx, url)
}

func (s proxySession) Close() error { return nil }

// BrowserLoader drives a headless Chrome through chromedp. Each session owns
// its own browser process.
type BrowserLoader struct {
	Config config.BrowserConfig
}

func (l BrowserLoader) Open(ctx context.Context) (Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", l.Config.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if l.Config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.Config.ExecPath))
	}
	ua := strings.TrimSpace(l.Config.UserAgent)
	if ua == "" {
		ua = client.DefaultUserAgent
	}
	opts = append(opts, chromedp.UserAgent(ua))

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	// start the browser now so a missing binary fails Open, not Load
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &browserSession{
		tab:       tabCtx,
		cancel:    func() { cancelTab(); cancelAlloc() },
		scrolls:   l.Config.Scrolls,
		scrollGap: l.Config.ScrollGap,
	}, nil
}

type browserSession struct {
	tab       context.Context
	cancel    func()
	scrolls   int
	scrollGap time.Duration
}

// Load navigates, scrolls to trigger lazy loading, and returns the DOM.
// ctx bounds the whole load; the session context owns the browser.
func (s *browserSession) Load(ctx context.Context, url string) (string, error) {
	tab := s.tab
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		tab, cancel = context.WithDeadline(tab, deadline)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	gap := s.scrollGap
	if gap <= 0 {
		gap = 2 * time.Second
	}
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	for i := 0; i < s.scrolls; i++ {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(gap),
		)
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err := chromedp.Run(tab, actions...); err != nil {
		return "", fmt.Errorf("browser load %s: %w", url, err)
	}
	return html, nil
}

func (s *browserSession) Close() error {
	s.cancel()
	return nil
}

// Loaders picks a loader by name.
type Loaders struct {
	Direct  PageLoader
	Proxy   PageLoader
	Browser PageLoader
}

func (l Loaders) For(name string) (PageLoader, error) {
	var out PageLoader
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LoaderDirect:
		out = l.Direct
	case LoaderProxy:
		out = l.Proxy
	case LoaderBrowser:
		out = l.Browser
	default:
		return nil, fmt.Errorf("unknown loader %q", name)
	}
	if out == nil {
		return nil, fmt.Errorf("loader %q not configured", name)
	}
	return out, nil
}
