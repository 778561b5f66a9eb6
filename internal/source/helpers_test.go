package source

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// fixedNow is 2026-10-16 10:00 UTC.
var fixedNow = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

type staticLoader struct {
	pages  map[string]string
	opened int32
	closed int32
}

func (l *staticLoader) Open(ctx context.Context) (Session, error) {
	atomic.AddInt32(&l.opened, 1)
	return &staticSession{l: l}, nil
}

type staticSession struct {
	l *staticLoader
}

func (s *staticSession) Load(ctx context.Context, url string) (string, error) {
	html, ok := s.l.pages[url]
	if !ok {
		return "", fmt.Errorf("no fixture for %s", url)
	}
	return html, nil
}

func (s *staticSession) Close() error {
	atomic.AddInt32(&s.l.closed, 1)
	return nil
}

func testDeps(loader PageLoader) Deps {
	return Deps{
		Loader:   loader,
		Images:   DefaultImagePicker(),
		Location: ist,
		Now:      func() time.Time { return fixedNow },
	}
}
