package source

import (
	"net/url"
	"testing"
)

func TestResolveImage(t *testing.T) {
	base, _ := url.Parse("https://allevents.in/chennai/business")
	p := DefaultImagePicker()
	tests := []struct {
		raw  string
		want string
	}{
		{"//cdn2.allevents.in/banner.jpg", "https://cdn2.allevents.in/banner.jpg"},
		{"/img/banner.png", "https://allevents.in/img/banner.png"},
		{"https://cdn.example.com/a.jpg 1x, https://cdn.example.com/b.jpg 2x", "https://cdn.example.com/a.jpg"},
		{"https://cdn.example.com/w_300,h_200/a.jpg", "https://cdn.example.com/w_300,h_200/a.jpg"},
		{"https://allevents.in/img/og-logo.png", ""},
		{"https://cdn.example.com/placeholder.png", ""},
		{"data:image/gif;base64,R0lGOD", ""},
		{"/images/blank.gif", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := p.Resolve(base, tt.raw); got != tt.want {
			t.Fatalf("Resolve(%q)=%q want=%q", tt.raw, got, tt.want)
		}
	}
}

func TestPickFirstUsable(t *testing.T) {
	p := DefaultImagePicker()
	got := p.Pick(nil, "data:image/png;base64,xx", "https://x.test/logo.png", "https://x.test/real.jpg")
	if got != "https://x.test/real.jpg" {
		t.Fatalf("Pick=%q", got)
	}
}

func TestFallbackDeterministic(t *testing.T) {
	p := DefaultImagePicker()
	first := p.Fallback("AI Summit Chennai")
	if first == "" {
		t.Fatalf("fallback empty")
	}
	for i := 0; i < 10; i++ {
		if got := p.Fallback("ai summit  chennai"); got != first {
			t.Fatalf("fallback changed: %q vs %q", got, first)
		}
	}
	inPool := false
	for _, u := range DefaultFallbackImages {
		if u == first {
			inPool = true
		}
	}
	if !inPool {
		t.Fatalf("fallback %q not from pool", first)
	}
	if got := (ImagePicker{Pool: []string{}}).Fallback("x"); got != "" {
		t.Fatalf("empty pool should give empty fallback, got %q", got)
	}
}
