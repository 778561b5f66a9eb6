package source

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const unsplashParams = "?q=80&w=1000&auto=format&fit=crop"

// DefaultFallbackImages is the curated pool used when a listing has no
// usable image.
var DefaultFallbackImages = []string{
	"https://images.unsplash.com/photo-1540575861501-7cf05a4b125a" + unsplashParams,
	"https://images.unsplash.com/photo-1505373630103-89d00c2a5851" + unsplashParams,
	"https://images.unsplash.com/photo-1475721027785-f74eccf877e2" + unsplashParams,
	"https://images.unsplash.com/photo-1511795409834-ef04bbd61622" + unsplashParams,
	"https://images.unsplash.com/photo-1582192730841-2a682d7375f9" + unsplashParams,
	"https://images.unsplash.com/photo-1431540015161-0bf868a2d407" + unsplashParams,
	"https://images.unsplash.com/photo-1560179707-f14e90ef3623" + unsplashParams,
	"https://images.unsplash.com/photo-1587825140708-dfaf72ae4b04" + unsplashParams,
}

var defaultRejectPatterns = []string{
	"placeholder",
	"og-logo",
	"logo.jpg",
	"logo.png",
	"/logo",
	"blank.gif",
	"spacer.gif",
	"data:image",
}

var srcsetDescriptor = regexp.MustCompile(`\s+\d+(\.\d+)?[wx]\s*(,|$)`)

type ImagePicker struct {
	Pool   []string
	Reject []string
}

func DefaultImagePicker() ImagePicker {
	return ImagePicker{Pool: DefaultFallbackImages, Reject: defaultRejectPatterns}
}

// Resolve turns a raw src/srcset value into an absolute URL, or "" when it is
// unusable.
func (p ImagePicker) Resolve(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "data:") {
		return ""
	}
	// srcset: take the first candidate's url
	if srcsetDescriptor.MatchString(raw) {
		if fields := strings.Fields(raw); len(fields) > 0 {
			raw = strings.TrimSuffix(fields[0], ",")
		}
	}
	abs := absURL(base, raw)
	if abs == "" {
		return ""
	}
	lower := strings.ToLower(abs)
	reject := p.Reject
	if reject == nil {
		reject = defaultRejectPatterns
	}
	for _, pat := range reject {
		if strings.Contains(lower, pat) {
			return ""
		}
	}
	return abs
}

// Pick returns the first usable candidate, or "" when none survive.
func (p ImagePicker) Pick(base *url.URL, candidates ...string) string {
	for _, c := range candidates {
		if v := p.Resolve(base, c); v != "" {
			return v
		}
	}
	return ""
}

// Fallback picks from the pool by a hash of the title, so the same title
// always maps to the same image.
func (p ImagePicker) Fallback(title string) string {
	pool := p.Pool
	if pool == nil {
		pool = DefaultFallbackImages
	}
	if len(pool) == 0 {
		return ""
	}
	key := strings.ToLower(collapseSpace(title))
	return pool[xxhash.Sum64String(key)%uint64(len(pool))]
}
