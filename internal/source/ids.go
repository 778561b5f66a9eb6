package source

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var (
	eventbriteIDPattern = regexp.MustCompile(`/e/[^?#]*?(\d{6,})(?:[/?#]|$)`)
	meetupIDPattern     = regexp.MustCompile(`/events/(\d+)`)
	trailingIDPattern   = regexp.MustCompile(`/(\d{6,})/?(?:[?#]|$)`)
)

// ExternalID namespaces a native id by source so ids from different sources
// and from the application never collide.
func ExternalID(source, native string) string {
	native = strings.TrimSpace(native)
	if native == "" {
		return ""
	}
	return source + "_" + native
}

// NativeID returns the first capture of pattern in link.
func NativeID(link string, pattern *regexp.Regexp) string {
	if link == "" || pattern == nil {
		return ""
	}
	m := pattern.FindStringSubmatch(link)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// HashID derives a stable id from normalized parts. Empty input yields "".
func HashID(parts ...string) string {
	norm := make([]string, 0, len(parts))
	nonEmpty := false
	for _, p := range parts {
		p = strings.ToLower(collapseSpace(p))
		if p != "" {
			nonEmpty = true
		}
		norm = append(norm, p)
	}
	if !nonEmpty {
		return ""
	}
	return "h" + strconv.FormatUint(xxhash.Sum64String(strings.Join(norm, "\x1f")), 16)
}

// absURL resolves ref against base. Protocol-relative refs get https.
func absURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		ref = "https:" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// stripQuery drops query and fragment, which listing pages use for tracking.
func stripQuery(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
