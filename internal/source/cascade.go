package source

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extractor pulls one field out of a listing element. An empty string means
// "try the next one".
type Extractor func(s *goquery.Selection) string

// First runs extractors in order and returns the first non-empty value.
func First(s *goquery.Selection, extractors ...Extractor) string {
	if s == nil {
		return ""
	}
	for _, ex := range extractors {
		if ex == nil {
			continue
		}
		if v := strings.TrimSpace(ex(s)); v != "" {
			return v
		}
	}
	return ""
}

// Items returns the matches of the first selector that finds anything,
// along with that selector.
func Items(doc *goquery.Document, selectors ...string) (*goquery.Selection, string) {
	if doc == nil {
		return nil, ""
	}
	for _, sel := range selectors {
		if found := doc.Find(sel); found.Length() > 0 {
			return found, sel
		}
	}
	return doc.Find("__none__"), ""
}

// Text reads the collapsed text of the first match of selector inside s.
func Text(selector string) Extractor {
	return func(s *goquery.Selection) string {
		return collapseSpace(s.Find(selector).First().Text())
	}
}

// Attr reads an attribute from the first match of selector, or from s itself
// when selector is empty.
func Attr(selector, attr string) Extractor {
	return func(s *goquery.Selection) string {
		target := s
		if selector != "" {
			target = s.Find(selector).First()
		}
		v, _ := target.Attr(attr)
		return strings.TrimSpace(v)
	}
}

// OwnAttr reads an attribute of s only when s itself matches selector.
func OwnAttr(selector, attr string) Extractor {
	return func(s *goquery.Selection) string {
		if !s.Is(selector) {
			return ""
		}
		v, _ := s.Attr(attr)
		return strings.TrimSpace(v)
	}
}

// Fixed always yields v; used as the last step of a cascade.
func Fixed(v string) Extractor {
	return func(*goquery.Selection) string { return v }
}

// textLines returns the trimmed text of every leaf element under s in
// document order.
func textLines(s *goquery.Selection) []string {
	var out []string
	s.Find("*").Each(func(_ int, el *goquery.Selection) {
		if el.Children().Length() > 0 || el.Is("script,style") {
			return
		}
		if t := collapseSpace(el.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// imageCandidates lists raw image references in cascade order: each
// selector in turn, each attribute in turn.
func imageCandidates(s *goquery.Selection, selectors, attrs []string) []string {
	var out []string
	for _, sel := range selectors {
		s.Find(sel).Each(func(_ int, img *goquery.Selection) {
			for _, a := range attrs {
				if v, ok := img.Attr(a); ok && strings.TrimSpace(v) != "" {
					out = append(out, strings.TrimSpace(v))
				}
			}
		})
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
