package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Rule groups the keywords that place a listing into one category.
type Rule struct {
	Category string
	Keywords []string
}

type Taxonomy struct {
	// Negative keywords are matched against the title only and always win.
	// A negative matches any title word it starts, so "music" rejects
	// "Musical" and "night" rejects "Nightclub".
	Negative []string
	// NegativeWords are negatives that only match as whole words, for short
	// stems that begin unrelated words ("bar" in "Barcamp", "pub" in "Public").
	NegativeWords []string
	// Rules are tried in order; the first category with a hit is reported.
	Rules []Rule
}

type Result struct {
	Accepted bool
	Category string
	Keyword  string
	// Reason is "negative", "positive" or "no_match".
	Reason string
}

type Classifier struct {
	negative []negativeKeyword
	rules    []compiledRule
}

type negativeKeyword struct {
	text      string
	wholeWord bool
}

type compiledRule struct {
	category string
	keywords []string
}

func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Negative: []string{
			"music", "magic", "concert", "dj", "party", "dance", "stand-up", "comedy",
			"comedian", "singing", "spiritual", "yoga", "meditation", "movie", "film",
			"theatre", "drama", "painting", "art class", "clubbing", "nightlife",
			"cricket", "football", "sports", "kids", "fest", "festival", "carnival",
			"mela", "celebration", "wedding", "tribute", "night", "marathon", "trek",
			"adventure", "valentine", "new year", "poetry", "open mic", "dating",
			"speed-dating", "shopping",
		},
		NegativeWords: []string{"pub", "bar", "trip"},
		Rules: []Rule{
			{Category: "Technology", Keywords: []string{
				"tech", "technology", "software", "development", "ai",
				"artificial intelligence", "machine learning", "data", "analytics",
				"digital", "innovation",
			}},
			{Category: "Startup", Keywords: []string{
				"startup", "entrepreneur", "entrepreneurship", "founding", "investor",
				"investment",
			}},
			{Category: "Career", Keywords: []string{
				"career", "professional", "mentoring", "hiring", "recruitment",
				"training", "leadership",
			}},
			{Category: "Networking", Keywords: []string{
				"networking", "conference", "summit", "seminar", "workshop", "expo",
				"exhibition", "trade", "conclave", "industry", "b2b",
			}},
			{Category: "Business", Keywords: []string{
				"business", "corporate", "management", "marketing", "sales", "finance",
				"strategy",
			}},
		},
	}
}

func New(t Taxonomy) *Classifier {
	c := &Classifier{}
	for _, kw := range t.Negative {
		if n := normalize(kw); n != "" {
			c.negative = append(c.negative, negativeKeyword{text: n})
		}
	}
	for _, kw := range t.NegativeWords {
		if n := normalize(kw); n != "" {
			c.negative = append(c.negative, negativeKeyword{text: n, wholeWord: true})
		}
	}
	for _, r := range t.Rules {
		cr := compiledRule{category: strings.TrimSpace(r.Category)}
		for _, kw := range r.Keywords {
			if n := normalize(kw); n != "" {
				cr.keywords = append(cr.keywords, n)
			}
		}
		if len(cr.keywords) > 0 {
			c.rules = append(c.rules, cr)
		}
	}
	return c
}

var std = New(DefaultTaxonomy())

// Classify reports whether a listing is business relevant under the default
// taxonomy. It is a pure function of its two arguments.
func Classify(title, description string) bool {
	return std.Classify(title, description)
}

// Match is Classify with the deciding keyword and category attached.
func Match(title, description string) Result {
	return std.Match(title, description)
}

func (c *Classifier) Classify(title, description string) bool {
	return c.Match(title, description).Accepted
}

func (c *Classifier) Match(title, description string) Result {
	if c == nil {
		return Result{Reason: "no_match"}
	}
	normTitle := normalize(title)
	for _, kw := range c.negative {
		var hit bool
		if kw.wholeWord {
			hit = contains(normTitle, kw.text)
		} else {
			hit = hasWordPrefix(normTitle, kw.text)
		}
		if hit {
			return Result{Keyword: kw.text, Reason: "negative"}
		}
	}
	text := normTitle + " " + normalize(description)
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if contains(text, kw) {
				return Result{Accepted: true, Category: r.category, Keyword: kw, Reason: "positive"}
			}
		}
	}
	return Result{Reason: "no_match"}
}

var folder = cases.Fold()

// normalize case-folds and reduces everything that is not a letter or digit
// to single spaces, so keywords match on word boundaries.
func normalize(s string) string {
	folded := folder.String(s)
	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// contains matches kw as a whole phrase, allowing a trailing plural "s".
func contains(text, kw string) bool {
	if text == "" || kw == "" {
		return false
	}
	padded := " " + text + " "
	return strings.Contains(padded, " "+kw+" ") || strings.Contains(padded, " "+kw+"s ")
}

// hasWordPrefix reports whether kw starts at a word boundary in text.
func hasWordPrefix(text, kw string) bool {
	if text == "" || kw == "" {
		return false
	}
	return strings.Contains(" "+text, " "+kw)
}
