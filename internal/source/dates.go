package source

import (
	"regexp"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

const week = 7 * 24 * time.Hour

var (
	dateNoise     = regexp.MustCompile(`[·•|]+`)
	tzSuffix      = regexp.MustCompile(`(?i)\b(IST|GMT|UTC)([+-]\d{1,2}(:?\d{2})?)?\b`)
	yearPattern   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	rangeSplitter = regexp.MustCompile(`\s+(?:-|–|—|to)\s+`)
	dateHint      = regexp.MustCompile(`(?i)\b(mon(day)?|tue(s|sday)?|wed(nesday)?|thu(rs|rsday)?|fri(day)?|sat(urday)?|sun(day)?|jan(uary)?|feb(ruary)?|mar(ch)?|apr(il)?|may|june?|july?|aug(ust)?|sept?(ember)?|oct(ober)?|nov(ember)?|dec(ember)?|today|tomorrow)\b`)
)

var explicitLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// DateOrder is "DMY" or "MDY" and resolves numeric dates like 03/04/2026.
type DateOrder string

const (
	DMY DateOrder = "DMY"
	MDY DateOrder = "MDY"
)

// ParseDate reads a listing's free-form date text. Naive values are read as
// wall time in loc. When the text carries no year and the parsed moment is
// already past, it is moved to the next year.
func ParseDate(text string, now time.Time, loc *time.Location, order DateOrder) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	clean := cleanDateText(text)
	if clean == "" {
		return time.Time{}, false
	}

	for _, layout := range explicitLayouts {
		if t, err := time.ParseInLocation(layout, clean, loc); err == nil {
			return t, true
		}
	}

	cfg := &dps.Configuration{
		CurrentTime:         now.In(loc),
		PreferredDateSource: dps.Future,
		Languages:           []string{"en"},
	}
	if order == MDY {
		cfg.DateOrder = dps.MDY
	} else {
		cfg.DateOrder = dps.DMY
	}
	dt, err := dps.Parse(cfg, clean)
	if err != nil || dt.Time.IsZero() {
		return time.Time{}, false
	}
	p := dt.Time
	t := time.Date(p.Year(), p.Month(), p.Day(), p.Hour(), p.Minute(), p.Second(), 0, loc)

	if !yearPattern.MatchString(clean) {
		today := startOfDay(now.In(loc))
		for t.Before(today) {
			t = t.AddDate(1, 0, 0)
		}
	}
	return t, true
}

// ParseRange splits "13-Feb-2026 - 15-Feb-2026" style text. end is nil when
// the text holds a single date.
func ParseRange(text string, now time.Time, loc *time.Location, order DateOrder) (time.Time, *time.Time, bool) {
	parts := rangeSplitter.Split(strings.TrimSpace(text), 2)
	start, ok := ParseDate(parts[0], now, loc, order)
	if !ok {
		return time.Time{}, nil, false
	}
	if len(parts) < 2 {
		return start, nil, true
	}
	end, ok := ParseDate(parts[1], start, loc, order)
	if !ok || end.Before(start) {
		return start, nil, true
	}
	return start, &end, true
}

// LooksLikeDate reports whether a text line mentions a weekday or month.
func LooksLikeDate(line string) bool {
	return dateHint.MatchString(line)
}

// RecurringFix treats a window longer than a week that started in the past
// and ends in the future as a recurring series, and moves start forward by
// the smallest whole number of weeks that lands after now.
func RecurringFix(start time.Time, end *time.Time, now time.Time) time.Time {
	if end == nil {
		return start
	}
	if end.Sub(start) <= week || !start.Before(now) || !end.After(now) {
		return start
	}
	weeks := now.Sub(start)/week + 1
	return start.Add(weeks * week)
}

func cleanDateText(text string) string {
	s := dateNoise.ReplaceAllString(text, " ")
	s = tzSuffix.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, " at ", " ")
	return collapseSpace(strings.Trim(collapseSpace(s), ",;"))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
