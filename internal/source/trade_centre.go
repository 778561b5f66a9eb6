package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"eventsync/internal/config"
)

const SourceTradeCentre = "trade_centre"

const (
	tradeCentreVenue   = "Chennai Trade Centre"
	tradeCentreAddress = "CTC Complex, Nandambakkam, Chennai"
)

// TradeCentre scrapes the upcoming exhibitions page of the Chennai Trade
// Centre. Listings carry no native id, so ids hash title and start date.
type TradeCentre struct {
	Config config.SourceConfig
	Deps   Deps
}

func (a *TradeCentre) Name() string { return SourceTradeCentre }

func (a *TradeCentre) Fetch(ctx context.Context) (Batch, error) {
	log := a.Deps.logger().With(zap.String("source", SourceTradeCentre))
	sess, err := a.Deps.Loader.Open(ctx)
	if err != nil {
		return Batch{}, fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	html, err := sess.Load(ctx, a.Config.URL)
	if err != nil {
		return Batch{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Batch{}, fmt.Errorf("parse html: %w", err)
	}
	base, _ := url.Parse(a.Config.URL)

	items, selector := Items(doc, ".schedule-item", ".event-item", "div.upcoming-event")
	if items.Length() == 0 {
		return Batch{}, ErrNoListings
	}
	log.Debug("listing elements found", zap.String("selector", selector), zap.Int("count", items.Length()))

	horizon := a.Config.HorizonDays
	if horizon <= 0 {
		horizon = 180
	}
	loc := a.Deps.location()
	now := a.Deps.now()
	today := startOfDay(now.In(loc))
	limit := today.AddDate(0, 0, horizon)
	col := newCollector(SourceTradeCentre, a.Deps, a.Config.MaxItems)

	items.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if col.full() || ctx.Err() != nil {
			return false
		}
		col.seenOne()

		title := First(s, Text("h4"), Text("h3"), Text(".event-title"))
		dateText := First(s,
			Text("li:has(i.fa-calendar)"),
			Text(".schedule-meta ul li:first-child"),
			Text(".date"),
		)
		start, end, ok := ParseRange(dateText, now, loc, DMY)
		if !ok {
			col.dropNoDate(title, dateText)
			return true
		}
		// listings give whole days; exhibitions open mid morning
		start = time.Date(start.Year(), start.Month(), start.Day(), 10, 0, 0, 0, loc)
		endAt := start.Add(8 * time.Hour)
		if end != nil {
			endAt = time.Date(end.Year(), end.Month(), end.Day(), 18, 0, 0, 0, loc)
		}
		if start.Before(today) || start.After(limit) {
			log.Debug("listing outside horizon", zap.String("title", title), zap.Time("start", start))
			return true
		}

		organizer := First(s,
			organizerAfterHeading,
			Text(".organizer"),
			Fixed(tradeCentreVenue),
		)
		link := stripQuery(absURL(base, First(s, Attr("a[href]", "href"))))
		if link == "" {
			link = a.Config.URL
		}

		cand := Candidate{
			ExternalID:    ExternalID(SourceTradeCentre, HashID(title, start.Format("2006-01-02"))),
			URL:           link,
			Title:         title,
			Description:   "Trade Exhibition organized by " + organizer,
			StartTime:     start,
			EndTime:       &endAt,
			VenueName:     tradeCentreVenue,
			VenueAddress:  tradeCentreAddress,
			OrganizerName: organizer,
			IsFree:        true,
			Category:      "Exhibition",
			Metadata:      map[string]any{},
		}
		if img := a.Deps.Images.Pick(base, imageCandidates(s,
			[]string{"img"},
			[]string{"data-src", "src"},
		)...); img != "" {
			cand.ImageURL = &img
		}
		col.add(cand)
		return true
	})

	if err := ctx.Err(); err != nil {
		return col.batch, err
	}
	return col.result()
}

// organizerAfterHeading reads the span that follows an "Event Organizer"
// heading.
func organizerAfterHeading(s *goquery.Selection) string {
	heading := s.Find("h6").FilterFunction(func(_ int, h *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(h.Text()), "event organizer")
	}).First()
	if heading.Length() == 0 {
		return ""
	}
	if v := collapseSpace(heading.NextAllFiltered("span").First().Text()); v != "" {
		return v
	}
	return collapseSpace(heading.Parent().Find("span").First().Text())
}
