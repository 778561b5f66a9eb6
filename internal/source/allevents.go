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

const SourceAllEvents = "allevents"

type AllEvents struct {
	Config config.SourceConfig
	Deps   Deps
}

func (a *AllEvents) Name() string { return SourceAllEvents }

func (a *AllEvents) Fetch(ctx context.Context) (Batch, error) {
	log := a.Deps.logger().With(zap.String("source", SourceAllEvents))
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

	items, selector := Items(doc, ".event-card", "li[data-link]", "div.event-item")
	if items.Length() == 0 {
		return Batch{}, ErrNoListings
	}
	log.Debug("listing elements found", zap.String("selector", selector), zap.Int("count", items.Length()))

	max := a.Config.MaxItems
	if max <= 0 {
		max = 50
	}
	city := a.Config.City
	if city == "" {
		city = "Chennai"
	}
	col := newCollector(SourceAllEvents, a.Deps, max)
	loc := a.Deps.location()
	now := a.Deps.now()

	items.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if col.full() || ctx.Err() != nil {
			return false
		}
		col.seenOne()

		title := First(s, Text(".title"), Text("h3"), Attr("", "title"))
		link := stripQuery(absURL(base, First(s,
			Attr("a[href]", "href"),
			Attr("", "data-link"),
		)))
		native := NativeID(link, trailingIDPattern)
		if native == "" && link != "" {
			native = HashID(title, link)
		}
		if native == "" {
			col.dropNoID(link)
			return true
		}

		cand := Candidate{
			ExternalID:    ExternalID(SourceAllEvents, native),
			URL:           link,
			Title:         title,
			Description:   First(s, Text(".description"), Text("p.event-desc")),
			VenueName:     First(s, Text(".subtitle"), Text(".location"), Fixed(city)),
			VenueAddress:  city,
			OrganizerName: First(s, Text(".organizer"), Fixed("AllEvents")),
			IsFree:        true,
			Metadata:      map[string]any{},
		}
		if price := strings.ToLower(First(s, Text(".price"))); price != "" && !strings.Contains(price, "free") {
			cand.IsFree = false
		}
		if img := a.Deps.Images.Pick(base, imageCandidates(s,
			[]string{"img.banner-image-v3", "img[data-src*=banner]", "img[src*=banner]", "img"},
			[]string{"data-src", "data-img", "data-lazy-src", "srcset", "src"},
		)...); img != "" {
			cand.ImageURL = &img
		}

		dateText := First(s,
			Attr("[itemprop='startDate']", "content"),
			Text(".time"),
			Text(".date"),
		)
		start, ok := ParseDate(dateText, now, loc, DMY)
		if !ok {
			col.dropNoDate(title, dateText)
			return true
		}
		cand.StartTime = start
		end := start.Add(3 * time.Hour)
		if endText := First(s, Attr("[itemprop='endDate']", "content")); endText != "" {
			if e, ok := ParseDate(endText, start, loc, DMY); ok && e.After(start) {
				end = e
			}
		}
		cand.EndTime = &end

		col.add(cand)
		return true
	})

	if err := ctx.Err(); err != nil {
		return col.batch, err
	}
	return col.result()
}
