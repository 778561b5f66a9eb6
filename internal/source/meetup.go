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

const SourceMeetup = "meetup"

// Meetup scrapes the business category of Meetup's search page. The page is
// rendered client side, so it is normally loaded through the proxy.
type Meetup struct {
	Config config.SourceConfig
	Deps   Deps
}

func (a *Meetup) Name() string { return SourceMeetup }

func (a *Meetup) Fetch(ctx context.Context) (Batch, error) {
	log := a.Deps.logger().With(zap.String("source", SourceMeetup))
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

	items, selector := Items(doc,
		`div[data-testid="event-card-in-search"]`,
		`div[data-event-id]`,
		`a[href*="/events/"]`,
	)
	if items.Length() == 0 {
		return Batch{}, ErrNoListings
	}
	log.Debug("listing elements found", zap.String("selector", selector), zap.Int("count", items.Length()))

	city := a.Config.City
	if city == "" {
		city = "Chennai"
	}
	col := newCollector(SourceMeetup, a.Deps, a.Config.MaxItems)
	loc := a.Deps.location()
	now := a.Deps.now()

	items.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if col.full() || ctx.Err() != nil {
			return false
		}
		col.seenOne()

		link := absURL(base, First(s,
			OwnAttr("a", "href"),
			Attr(`a[href*="/events/"]`, "href"),
			Attr("a", "href"),
		))
		link = stripQuery(link)
		native := NativeID(link, meetupIDPattern)
		if native == "" {
			col.dropNoID(link)
			return true
		}

		lines := textLines(s)
		dateLine := First(s,
			Attr("time", "datetime"),
			Text("time"),
			func(*goquery.Selection) string {
				for _, l := range lines {
					if LooksLikeDate(l) {
						return l
					}
				}
				return ""
			},
		)
		title := First(s,
			Text("h2"),
			Text("h3"),
			func(*goquery.Selection) string { return longestLine(lines, dateLine) },
		)

		cand := Candidate{
			ExternalID:    ExternalID(SourceMeetup, native),
			URL:           link,
			Title:         title,
			Description:   First(s, Text("p.description"), Fixed("Join this meetup: "+link)),
			VenueName:     First(s, Text("[data-testid='venue-name']"), Fixed("Check Event Link")),
			VenueAddress:  city + ", India",
			OrganizerName: strings.TrimPrefix(First(s, Text("[data-testid='group-name']"), Fixed("Meetup Group")), "Hosted by "),
			IsFree:        true,
			Metadata:      map[string]any{},
		}
		for _, l := range lines {
			lower := strings.ToLower(l)
			if strings.Contains(lower, "online") {
				cand.OnlineEvent = true
			}
			if strings.Contains(l, "₹") || strings.Contains(l, "$") {
				cand.IsFree = false
			}
		}
		if img := a.Deps.Images.Pick(base, imageCandidates(s,
			[]string{"img"},
			[]string{"src", "data-src", "srcset"},
		)...); img != "" {
			cand.ImageURL = &img
		}

		start, ok := ParseDate(dateLine, now, loc, MDY)
		if !ok {
			col.dropNoDate(title, dateLine)
			return true
		}
		cand.StartTime = start
		end := start.Add(2 * time.Hour)
		cand.EndTime = &end

		col.add(cand)
		return true
	})

	if err := ctx.Err(); err != nil {
		return col.batch, err
	}
	return col.result()
}

// longestLine picks the longest text line other than skip; listing cards
// put the event name in the longest line.
func longestLine(lines []string, skip string) string {
	best := ""
	for _, l := range lines {
		if l == skip || (LooksLikeDate(l) && len(l) < 40) {
			continue
		}
		if strings.HasSuffix(strings.ToLower(l), "attendees") || strings.HasPrefix(l, "Hosted by") {
			continue
		}
		if len(l) > len(best) {
			best = l
		}
	}
	return best
}
