package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"eventsync/internal/client/eventbrite"
	"eventsync/internal/config"
)

const SourceEventbrite = "eventbrite"

// DetailAPI is the authoritative per-event lookup used to enrich scraped
// Eventbrite listings.
type DetailAPI interface {
	Enabled() bool
	GetEvent(ctx context.Context, id string) (*eventbrite.Detail, error)
}

type Eventbrite struct {
	Config config.SourceConfig
	Deps   Deps
	API    DetailAPI
	Enrich EnrichOptions
}

// EnrichOptions bounds the detail lookups so a slow API cannot consume the
// adapter deadline. Listings that miss the budget keep their scraped values.
type EnrichOptions struct {
	Workers     int
	CallTimeout time.Duration
	// Reserve is kept back from the fetch deadline for returning the batch.
	Reserve time.Duration
}

func (o EnrichOptions) withDefaults() EnrichOptions {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 15 * time.Second
	}
	if o.Reserve <= 0 {
		o.Reserve = 10 * time.Second
	}
	return o
}

type eventbriteListing struct {
	cand     Candidate
	native   string
	dateText string
}

func (a *Eventbrite) Name() string { return SourceEventbrite }

func (a *Eventbrite) Fetch(ctx context.Context) (Batch, error) {
	log := a.Deps.logger().With(zap.String("source", SourceEventbrite))
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
		"section.event-card-details",
		"div.event-card__details",
		"div[data-testid='search-event']",
	)
	if items.Length() == 0 {
		return Batch{}, ErrNoListings
	}
	log.Debug("listing elements found", zap.String("selector", selector), zap.Int("count", items.Length()))

	col := newCollector(SourceEventbrite, a.Deps, a.Config.MaxItems)
	loc := a.Deps.location()
	now := a.Deps.now()

	var listings []eventbriteListing
	items.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if ctx.Err() != nil || (a.Config.MaxItems > 0 && len(listings) >= a.Config.MaxItems) {
			return false
		}
		col.seenOne()

		link := absURL(base, First(s,
			Attr("a.event-card-link", "href"),
			Attr("a[href*='/e/']", "href"),
			Attr("a", "href"),
		))
		link = stripQuery(link)
		native := NativeID(link, eventbriteIDPattern)
		if native == "" {
			col.dropNoID(link)
			return true
		}

		card := s.Closest("div.event-card, article, li")
		if card.Length() == 0 {
			card = s
		}
		cand := Candidate{
			ExternalID: ExternalID(SourceEventbrite, native),
			URL:        link,
			Title: First(s,
				Text("h3"),
				Text("h2"),
				Attr("a.event-card-link", "aria-label"),
			),
			OrganizerName: strings.TrimPrefix(First(card,
				Text(".event-card__organizer"),
				Text("div[data-testid='organizer-name']"),
				Text(".organizer-name"),
				Fixed("Unknown Organizer"),
			), "By "),
			VenueName: First(s, Text("[data-testid='event-card-venue']"), Text(".event-card__venue")),
			Metadata:  map[string]any{"detail_api": false},
		}
		if img := a.Deps.Images.Pick(base, imageCandidates(card,
			[]string{"img.event-card-image", "img"},
			[]string{"data-src", "src", "srcset", "data-img", "data-event-item-image"},
		)...); img != "" {
			cand.ImageURL = &img
		}
		priceText := strings.ToLower(First(s, Text(".event-card__price"), Text("[data-testid='event-card-price']")))
		cand.IsFree = priceText == "" || strings.Contains(priceText, "free")

		dateText := First(s,
			Attr("time", "datetime"),
			Text("time"),
			Text("p.event-card__date"),
			func(s *goquery.Selection) string {
				for _, line := range textLines(s) {
					if LooksLikeDate(line) {
						return line
					}
				}
				return ""
			},
		)
		if start, ok := ParseDate(dateText, now, loc, DMY); ok {
			cand.StartTime = start
			end := start.Add(2 * time.Hour)
			cand.EndTime = &end
		}
		if cand.VenueName == "" {
			cand.VenueName = a.Config.City
		}
		cand.VenueAddress = a.Config.City

		listings = append(listings, eventbriteListing{cand: cand, native: native, dateText: dateText})
		return true
	})

	col.batch.Stats.Enriched = a.enrich(ctx, listings, base, log)

	for _, l := range listings {
		if l.cand.StartTime.IsZero() {
			col.dropNoDate(l.cand.Title, l.dateText)
			continue
		}
		col.add(l.cand)
	}

	if err := ctx.Err(); err != nil {
		return col.batch, err
	}
	return col.result()
}

// enrich looks listings up in the detail API with a bounded number of
// workers. It returns before the fetch deadline minus the reserve; lookups
// still running then are cancelled and their listings stay as scraped.
func (a *Eventbrite) enrich(ctx context.Context, listings []eventbriteListing, base *url.URL, log *zap.Logger) int {
	if a.API == nil || !a.API.Enabled() || len(listings) == 0 {
		return 0
	}
	opts := a.Enrich.withDefaults()
	var (
		ectx   context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		ectx, cancel = context.WithDeadline(ctx, deadline.Add(-opts.Reserve))
	} else {
		ectx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var enriched, skipped atomic.Int64
	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for i := range listings {
		l := &listings[i]
		g.Go(func() error {
			if ectx.Err() != nil {
				skipped.Add(1)
				return nil
			}
			cctx, cancelCall := context.WithTimeout(ectx, opts.CallTimeout)
			defer cancelCall()
			detail, err := a.API.GetEvent(cctx, l.native)
			if err != nil {
				log.Warn("detail api failed, keeping scraped values",
					zap.String("external_id", l.cand.ExternalID),
					zap.Error(err),
				)
				return nil
			}
			applyDetail(&l.cand, detail, base, a.Deps.Images)
			enriched.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	if n := skipped.Load(); n > 0 {
		log.Warn("detail budget spent, remaining listings keep scraped values", zap.Int64("skipped", n))
	}
	return int(enriched.Load())
}

// applyDetail overrides scraped fields with API values that are present.
func applyDetail(c *Candidate, d *eventbrite.Detail, base *url.URL, images ImagePicker) {
	if d == nil {
		return
	}
	if d.Title != "" {
		c.Title = d.Title
	}
	if d.Description != "" {
		c.Description = d.Description
	}
	if !d.Start.IsZero() {
		c.StartTime = d.Start
		end := d.End
		c.EndTime = &end
	}
	if d.URL != "" {
		c.URL = stripQuery(d.URL)
	}
	if d.VenueName != "" {
		c.VenueName = d.VenueName
	}
	if d.VenueAddress != "" {
		c.VenueAddress = d.VenueAddress
	}
	if d.OrganizerName != "" {
		c.OrganizerName = d.OrganizerName
	}
	c.IsFree = d.IsFree
	c.OnlineEvent = d.Online
	if img := images.Pick(base, d.LogoURL); img != "" {
		c.ImageURL = &img
	}
	c.Metadata["detail_api"] = true
	if d.Capacity != nil {
		c.Metadata["capacity"] = *d.Capacity
	}
}
