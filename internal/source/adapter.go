package source

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"eventsync/internal/classifier"
)

// Candidate is a normalized listing that has not been persisted yet.
type Candidate struct {
	ExternalID    string         `json:"external_id" validate:"required,max=255"`
	Source        string         `json:"source" validate:"required"`
	Title         string         `json:"title" validate:"required"`
	Description   string         `json:"description"`
	StartTime     time.Time      `json:"start_time" validate:"required"`
	EndTime       *time.Time     `json:"end_time,omitempty"`
	URL           string         `json:"url" validate:"required,url"`
	ImageURL      *string        `json:"image_url,omitempty" validate:"omitempty,url"`
	VenueName     string         `json:"venue_name"`
	VenueAddress  string         `json:"venue_address"`
	OrganizerName string         `json:"organizer_name"`
	IsFree        bool           `json:"is_free"`
	OnlineEvent   bool           `json:"online_event"`
	Category      string         `json:"category"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Stats counts what happened to the listings one fetch saw.
type Stats struct {
	Seen      int `json:"seen"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	NoID      int `json:"no_id"`
	NoDate    int `json:"no_date"`
	Invalid   int `json:"invalid"`
	Duplicate int `json:"duplicate"`
	Enriched  int `json:"enriched"`
}

type Batch struct {
	Candidates []Candidate
	Stats      Stats
}

// Adapter fetches and normalizes the listings of one external source.
// Implementations own every resource they open and release it before
// returning.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) (Batch, error)
}

var ErrNoListings = errors.New("no listing elements found")

// Result is the outcome of SafeFetch.
type Result struct {
	Source   string
	Batch    Batch
	Err      error
	Started  time.Time
	Duration time.Duration
}

func (r Result) OK() bool {
	return r.Err == nil
}

// SafeFetch runs one adapter so that nothing escapes: errors and panics are
// logged and turn into an empty batch.
func SafeFetch(ctx context.Context, a Adapter, logger *zap.Logger) (res Result) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res.Started = time.Now()
	if a == nil {
		res.Err = errors.New("nil adapter")
		return res
	}
	res.Source = a.Name()

	defer func() {
		res.Duration = time.Since(res.Started)
		if r := recover(); r != nil {
			res.Batch = Batch{}
			res.Err = fmt.Errorf("adapter panic: %v", r)
			logger.Error("adapter panicked",
				zap.String("source", res.Source),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	batch, err := a.Fetch(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		res.Err = err
		res.Batch = Batch{Stats: batch.Stats}
		logger.Warn("adapter fetch failed",
			zap.String("source", res.Source),
			zap.Error(err),
		)
		return res
	}
	res.Batch = batch
	return res
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the shape every candidate must have before reconciliation.
func Validate(c Candidate) error {
	return validate.Struct(c)
}

// Deps are shared by all adapters of a process. Nothing in it is mutated
// after construction.
type Deps struct {
	Loader     PageLoader
	Classifier *classifier.Classifier
	Images     ImagePicker
	Logger     *zap.Logger
	Location   *time.Location
	Now        func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) location() *time.Location {
	if d.Location != nil {
		return d.Location
	}
	return time.UTC
}

func (d Deps) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return zap.NewNop()
}

// collector applies the per-listing tail shared by every adapter: time
// normalization, the recurring fix, image fallback, validation,
// classification and in-fetch dedup.
type collector struct {
	source     string
	log        *zap.Logger
	classifier *classifier.Classifier
	images     ImagePicker
	now        time.Time
	max        int
	seen       map[string]struct{}
	batch      Batch
}

func newCollector(source string, deps Deps, max int) *collector {
	cl := deps.Classifier
	if cl == nil {
		cl = classifier.New(classifier.DefaultTaxonomy())
	}
	return &collector{
		source:     source,
		log:        deps.logger(),
		classifier: cl,
		images:     deps.Images,
		now:        deps.now().UTC(),
		max:        max,
		seen:       map[string]struct{}{},
	}
}

func (c *collector) full() bool {
	return c.max > 0 && len(c.batch.Candidates) >= c.max
}

func (c *collector) seenOne() {
	c.batch.Stats.Seen++
}

func (c *collector) dropNoID(link string) {
	c.batch.Stats.NoID++
	c.log.Debug("listing dropped: no id", zap.String("source", c.source), zap.String("url", link))
}

func (c *collector) dropNoDate(title, text string) {
	c.batch.Stats.NoDate++
	c.log.Debug("listing dropped: no date",
		zap.String("source", c.source),
		zap.String("title", title),
		zap.String("date_text", text),
	)
}

func (c *collector) add(cand Candidate) {
	cand.Source = c.source
	cand.Title = collapseSpace(cand.Title)
	cand.Description = collapseSpace(cand.Description)
	cand.VenueName = collapseSpace(cand.VenueName)
	cand.VenueAddress = collapseSpace(cand.VenueAddress)
	cand.OrganizerName = collapseSpace(cand.OrganizerName)

	if cand.ExternalID == "" {
		c.dropNoID(cand.URL)
		return
	}
	if cand.StartTime.IsZero() {
		c.dropNoDate(cand.Title, "")
		return
	}

	cand.StartTime = cand.StartTime.UTC().Truncate(time.Second)
	if cand.EndTime != nil {
		end := cand.EndTime.UTC().Truncate(time.Second)
		cand.EndTime = &end
	}
	cand.StartTime = RecurringFix(cand.StartTime, cand.EndTime, c.now)

	if cand.Metadata == nil {
		cand.Metadata = map[string]any{}
	}
	cand.Metadata["source"] = c.source
	if cand.ImageURL == nil || *cand.ImageURL == "" {
		if img := c.images.Fallback(cand.Title); img != "" {
			cand.ImageURL = &img
			cand.Metadata["fallback_image"] = true
		}
	}

	if err := Validate(cand); err != nil {
		c.batch.Stats.Invalid++
		c.log.Debug("listing dropped: invalid",
			zap.String("source", c.source),
			zap.String("external_id", cand.ExternalID),
			zap.Error(err),
		)
		return
	}

	res := c.classifier.Match(cand.Title, cand.Description)
	if !res.Accepted {
		c.batch.Stats.Rejected++
		c.log.Debug("listing dropped: not business",
			zap.String("source", c.source),
			zap.String("title", cand.Title),
			zap.String("reason", res.Reason),
			zap.String("keyword", res.Keyword),
		)
		return
	}
	if cand.Category == "" {
		cand.Category = res.Category
	}

	if _, dup := c.seen[cand.ExternalID]; dup {
		c.batch.Stats.Duplicate++
		return
	}
	c.seen[cand.ExternalID] = struct{}{}
	c.batch.Stats.Accepted++
	c.batch.Candidates = append(c.batch.Candidates, cand)
}

func (c *collector) result() (Batch, error) {
	return c.batch, nil
}
