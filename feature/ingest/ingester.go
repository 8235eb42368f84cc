package ingest

import (
	"context"
	"time"

	"turnover-sync/core/reconcile"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher downloads the body of an ics feed.
type Fetcher interface {
	Fetch(ctx context.Context, feed Feed) ([]byte, error)
}

// FeedResult is the outcome of reading one feed.
type FeedResult struct {
	Feed      Feed
	Events    []reconcile.Event
	Malformed []error
	// Files lists the objects read for a csv feed.
	Files []string
	// Err is set when the feed could not be read. Its events are then
	// absent and its records must not age.
	Err error
}

// Result is the outcome of one ingestion pass, in catalog order.
type Result struct {
	Feeds []FeedResult
}

// Events returns every normalized event in catalog order.
func (r *Result) Events() []reconcile.Event {
	var out []reconcile.Event
	for _, fr := range r.Feeds {
		out = append(out, fr.Events...)
	}
	return out
}

// Failed returns the ids of the feeds that could not be read.
func (r *Result) Failed() []string {
	var out []string
	for _, fr := range r.Feeds {
		if fr.Err != nil {
			out = append(out, fr.Feed.ID)
		}
	}
	return out
}

// Processed counts the feeds read successfully.
func (r *Result) Processed() int {
	n := 0
	for _, fr := range r.Feeds {
		if fr.Err == nil {
			n++
		}
	}
	return n
}

// Malformed counts the events dropped during normalization.
func (r *Result) Malformed() int {
	n := 0
	for _, fr := range r.Feeds {
		n += len(fr.Malformed)
	}
	return n
}

// ByProperty groups events by property. The returned order lists properties
// as they are first seen.
func (r *Result) ByProperty() (map[string][]reconcile.Event, []string) {
	groups := make(map[string][]reconcile.Event)
	var order []string
	for _, ev := range r.Events() {
		if _, ok := groups[ev.PropertyID]; !ok {
			order = append(order, ev.PropertyID)
		}
		groups[ev.PropertyID] = append(groups[ev.PropertyID], ev)
	}
	return groups, order
}

// Ingester reads every enabled feed with a bounded worker pool.
type Ingester struct {
	cfg     Config
	fetcher Fetcher
	objects *ObjectReader
	ics     *ICSParser
	csv     *CSVParser
	logger  *zap.Logger
}

// NewIngester creates an ingester. objects may be nil when no csv feed is
// configured.
func NewIngester(cfg Config, fetcher Fetcher, objects *ObjectReader, loc *time.Location, logger *zap.Logger) *Ingester {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		cfg:     cfg,
		fetcher: fetcher,
		objects: objects,
		ics:     NewICSParser(loc, cfg),
		csv:     NewCSVParser(),
		logger:  logger,
	}
}

// Ingest reads feeds concurrently. A failing feed is reported in its
// FeedResult and never fails the pass.
func (i *Ingester) Ingest(ctx context.Context, feeds []Feed, today time.Time) *Result {
	res := &Result{Feeds: make([]FeedResult, len(feeds))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.Workers)
	for idx, feed := range feeds {
		idx, feed := idx, feed
		g.Go(func() error {
			res.Feeds[idx] = i.ingestFeed(gctx, feed, today)
			return nil
		})
	}
	_ = g.Wait()

	return res
}

func (i *Ingester) ingestFeed(ctx context.Context, feed Feed, today time.Time) FeedResult {
	start := time.Now()
	fr := FeedResult{Feed: feed}

	switch feed.Kind {
	case KindICS:
		fr.Err = i.readICS(ctx, &fr, today)
	case KindCSV:
		fr.Err = i.readCSV(ctx, &fr)
	default:
		fr.Err = &FetchError{FeedID: feed.ID, Err: ErrInvalidCatalog}
	}

	if fr.Err != nil {
		fr.Events = nil
		i.logger.Error("Feed failed",
			zap.String("feed", feed.ID),
			zap.String("property_id", feed.PropertyID),
			zap.Error(fr.Err),
		)
		return fr
	}

	for _, err := range fr.Malformed {
		i.logger.Warn("Skipping malformed event", zap.String("feed", feed.ID), zap.Error(err))
	}
	i.logger.Debug("Feed ingested",
		zap.String("feed", feed.ID),
		zap.Int("events", len(fr.Events)),
		zap.Int("malformed", len(fr.Malformed)),
		zap.Duration("duration", time.Since(start)),
	)
	return fr
}

func (i *Ingester) readICS(ctx context.Context, fr *FeedResult, today time.Time) error {
	if i.fetcher == nil {
		return &FetchError{FeedID: fr.Feed.ID, Err: errNoFetcher}
	}
	body, err := i.fetcher.Fetch(ctx, fr.Feed)
	if err != nil {
		return err
	}
	events, malformed, err := i.ics.Parse(fr.Feed, body, today)
	if err != nil {
		return &FetchError{FeedID: fr.Feed.ID, Err: err}
	}
	fr.Events, fr.Malformed = events, malformed
	return nil
}

// readCSV reads every export of a csv feed. Any unreadable file fails the
// whole feed so that a partial read never ages records.
func (i *Ingester) readCSV(ctx context.Context, fr *FeedResult) error {
	if i.objects == nil {
		return &FetchError{FeedID: fr.Feed.ID, Err: errNoStorage}
	}
	keys, err := i.objects.Keys(ctx, fr.Feed)
	if err != nil {
		return err
	}
	for _, key := range keys {
		body, err := i.objects.Read(ctx, fr.Feed, key)
		if err != nil {
			return err
		}
		events, malformed, err := i.csv.Parse(fr.Feed, key, body)
		if err != nil {
			return &FetchError{FeedID: fr.Feed.ID, Err: err}
		}
		fr.Events = append(fr.Events, events...)
		fr.Malformed = append(fr.Malformed, malformed...)
		fr.Files = append(fr.Files, key)
	}
	return nil
}
