// Package enrich fills missing ministry details in stored weeks from the
// single-week pages, in the background, and publishes the improved weeks.
package enrich

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"mwb/internal"
	"mwb/internal/cache"
	"mwb/internal/config"
	"mwb/internal/logging"
	"mwb/internal/observability/metrics"
	"mwb/internal/period"
	"mwb/internal/pipeline"
	"mwb/internal/util"
)

type Fetcher interface {
	FetchText(ctx context.Context, url string, force bool) (string, error)
}

type Enricher struct {
	cfg     config.Config
	fetcher Fetcher
	cache   cache.Cache
	broker  *Broker
	log     *logging.Logger
	metrics *metrics.ExtractionMetrics

	group   singleflight.Group
	updates chan Update
	tasks   sync.WaitGroup
}

func New(cfg config.Config, fetcher Fetcher, c cache.Cache, broker *Broker, log *logging.Logger, m *metrics.ExtractionMetrics) *Enricher {
	if log == nil {
		log = logging.Discard()
	}
	if broker == nil {
		broker = NewBroker(log)
	}
	if c == nil {
		c = cache.NewMemory()
	}
	return &Enricher{
		cfg:     cfg,
		fetcher: fetcher,
		cache:   c,
		broker:  broker,
		log:     log,
		metrics: m,
		updates: make(chan Update, 16),
	}
}

func (e *Enricher) Broker() *Broker { return e.broker }

// Run consumes updates until ctx is done: each one overwrites the cached
// weeks for its key and is then published.
func (e *Enricher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-e.updates:
			if err := e.cache.Set(ctx, u.Key, u.Weeks); err != nil {
				e.log.Warn("cache store failed", "key", u.Key, "error", err)
			}
			e.broker.Publish(u)
		}
	}
}

// Enqueue starts a background enrichment of weeks under key unless one is
// already running for that key. It returns false when nothing needs enrichment.
func (e *Enricher) Enqueue(ctx context.Context, key string, weeks []internal.WeekProgram) bool {
	if !anyNeedsEnrichment(weeks) {
		return false
	}
	bg := context.WithoutCancel(ctx)
	weeks = append([]internal.WeekProgram(nil), weeks...)

	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		_, _, _ = e.group.Do(key, func() (any, error) {
			out := e.Enrich(bg, weeks)
			select {
			case e.updates <- Update{Key: key, Weeks: out}:
			case <-time.After(e.cfg.FetchTimeout() + time.Second):
				e.log.Warn("update dropped", "key", key)
			}
			return nil, nil
		})
	}()
	return true
}

// Wait blocks until every enqueued enrichment has handed off its update.
func (e *Enricher) Wait() {
	e.tasks.Wait()
}

// Enrich returns weeks with gaps filled from the single-week pages. A week
// whose page cannot be fetched or parsed is returned unchanged.
func (e *Enricher) Enrich(ctx context.Context, weeks []internal.WeekProgram) []internal.WeekProgram {
	started := time.Now()
	defer func() { e.metrics.ObserveEnrichDuration(time.Since(started).Seconds()) }()

	out := append([]internal.WeekProgram(nil), weeks...)
	indexes := e.fetchIndexes(ctx, out)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.cfg.EnrichParallel))
	for i := range out {
		if !out[i].NeedsEnrichment() {
			continue
		}
		links := indexes[issueURLFor(e.cfg, out[i])]
		if len(links) == 0 {
			e.metrics.ObserveEnrichedWeek("no_index")
			continue
		}
		g.Go(func() error {
			if parsed := e.detail(gctx, out[i], links); parsed != nil {
				out[i] = out[i].FillMissing(*parsed)
				e.metrics.ObserveEnrichedWeek("enriched")
			} else {
				e.metrics.ObserveEnrichedWeek("failed")
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Enricher) fetchIndexes(ctx context.Context, weeks []internal.WeekProgram) map[string][]pipeline.Link {
	urls := map[string]struct{}{}
	for _, w := range weeks {
		if w.NeedsEnrichment() {
			if u := issueURLFor(e.cfg, w); u != "" {
				urls[u] = struct{}{}
			}
		}
	}

	var mu sync.Mutex
	out := map[string][]pipeline.Link{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.cfg.EnrichParallel))
	for u := range urls {
		g.Go(func() error {
			markup, err := e.fetcher.FetchText(gctx, u, true)
			if err != nil {
				e.log.Warn("index fetch failed", "url", u, "error", err)
				return nil
			}
			links := pipeline.HarvestLinks(markup, u)
			mu.Lock()
			out[u] = links
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Enricher) detail(ctx context.Context, w internal.WeekProgram, links []pipeline.Link) *internal.WeekProgram {
	year := yearOf(w)
	tried := map[string]bool{}
	for _, link := range candidates(w, links, year) {
		if tried[link.URL] {
			continue
		}
		tried[link.URL] = true
		markup, err := e.fetcher.FetchText(ctx, link.URL, true)
		if err != nil {
			e.log.Warn("week fetch failed", "period", w.Period, "url", link.URL, "error", err)
			continue
		}
		if parsed := pipeline.ExtractWeek(markup, link.URL, year); parsed != nil {
			return parsed
		}
	}
	return nil
}

// candidates lists the links for w: label matches first, then links whose
// label resolves to the same dates.
func candidates(w internal.WeekProgram, links []pipeline.Link, year int) []pipeline.Link {
	var out []pipeline.Link
	target := labelKey(w.Period)
	if target != "" {
		for _, l := range links {
			norm := labelKey(l.Period)
			if norm != "" && (strings.Contains(norm, target) || strings.Contains(target, norm)) {
				out = append(out, l)
				break
			}
		}
	}
	for _, l := range links {
		r := period.Resolve(l.Period, year)
		if r.Resolved && r.StartISO() == w.StartDate && r.EndISO() == w.EndDate {
			out = append(out, l)
		}
	}
	return out
}

func labelKey(label string) string {
	return util.Fold(util.NormalizeSpaces(strings.ReplaceAll(label, "–", "-")))
}

func issueURLFor(cfg config.Config, w internal.WeekProgram) string {
	start, ok := period.ParseISO(w.StartDate)
	if !ok || w.Unresolved {
		return ""
	}
	return pipeline.IssueIndexURL(cfg.IndexBaseURL, start.Year(), start.Month(), cfg.Language)
}

func yearOf(w internal.WeekProgram) int {
	if start, ok := period.ParseISO(w.StartDate); ok {
		return start.Year()
	}
	return time.Now().Year()
}

func anyNeedsEnrichment(weeks []internal.WeekProgram) bool {
	for _, w := range weeks {
		if w.NeedsEnrichment() {
			return true
		}
	}
	return false
}
