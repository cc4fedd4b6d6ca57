// Package workbook is the entry point for reading meeting weeks: stored rows
// first, documents and pasted text on request, with background enrichment.
package workbook

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mwb/internal"
	"mwb/internal/cache"
	"mwb/internal/config"
	"mwb/internal/enrich"
	"mwb/internal/fetch"
	"mwb/internal/logging"
	"mwb/internal/observability/metrics"
	"mwb/internal/period"
	"mwb/internal/pipeline"
	"mwb/internal/records"
	"mwb/internal/schedule"
)

type RowReader interface {
	RowsForWindow(ctx context.Context, issueKey, language string) ([]records.Row, error)
	RowsInRange(ctx context.Context, start, end, language string) ([]records.Row, error)
}

type Fetcher interface {
	FetchText(ctx context.Context, url string, force bool) (string, error)
	FetchBytes(ctx context.Context, url string) ([]byte, string, error)
}

type AssetResolver interface {
	URLFor(ctx context.Context, issueKey string) (string, error)
}

type Deps struct {
	Rows     RowReader
	Fetcher  Fetcher
	Assets   AssetResolver
	Cache    cache.Cache
	Enricher *enrich.Enricher
	Log      *logging.Logger
	Metrics  *metrics.ExtractionMetrics
}

type Service struct {
	rows     RowReader
	fetcher  Fetcher
	assets   AssetResolver
	cache    cache.Cache
	enricher *enrich.Enricher
	chain    pipeline.Chain
	cfg      config.Config
	log      *logging.Logger
	metrics  *metrics.ExtractionMetrics
	now      func() time.Time
}

// DiscoveredWeek is a week page found on an issue index.
type DiscoveredWeek struct {
	Period string `json:"periodo"`
	URL    string `json:"url"`
	Year   int    `json:"ano"`
}

var urlYear = regexp.MustCompile(`(20\d{2})`)

func New(cfg config.Config, deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = logging.Discard()
	}
	c := deps.Cache
	if c == nil {
		c = cache.NewMemory()
	}
	return &Service{
		rows:     deps.Rows,
		fetcher:  deps.Fetcher,
		assets:   deps.Assets,
		cache:    c,
		enricher: deps.Enricher,
		chain:    pipeline.DefaultChain(),
		cfg:      cfg,
		log:      log,
		metrics:  deps.Metrics,
		now:      time.Now,
	}
}

// ImportIssue returns the ordered weeks of the issue containing (year, month)
// and starts a background enrichment for them. It returns an empty slice when
// nothing could be read; the cause is logged.
func (s *Service) ImportIssue(ctx context.Context, year int, month time.Month) []internal.WeekProgram {
	key := period.WindowKey(year, month)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache read failed", "key", key, "error", err)
	}
	if ok && len(cached) > 0 {
		ordered := s.order(schedule.DropKnownCorrupt(cached))
		s.enqueue(ctx, key, ordered)
		return ordered
	}

	if s.rows == nil {
		return []internal.WeekProgram{}
	}
	rows, err := s.rows.RowsForWindow(ctx, key, s.cfg.LanguageTag())
	if err != nil {
		s.log.Error("row read failed", "key", key, "error", err)
		return []internal.WeekProgram{}
	}
	weeks, strategy := s.chain.Extract(ctx, pipeline.Source{Rows: rows, Year: year})
	s.metrics.ObserveStrategy(strategy, len(weeks))
	if len(weeks) == 0 {
		s.log.Info("no weeks for issue", "key", key, "rows", len(rows))
		return []internal.WeekProgram{}
	}

	filtered := schedule.DropKnownCorrupt(weeks)
	s.metrics.ObserveDropped("known_corrupt", len(weeks)-len(filtered))
	if err := s.cache.Set(ctx, key, filtered); err != nil {
		s.log.Warn("cache store failed", "key", key, "error", err)
	}
	ordered := s.order(filtered)
	s.enqueue(ctx, key, ordered)
	return ordered
}

// ListUntil returns every stored week from the configured range start to the
// end of (year, month). When the range read fails or is empty it reads issue
// by issue from the current month instead.
func (s *Service) ListUntil(ctx context.Context, year int, month time.Month) []internal.WeekProgram {
	if s.rows == nil {
		return []internal.WeekProgram{}
	}
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	start := s.cfg.RangeStart
	end := lastDay.Format(period.DateLayout)
	lang := s.cfg.LanguageTag()

	rows, err := s.rows.RowsInRange(ctx, start, end, lang)
	if err != nil {
		s.log.Warn("range read failed", "start", start, "end", end, "error", err)
	}
	if err == nil && len(rows) > 0 {
		weeks := schedule.DropKnownCorrupt(records.Normalize(rows))
		ordered := s.order(weeks)
		s.enqueue(ctx, "range:"+start+":"+end, ordered)
		return ordered
	}

	now := s.now()
	var agg []internal.WeekProgram
	seen := map[string]bool{}
	for d := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC); !d.After(lastDay); d = d.AddDate(0, 1, 0) {
		key := period.WindowKey(d.Year(), d.Month())
		if seen[key] {
			continue
		}
		seen[key] = true
		issueRows, err := s.rows.RowsForWindow(ctx, key, lang)
		if err != nil {
			s.log.Warn("row read failed", "key", key, "error", err)
			continue
		}
		agg = append(agg, records.Normalize(issueRows)...)
	}
	return s.order(schedule.DropKnownCorrupt(agg))
}

// ImportText reads a pasted block as the week around the next meeting day.
func (s *Service) ImportText(text string) *internal.WeekProgram {
	meeting := period.NextWeekday(s.now(), s.cfg.MeetingWeekday)
	r := period.Range{Start: meeting.AddDate(0, 0, -3), End: meeting.AddDate(0, 0, 3), Resolved: true, Lang: s.cfg.Language}
	return pipeline.ExtractWindow(text, r)
}

// ImportFile reads a workbook document from disk through the extraction chain.
func (s *Service) ImportFile(ctx context.Context, filePath string) ([]internal.WeekProgram, string, error) {
	src, err := pipeline.SourceFromFile(filePath, s.now().Year())
	if err != nil {
		return nil, "", err
	}
	return s.extract(ctx, src)
}

// ImportDocument fetches a workbook document by URL. Binary formats are picked
// by extension; anything else is read as a page.
func (s *Service) ImportDocument(ctx context.Context, docURL string) ([]internal.WeekProgram, string, error) {
	if s.fetcher == nil {
		return nil, "", errors.New("no document fetcher configured")
	}
	year := yearFromURL(docURL, s.now().Year())
	name := path.Base(strings.SplitN(docURL, "?", 2)[0])

	var src pipeline.Source
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf", ".xlsx", ".rtf", ".eml", ".txt":
		blob, _, err := s.fetcher.FetchBytes(ctx, docURL)
		if err != nil {
			return nil, "", err
		}
		if src, err = pipeline.SourceFromBytes(name, blob, year); err != nil {
			return nil, "", err
		}
	default:
		page, err := s.fetcher.FetchText(ctx, docURL, true)
		if err != nil {
			return nil, "", err
		}
		src = pipeline.Source{HTML: page, URL: docURL, Year: year}
	}
	src.URL = docURL
	return s.extract(ctx, src)
}

func (s *Service) extract(ctx context.Context, src pipeline.Source) ([]internal.WeekProgram, string, error) {
	weeks, strategy := s.chain.Extract(ctx, src)
	s.metrics.ObserveStrategy(strategy, len(weeks))
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	return s.order(schedule.DropKnownCorrupt(weeks)), strategy, nil
}

// DiscoverOnline lists the week pages of the issues covering the next months.
// Index fetches honour the structured-only policy.
func (s *Service) DiscoverOnline(ctx context.Context, months int) []DiscoveredWeek {
	out := []DiscoveredWeek{}
	if s.fetcher == nil {
		return out
	}
	if months <= 0 {
		months = s.cfg.DiscoverMonths
	}
	now := s.now()
	seen := map[string]bool{}
	for i := 0; i < months; i++ {
		d := time.Date(now.Year(), now.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		y, m := period.IssueStart(d.Year(), d.Month())
		indexURL := pipeline.IssueIndexURL(s.cfg.IndexBaseURL, y, m, s.cfg.Language)
		if seen[indexURL] {
			continue
		}
		seen[indexURL] = true

		markup, err := s.fetcher.FetchText(ctx, indexURL, false)
		if errors.Is(err, fetch.ErrStructuredOnly) {
			return out
		}
		if err != nil {
			s.log.Warn("index check failed", "url", indexURL, "error", err)
			continue
		}
		for _, link := range pipeline.HarvestLinks(markup, indexURL) {
			out = append(out, DiscoveredWeek{Period: link.Period, URL: link.URL, Year: y})
		}
	}
	return out
}

// Subscribe registers fn for enrichment updates.
func (s *Service) Subscribe(fn func(enrich.Update)) func() {
	if s.enricher == nil {
		return func() {}
	}
	return s.enricher.Broker().Subscribe(fn)
}

// CompanionPDF returns the link to the edition PDF of an issue.
func (s *Service) CompanionPDF(ctx context.Context, issueKey string) (string, error) {
	if s.assets == nil {
		return "", errors.New("no asset resolver configured")
	}
	y, m, err := period.ParseWindowKey(issueKey)
	if err != nil {
		return "", err
	}
	return s.assets.URLFor(ctx, period.WindowKey(y, m))
}

func (s *Service) order(weeks []internal.WeekProgram) []internal.WeekProgram {
	ordered, dropped := schedule.Order(weeks, s.cfg.MeetingWeekday)
	if len(dropped) > 0 {
		s.metrics.ObserveDropped("no_meeting_day", len(dropped))
		for _, w := range dropped {
			s.log.Info("week left out of schedule", "period", w.Period, "start", w.StartDate, "unresolved", w.Unresolved)
		}
	}
	return ordered
}

func (s *Service) enqueue(ctx context.Context, key string, weeks []internal.WeekProgram) {
	if s.enricher == nil || len(weeks) == 0 {
		return
	}
	s.enricher.Enqueue(ctx, key, weeks)
}

func yearFromURL(raw string, fallback int) int {
	if m := urlYear.FindString(raw); m != "" {
		if y, err := strconv.Atoi(m); err == nil {
			return y
		}
	}
	return fallback
}
