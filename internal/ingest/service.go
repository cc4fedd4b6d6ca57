// Package ingest fetches whole issues from the publisher's site and stores
// their weeks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"mwb/internal"
	"mwb/internal/assets"
	"mwb/internal/config"
	"mwb/internal/logging"
	"mwb/internal/observability/metrics"
	"mwb/internal/period"
	"mwb/internal/pipeline"
	"mwb/internal/storage"
)

type Mode string

const (
	ModeSingle   Mode = "single"
	ModeNext     Mode = "next"
	ModePair     Mode = "pair"
	ModeBackfill Mode = "backfill"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case "", ModeSingle:
		return ModeSingle, nil
	case ModeNext, ModePair, ModeBackfill:
		return Mode(value), nil
	default:
		return "", fmt.Errorf("unsupported ingest mode: %s", value)
	}
}

type Fetcher interface {
	FetchText(ctx context.Context, url string, force bool) (string, error)
	FetchBytes(ctx context.Context, url string) ([]byte, string, error)
}

// weekPageChain reads a single-week page, falling back to its stripped text.
var weekPageChain = pipeline.Chain{pipeline.MarkupStrategy{}, pipeline.BulkLooseStrategy{}}

type Service struct {
	db      *storage.DB
	fetcher Fetcher
	assets  *assets.Store
	archive *Archive
	cfg     config.Config
	log     *logging.Logger
	metrics *metrics.ExtractionMetrics
	now     func() time.Time
}

func NewService(db *storage.DB, fetcher Fetcher, store *assets.Store, cfg config.Config, log *logging.Logger, m *metrics.ExtractionMetrics) *Service {
	if log == nil {
		log = logging.Discard()
	}
	return &Service{
		db:      db,
		fetcher: fetcher,
		assets:  store,
		archive: NewArchive(db, cfg.RawDir),
		cfg:     cfg,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

type IssueResult struct {
	IssueKey string `json:"issueKey"`
	Weeks    int    `json:"weeks"`
	PDFKey   string `json:"pdfKey,omitempty"`
	TraceID  string `json:"traceId"`
	Error    string `json:"error,omitempty"`
}

type Summary struct {
	Mode       Mode          `json:"mode"`
	TotalWeeks int           `json:"totalWeeks"`
	Issues     []IssueResult `json:"issues"`
}

type RunOptions struct {
	Year      int
	Month     time.Month
	StartYear int
	EndYear   int
}

// Run ingests the issues selected by mode. Per-issue failures are reported in
// the summary and do not stop a multi-issue run.
func (s *Service) Run(ctx context.Context, mode Mode, opts RunOptions) (Summary, error) {
	now := s.now()
	curYear, curMonth := period.IssueStart(now.Year(), now.Month())
	nextYear, nextMonth := nextIssue(curYear, curMonth)

	var targets [][2]int
	switch mode {
	case ModeSingle:
		y, m := curYear, curMonth
		if opts.Year > 0 {
			y = opts.Year
		}
		if opts.Month > 0 {
			_, m = period.IssueStart(y, opts.Month)
		}
		targets = append(targets, [2]int{y, int(m)})
	case ModeNext:
		targets = append(targets, [2]int{nextYear, int(nextMonth)})
	case ModePair:
		targets = append(targets, [2]int{curYear, int(curMonth)}, [2]int{nextYear, int(nextMonth)})
	case ModeBackfill:
		start, end := opts.StartYear, opts.EndYear
		if start == 0 {
			start = now.Year() - s.cfg.BackfillYears
		}
		if end == 0 {
			end = now.Year()
		}
		for y := start; y <= end; y++ {
			for m := 1; m <= 12; m += 2 {
				targets = append(targets, [2]int{y, m})
			}
		}
	default:
		return Summary{}, fmt.Errorf("unsupported ingest mode: %s", mode)
	}

	summary := Summary{Mode: mode, Issues: make([]IssueResult, 0, len(targets))}
	for i, t := range targets {
		if i > 0 && mode == ModeBackfill {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(s.cfg.IngestPause()):
			}
		}
		res, err := s.IngestIssue(ctx, t[0], time.Month(t[1]))
		if err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			res.Error = err.Error()
			s.log.Warn("ingest issue failed", "issue", res.IssueKey, "error", err)
		}
		summary.TotalWeeks += res.Weeks
		summary.Issues = append(summary.Issues, res)
	}
	return summary, nil
}

// IngestIssue fetches the index of the issue starting at monthStart, reads
// every linked week plus the weeks found in the index text, stores them and
// archives the edition PDF.
func (s *Service) IngestIssue(ctx context.Context, year int, monthStart time.Month) (IssueResult, error) {
	start := time.Now()
	issueKey := period.WindowKey(year, monthStart)
	y, m := period.IssueStart(year, monthStart)
	res := IssueResult{IssueKey: issueKey, TraceID: uuid.NewString()}
	log := s.log.With("issue", issueKey, "trace_id", res.TraceID)

	indexURL := pipeline.IssueIndexURL(s.cfg.IndexBaseURL, y, m, s.cfg.Language)
	markup, err := s.fetcher.FetchText(ctx, indexURL, true)
	if err != nil {
		return res, fmt.Errorf("fetch index %s: %w", indexURL, err)
	}
	if _, err := s.archive.Store(ctx, indexURL, "html", []byte(markup)); err != nil {
		log.Warn("archive index failed", "error", err)
	}
	fetchedIndex := time.Now()

	weeks, failed := s.collectWeeks(ctx, markup, indexURL, y)
	extracted := time.Now()

	stored := make([]internal.WeekProgram, 0, len(weeks))
	unresolved := 0
	for _, w := range weeks {
		if w.Unresolved {
			unresolved++
			continue
		}
		stored = append(stored, w)
	}
	if len(stored) > 0 {
		n, err := s.db.UpsertWeeks(ctx, issueKey, s.cfg.LanguageTag(), stored)
		if err != nil {
			return res, fmt.Errorf("store weeks: %w", err)
		}
		res.Weeks = n
		res.PDFKey = s.archiveEditionPDF(ctx, log, issueKey, markup, indexURL)
	}
	s.metrics.ObserveIngest(issueKey, res.Weeks)
	s.metrics.ObserveDropped("unresolved", unresolved)

	_ = s.db.InsertRun(ctx, res.TraceID, issueKey,
		map[string]float64{
			"indexMs":   float64(fetchedIndex.Sub(start).Milliseconds()),
			"extractMs": float64(extracted.Sub(fetchedIndex).Milliseconds()),
			"totalMs":   float64(time.Since(start).Milliseconds()),
		},
		map[string]int{"extracted": len(weeks), "stored": res.Weeks, "unresolved": unresolved, "failedPages": failed})
	_ = s.db.SetMetadata(ctx, "ingest.last."+issueKey, s.now().UTC().Format(time.RFC3339))

	log.Info("issue ingested", "weeks", res.Weeks, "extracted", len(weeks), "failed_pages", failed, "pdf", res.PDFKey)
	return res, nil
}

// collectWeeks reads each linked week page, then adds the weeks found in the
// index text whose start date no page covered. Output is sorted by start date.
func (s *Service) collectWeeks(ctx context.Context, markup, indexURL string, year int) ([]internal.WeekProgram, int) {
	var weeks []internal.WeekProgram
	failed := 0
	for _, link := range pipeline.HarvestLinks(markup, indexURL) {
		if ctx.Err() != nil {
			break
		}
		w, err := s.weekFromPage(ctx, link.URL, year)
		if err != nil {
			failed++
			s.log.Warn("week page skipped", "url", link.URL, "period", link.Period, "error", err)
			continue
		}
		weeks = append(weeks, w)
	}

	seen := map[string]bool{}
	for _, w := range weeks {
		seen[w.StartDate] = true
	}
	for _, w := range pipeline.ExtractBulkLoose(pipeline.StripHTML(markup), year) {
		if !seen[w.StartDate] {
			seen[w.StartDate] = true
			weeks = append(weeks, w)
		}
	}

	sort.SliceStable(weeks, func(i, j int) bool { return weeks[i].StartDate < weeks[j].StartDate })
	return weeks, failed
}

var errNoWeek = errors.New("no week found on page")

func (s *Service) weekFromPage(ctx context.Context, pageURL string, year int) (internal.WeekProgram, error) {
	page, err := s.fetcher.FetchText(ctx, pageURL, true)
	if err != nil {
		return internal.WeekProgram{}, err
	}
	weeks, strategy := weekPageChain.Extract(ctx, pipeline.Source{HTML: page, URL: pageURL, Year: year})
	s.metrics.ObserveStrategy(strategy, len(weeks))
	if len(weeks) == 0 {
		return internal.WeekProgram{}, errNoWeek
	}
	return weeks[0], nil
}

func (s *Service) archiveEditionPDF(ctx context.Context, log *logging.Logger, issueKey, markup, indexURL string) string {
	pdfURL := pipeline.FindEditionPDF(markup, indexURL)
	if pdfURL == "" || !s.assets.Enabled() {
		return ""
	}
	body, _, err := s.fetcher.FetchBytes(ctx, pdfURL)
	if err != nil {
		log.Warn("edition pdf fetch failed", "url", pdfURL, "error", err)
		return ""
	}
	if _, err := s.archive.Store(ctx, pdfURL, "pdf", body); err != nil {
		log.Warn("archive pdf failed", "error", err)
	}
	key, err := s.assets.PutEditionPDF(ctx, issueKey, body)
	if err != nil {
		log.Warn("edition pdf upload failed", "error", err)
		return ""
	}
	return key
}

// UpsertWeeks stores caller-supplied weeks for an issue.
func (s *Service) UpsertWeeks(ctx context.Context, issueKey string, weeks []internal.WeekProgram) (int, error) {
	if len(weeks) == 0 {
		return 0, errors.New("weeks required")
	}
	if _, _, err := period.ParseWindowKey(issueKey); err != nil {
		return 0, err
	}
	return s.db.UpsertWeeks(ctx, issueKey, s.cfg.LanguageTag(), weeks)
}

func (s *Service) DeleteIssue(ctx context.Context, issueKey string) (int64, error) {
	if _, _, err := period.ParseWindowKey(issueKey); err != nil {
		return 0, err
	}
	return s.db.DeleteIssue(ctx, issueKey, s.cfg.LanguageTag())
}

func nextIssue(year int, month time.Month) (int, time.Month) {
	month += 2
	if month > 12 {
		return year + 1, 1
	}
	return year, month
}
