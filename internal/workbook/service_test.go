package workbook

import (
	"context"
	"errors"
	"testing"
	"time"

	"mwb/internal"
	"mwb/internal/cache"
	"mwb/internal/config"
	"mwb/internal/enrich"
	"mwb/internal/fetch"
	"mwb/internal/pipeline"
	"mwb/internal/records"
)

type fakeRows struct {
	windows     map[string][]records.Row
	ranged      []records.Row
	windowCalls int
}

func (f *fakeRows) RowsForWindow(_ context.Context, key, _ string) ([]records.Row, error) {
	f.windowCalls++
	return f.windows[key], nil
}

func (f *fakeRows) RowsInRange(_ context.Context, _, _, _ string) ([]records.Row, error) {
	return f.ranged, nil
}

type fakeFetcher struct {
	pages map[string]string
	files map[string][]byte
	err   error
}

func (f *fakeFetcher) FetchText(_ context.Context, url string, _ bool) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	page, ok := f.pages[url]
	if !ok {
		return "", errors.New("not found: " + url)
	}
	return page, nil
}

func (f *fakeFetcher) FetchBytes(_ context.Context, url string) ([]byte, string, error) {
	blob, ok := f.files[url]
	if !ok {
		return nil, "", errors.New("not found: " + url)
	}
	return blob, "application/octet-stream", nil
}

type fakeAssets struct{ asked string }

func (f *fakeAssets) URLFor(_ context.Context, key string) (string, error) {
	f.asked = key
	return "https://cdn.example.test/mwb_pdfs/" + key + ".pdf", nil
}

func week(period, start, end string) internal.WeekProgram {
	return internal.WeekProgram{
		Period:    period,
		StartDate: start,
		EndDate:   end,
		Parts: []internal.Part{
			{Number: 1, Title: "Seja corajoso", Duration: 10, Section: internal.SectionTreasures, Type: internal.PartTalk},
		},
	}
}

func rowsOf(t *testing.T, weeks ...internal.WeekProgram) []records.Row {
	t.Helper()
	out := make([]records.Row, 0, len(weeks))
	for _, w := range weeks {
		row, err := records.Encode(w)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, row)
	}
	return out
}

func testService(t *testing.T, deps Deps) *Service {
	t.Helper()
	cfg, _ := config.Load()
	cfg.Language = "pt"
	cfg.MeetingWeekday = time.Wednesday
	cfg.RangeStart = "2026-01-01"
	s := New(cfg, deps)
	s.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	return s
}

func TestImportIssueReadsRowsAndCaches(t *testing.T) {
	rows := &fakeRows{windows: map[string][]records.Row{
		"2026-03": rowsOf(t,
			week("9-15 de março", "2026-03-09", "2026-03-15"),
			week("1-7 de janeiro de 2026", "2026-01-01", "2026-01-07"),
			week("2-8 de março", "2026-03-02", "2026-03-08"),
		),
	}}
	s := testService(t, Deps{Rows: rows})

	got := s.ImportIssue(context.Background(), 2026, time.April)
	if len(got) != 2 {
		t.Fatalf("len=%d %+v", len(got), got)
	}
	if got[0].StartDate != "2026-03-02" || got[1].StartDate != "2026-03-09" {
		t.Fatalf("order=%s,%s", got[0].StartDate, got[1].StartDate)
	}

	again := s.ImportIssue(context.Background(), 2026, time.March)
	if len(again) != 2 {
		t.Fatalf("cached len=%d", len(again))
	}
	if rows.windowCalls != 1 {
		t.Fatalf("window reads=%d", rows.windowCalls)
	}
}

func TestImportIssueEmpty(t *testing.T) {
	s := testService(t, Deps{Rows: &fakeRows{}})
	got := s.ImportIssue(context.Background(), 2026, time.May)
	if got == nil || len(got) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestImportIssueUsesPrimedCache(t *testing.T) {
	c := cache.NewMemory()
	_ = c.Set(context.Background(), "2026-05", []internal.WeekProgram{week("4-10 de maio", "2026-05-04", "2026-05-10")})
	rows := &fakeRows{}
	s := testService(t, Deps{Rows: rows, Cache: c})

	got := s.ImportIssue(context.Background(), 2026, time.June)
	if len(got) != 1 || got[0].StartDate != "2026-05-04" {
		t.Fatalf("got=%+v", got)
	}
	if rows.windowCalls != 0 {
		t.Fatalf("window reads=%d", rows.windowCalls)
	}
}

func TestListUntilRange(t *testing.T) {
	rows := &fakeRows{ranged: rowsOf(t,
		week("2-8 de março", "2026-03-02", "2026-03-08"),
		week("4-10 de maio", "2026-05-04", "2026-05-10"),
	)}
	s := testService(t, Deps{Rows: rows})

	got := s.ListUntil(context.Background(), 2026, time.May)
	if len(got) != 2 || got[1].StartDate != "2026-05-04" {
		t.Fatalf("got=%+v", got)
	}
	if rows.windowCalls != 0 {
		t.Fatalf("window reads=%d", rows.windowCalls)
	}
}

func TestListUntilFallsBackToWindows(t *testing.T) {
	rows := &fakeRows{windows: map[string][]records.Row{
		"2026-03": rowsOf(t, week("2-8 de março", "2026-03-02", "2026-03-08")),
		"2026-05": rowsOf(t, week("4-10 de maio", "2026-05-04", "2026-05-10")),
	}}
	s := testService(t, Deps{Rows: rows})

	got := s.ListUntil(context.Background(), 2026, time.June)
	if len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}
	if rows.windowCalls != 2 {
		t.Fatalf("window reads=%d", rows.windowCalls)
	}
}

func TestImportText(t *testing.T) {
	s := testService(t, Deps{})
	w := s.ImportText("Cântico 76\n1. Seja corajoso (10 min)\n2. Iniciando conversas (3 min)")
	if w == nil {
		t.Fatal("nil week")
	}
	// Next Wednesday after Monday 2026-03-02 is 2026-03-04.
	if w.StartDate != "2026-03-01" || w.EndDate != "2026-03-07" {
		t.Fatalf("dates=%s..%s", w.StartDate, w.EndDate)
	}
	if len(w.Parts) != 2 {
		t.Fatalf("parts=%+v", w.Parts)
	}
	if s.ImportText("   ") != nil {
		t.Fatal("expected nil for blank text")
	}
}

func TestImportDocumentText(t *testing.T) {
	const docURL = "https://example.test/files/mwb_T_202603.txt"
	text := "2-8 DE MARÇO\nISAÍAS 1-2\nTESOUROS DA PALAVRA DE DEUS\n1. Seja corajoso (10 min)\n2. Leitura da Bíblia (4 min)"
	f := &fakeFetcher{files: map[string][]byte{docURL: []byte(text)}}
	s := testService(t, Deps{Fetcher: f})

	weeks, strategy, err := s.ImportDocument(context.Background(), docURL)
	if err != nil {
		t.Fatal(err)
	}
	if strategy != "bulk-strict" {
		t.Fatalf("strategy=%q", strategy)
	}
	if len(weeks) != 1 || weeks[0].StartDate != "2026-03-02" || len(weeks[0].Parts) != 2 {
		t.Fatalf("weeks=%+v", weeks)
	}
}

func TestImportDocumentFetchError(t *testing.T) {
	s := testService(t, Deps{Fetcher: &fakeFetcher{}})
	if _, _, err := s.ImportDocument(context.Background(), "https://example.test/page"); err == nil {
		t.Fatal("expected error")
	}
}

const indexPage = `<html><body><main>
<a href="Programacao-para-2-8-de-marco-de-2026/">2-8 de março</a>
<a href="Programacao-para-9-15-de-marco-de-2026/">9-15 de março</a>
</main></body></html>`

func TestDiscoverOnline(t *testing.T) {
	cfg, _ := config.Load()
	indexURL := pipeline.IssueIndexURL(cfg.IndexBaseURL, 2026, time.March, "pt")
	f := &fakeFetcher{pages: map[string]string{indexURL: indexPage}}
	s := testService(t, Deps{Fetcher: f})

	found := s.DiscoverOnline(context.Background(), 2)
	if len(found) != 2 {
		t.Fatalf("found=%+v", found)
	}
	if found[0].Year != 2026 || found[0].URL == "" {
		t.Fatalf("first=%+v", found[0])
	}

	f.err = fetch.ErrStructuredOnly
	if got := s.DiscoverOnline(context.Background(), 2); len(got) != 0 {
		t.Fatalf("got=%+v", got)
	}
}

func TestCompanionPDF(t *testing.T) {
	a := &fakeAssets{}
	s := testService(t, Deps{Assets: a})
	link, err := s.CompanionPDF(context.Background(), "2026-04")
	if err != nil {
		t.Fatal(err)
	}
	if a.asked != "2026-03" || link == "" {
		t.Fatalf("asked=%q link=%q", a.asked, link)
	}
	if _, err := s.CompanionPDF(context.Background(), "bogus"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSubscribe(t *testing.T) {
	if unsubscribe := testService(t, Deps{}).Subscribe(func(enrich.Update) {}); unsubscribe == nil {
		t.Fatal("nil unsubscribe")
	}

	cfg, _ := config.Load()
	e := enrich.New(cfg, &fakeFetcher{}, cache.NewMemory(), enrich.NewBroker(nil), nil, nil)
	s := testService(t, Deps{Enricher: e})

	var got []enrich.Update
	unsubscribe := s.Subscribe(func(u enrich.Update) { got = append(got, u) })
	e.Broker().Publish(enrich.Update{Key: "2026-03"})
	unsubscribe()
	e.Broker().Publish(enrich.Update{Key: "2026-05"})
	if len(got) != 1 || got[0].Key != "2026-03" {
		t.Fatalf("got=%+v", got)
	}
}
