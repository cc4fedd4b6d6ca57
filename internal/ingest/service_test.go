package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mwb/internal"
	"mwb/internal/assets"
	"mwb/internal/config"
	"mwb/internal/records"
	"mwb/internal/storage"
)

const indexURL = "https://www.jw.org/pt/biblioteca/jw-apostila-do-mes/marco-abril-2026-mwb/"

const indexPage = `<html><body><main>
<h1>Apostila Vida e Ministério</h1>
<ul>
<li><a href="semana-2-8">2-8 de março</a></li>
<li><a href="semana-9-15">9-15 de março</a></li>
</ul>
<p><a href="/files/mwb_T_202603.pdf">Baixar</a></p>
<h2>30 de março – 5 de abril</h2>
<p>1. Um discurso (10 min)</p>
</main></body></html>`

const firstWeekPage = `<html><head><title>2-8 de março</title></head><body><main>
<h1>2-8 DE MARÇO</h1>
<h2 id="p2">ISAÍAS 1-2</h2>
<h2>TESOUROS DA PALAVRA DE DEUS</h2>
<h3>1. Seja corajoso (10 min)</h3>
<h2>FAÇA SEU MELHOR NO MINISTÉRIO</h2>
<h3>2. Iniciando conversas (3 min)</h3>
<p>DE CASA EM CASA. Use um vídeo.</p>
</main></body></html>`

type fakeFetcher struct {
	pages map[string]string
	files map[string][]byte
}

func (f *fakeFetcher) FetchText(_ context.Context, url string, _ bool) (string, error) {
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
	return blob, "application/pdf", nil
}

type mockS3Client struct {
	keys []string
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	_, _ = io.ReadAll(input.Body)
	m.keys = append(m.keys, *input.Key)
	return &s3.PutObjectOutput{}, nil
}

func newTestService(t *testing.T, f Fetcher, s3mock *mockS3Client) (*Service, *storage.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "mwb.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		RawDir:        filepath.Join(dir, "raw"),
		Language:      "pt",
		IndexBaseURL:  "https://www.jw.org",
		IngestPauseMs: 1,
		BackfillYears: 0,
	}
	var store *assets.Store
	if s3mock != nil {
		store = assets.NewStore(s3mock, nil, assets.Options{Bucket: "mwb", Region: "us-east-1"}, nil)
	}
	svc := NewService(db, f, store, cfg, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, time.April, 10, 12, 0, 0, 0, time.UTC) }
	return svc, db
}

func TestIngestIssue(t *testing.T) {
	f := &fakeFetcher{
		pages: map[string]string{
			indexURL:                 indexPage,
			indexURL + "semana-2-8":  firstWeekPage,
			indexURL + "semana-9-15": "<html><body><p>Página indisponível</p></body></html>",
		},
		files: map[string][]byte{"https://www.jw.org/files/mwb_T_202603.pdf": []byte("%PDF-1.7")},
	}
	s3mock := &mockS3Client{}
	svc, db := newTestService(t, f, s3mock)
	ctx := context.Background()

	res, err := svc.IngestIssue(ctx, 2026, time.April)
	if err != nil {
		t.Fatal(err)
	}
	if res.IssueKey != "2026-03" || res.Weeks != 2 {
		t.Fatalf("res=%+v", res)
	}
	if res.PDFKey != "mwb_pdfs/2026-03.pdf" || len(s3mock.keys) != 1 {
		t.Fatalf("pdf=%q keys=%v", res.PDFKey, s3mock.keys)
	}

	rows, err := db.RowsForWindow(ctx, "2026-03", "pt-BR")
	if err != nil {
		t.Fatal(err)
	}
	weeks := records.Normalize(rows)
	if len(weeks) != 2 {
		t.Fatalf("len=%d", len(weeks))
	}
	if weeks[0].StartDate != "2026-03-02" || weeks[0].BibleReading != "ISAÍAS 1-2" {
		t.Fatalf("first=%+v", weeks[0])
	}
	if weeks[1].StartDate != "2026-03-30" || weeks[1].EndDate != "2026-04-05" {
		t.Fatalf("second=%+v", weeks[1])
	}

	runs, _ := db.ListRuns(ctx, "2026-03", 5)
	if len(runs) != 1 || runs[0].TraceID != res.TraceID || runs[0].Counts["failedPages"] != 1 {
		t.Fatalf("runs=%+v", runs)
	}
	entries, _ := os.ReadDir(filepath.Join(svc.cfg.RawDir))
	if len(entries) != 2 {
		t.Fatalf("archived=%d", len(entries))
	}
}

func TestIngestIssueIndexFailure(t *testing.T) {
	svc, _ := newTestService(t, &fakeFetcher{}, nil)
	res, err := svc.IngestIssue(context.Background(), 2026, time.March)
	if err == nil {
		t.Fatalf("expected error")
	}
	if res.IssueKey != "2026-03" || res.Weeks != 0 {
		t.Fatalf("res=%+v", res)
	}
}

func TestRunModes(t *testing.T) {
	svc, _ := newTestService(t, &fakeFetcher{}, nil)
	ctx := context.Background()

	cases := []struct {
		mode Mode
		opts RunOptions
		keys []string
	}{
		{ModeSingle, RunOptions{}, []string{"2026-03"}},
		{ModeSingle, RunOptions{Year: 2025, Month: time.December}, []string{"2025-11"}},
		{ModeNext, RunOptions{}, []string{"2026-05"}},
		{ModePair, RunOptions{}, []string{"2026-03", "2026-05"}},
		{ModeBackfill, RunOptions{StartYear: 2026, EndYear: 2026}, []string{"2026-01", "2026-03", "2026-05", "2026-07", "2026-09", "2026-11"}},
	}
	for _, c := range cases {
		summary, err := svc.Run(ctx, c.mode, c.opts)
		if err != nil {
			t.Fatalf("%s: %v", c.mode, err)
		}
		if len(summary.Issues) != len(c.keys) {
			t.Fatalf("%s: issues=%+v", c.mode, summary.Issues)
		}
		for i, k := range c.keys {
			if summary.Issues[i].IssueKey != k || summary.Issues[i].Error == "" {
				t.Fatalf("%s: issue[%d]=%+v", c.mode, i, summary.Issues[i])
			}
		}
	}

	if _, err := ParseMode("weekly"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNextIssueWrapsYear(t *testing.T) {
	y, m := nextIssue(2025, time.November)
	if y != 2026 || m != time.January {
		t.Fatalf("next=%d-%d", y, m)
	}
}

func TestUpsertAndDeleteIssue(t *testing.T) {
	svc, db := newTestService(t, &fakeFetcher{}, nil)
	ctx := context.Background()

	if _, err := svc.UpsertWeeks(ctx, "2026-03", nil); err == nil {
		t.Fatalf("expected error for empty weeks")
	}
	if _, err := svc.DeleteIssue(ctx, "março"); err == nil {
		t.Fatalf("expected error for bad key")
	}

	week := internal.WeekProgram{
		Period:    "2-8 de março de 2026",
		StartDate: "2026-03-02",
		EndDate:   "2026-03-08",
		Parts:     []internal.Part{{Number: 1, Title: "Seja corajoso", Duration: 10, Section: internal.SectionTreasures, Type: internal.PartTalk}},
	}
	n, err := svc.UpsertWeeks(ctx, "2026-03", []internal.WeekProgram{week})
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	deleted, err := svc.DeleteIssue(ctx, "2026-03")
	if err != nil || deleted != 1 {
		t.Fatalf("deleted=%d err=%v", deleted, err)
	}
	rows, _ := db.RowsForWindow(ctx, "2026-03", "pt-BR")
	if len(rows) != 0 {
		t.Fatalf("rows=%d", len(rows))
	}
}
