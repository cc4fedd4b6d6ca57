package storage

import (
	"context"
	"path/filepath"
	"testing"

	"mwb/internal"
	"mwb/internal/records"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "mwb.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testWeek(start, end, title string) internal.WeekProgram {
	return internal.WeekProgram{
		Period:    start,
		StartDate: start,
		EndDate:   end,
		Parts: []internal.Part{
			{Number: 1, Title: title, Duration: 10, Section: internal.SectionTreasures, Type: internal.PartTalk},
		},
	}
}

func TestUpsertWeeksAndRead(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	weeks := []internal.WeekProgram{
		testWeek("2026-03-09", "2026-03-15", "Segunda"),
		testWeek("2026-03-02", "2026-03-08", "Primeira"),
		{Period: "vazia", StartDate: "2026-03-16", EndDate: "2026-03-22"},
	}
	n, err := db.UpsertWeeks(ctx, "2026-03", "pt-BR", weeks)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("written=%d", n)
	}

	// Upsert replaces content for the same key.
	if _, err := db.UpsertWeeks(ctx, "2026-03", "pt-BR", []internal.WeekProgram{testWeek("2026-03-02", "2026-03-08", "Atualizada")}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertWeeks(ctx, "2026-03", "en", []internal.WeekProgram{testWeek("2026-03-02", "2026-03-08", "English")}); err != nil {
		t.Fatal(err)
	}

	rows, err := db.RowsForWindow(ctx, "2026-03", "pt-BR")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("len=%d", len(rows))
	}
	got := records.Normalize(rows)
	if got[0].StartDate != "2026-03-02" || got[0].Parts[0].Title != "Atualizada" {
		t.Fatalf("first=%+v", got[0])
	}

	ranged, err := db.RowsInRange(ctx, "2026-03-05", "2026-12-31", "pt-BR")
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 1 || ranged[0].WeekDate != "2026-03-09" {
		t.Fatalf("ranged=%+v", ranged)
	}
}

func TestDeleteIssue(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, _ = db.UpsertWeeks(ctx, "2026-03", "pt-BR", []internal.WeekProgram{testWeek("2026-03-02", "2026-03-08", "x")})
	_, _ = db.UpsertWeeks(ctx, "2026-05", "pt-BR", []internal.WeekProgram{testWeek("2026-05-04", "2026-05-10", "y")})

	n, err := db.DeleteIssue(ctx, "2026-03", "pt-BR")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("deleted=%d", n)
	}
	rows, _ := db.RowsForWindow(ctx, "2026-05", "pt-BR")
	if len(rows) != 1 {
		t.Fatalf("len=%d", len(rows))
	}
}

func TestRunsDocumentsMetadata(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.InsertRun(ctx, "trace-1", "2026-03", map[string]float64{"fetch": 1.5}, map[string]int{"weeks": 4}); err != nil {
		t.Fatal(err)
	}
	runs, err := db.ListRuns(ctx, "2026-03", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Counts["weeks"] != 4 || runs[0].Timings["fetch"] != 1.5 {
		t.Fatalf("runs=%+v", runs)
	}

	doc := DocumentRow{Hash: "abc", URL: "https://example.test/a", Kind: "html", RawRef: "/tmp/abc.html"}
	if err := db.UpsertDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetDocument(ctx, "abc")
	if err != nil || got == nil || got.URL != doc.URL {
		t.Fatalf("doc=%+v err=%v", got, err)
	}
	if missing, _ := db.GetDocument(ctx, "nope"); missing != nil {
		t.Fatalf("expected nil")
	}

	if v, _ := db.GetMetadata(ctx, "last_issue"); v != nil {
		t.Fatalf("expected nil metadata")
	}
	_ = db.SetMetadata(ctx, "last_issue", "2026-03")
	_ = db.SetMetadata(ctx, "last_issue", "2026-05")
	v, err := db.GetMetadata(ctx, "last_issue")
	if err != nil || v == nil || *v != "2026-05" {
		t.Fatalf("metadata=%v err=%v", v, err)
	}
}
