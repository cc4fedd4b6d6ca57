package pipeline

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"mwb/internal"
	"mwb/internal/util"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestSourceFromXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"2-8 DE MARÇO"},
		{"TESOUROS DA PALAVRA DE DEUS"},
		{"1. Seja corajoso", "(10 min)"},
		{"2. Joias espirituais", "(10 min)"},
	})
	src, err := SourceFromBytes("apostila.xlsx", blob, 2026)
	if err != nil {
		t.Fatal(err)
	}
	weeks, name := DefaultChain().Extract(context.Background(), src)
	if name != "bulk-strict" || len(weeks) != 1 {
		t.Fatalf("name=%q len=%d", name, len(weeks))
	}
	if len(weeks[0].Parts) != 2 || weeks[0].Parts[0].Duration != 10 {
		t.Fatalf("parts=%+v", weeks[0].Parts)
	}
}

func TestTextFromRTF(t *testing.T) {
	rtf := `{\rtf1\ansi\deff0{\fonttbl{\f0 Arial;}}{\*\generator Test;}\f0\fs24 2-8 de mar\'e7o\par TESOUROS DA PALAVRA DE DEUS\par 1. Seja corajoso (10 min)\par 2. Leitura da B\u237?blia (4 min)\par}`
	text := TextFromRTF([]byte(rtf))
	if strings.Contains(text, "Arial") || strings.Contains(text, "Test;") {
		t.Fatalf("destination text leaked: %q", text)
	}
	lines := strings.Split(text, "\n")
	if len(lines) != 4 || lines[0] != "2-8 de março" || lines[3] != "2. Leitura da Bíblia (4 min)" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestSourceFromBytesUnsupported(t *testing.T) {
	if _, err := SourceFromBytes("apostila.doc", nil, 2026); err == nil || !strings.Contains(err.Error(), "unsupported input type") {
		t.Fatalf("err=%v", err)
	}
}

func TestExportWeeksToXLSX(t *testing.T) {
	weeks := []internal.WeekProgram{
		{
			Period:    "2-8 de março",
			StartDate: "2026-03-02",
			EndDate:   "2026-03-08",
			Songs:     internal.Songs{Opening: util.IntPtr(76)},
			Parts: []internal.Part{
				{Number: 1, Title: "Seja corajoso", Duration: 10, Section: internal.SectionTreasures, Type: internal.PartTalk},
				{Number: 2, Title: "Iniciando conversas", Duration: 3, Section: internal.SectionMinistry, Type: internal.PartDemonstration, Scenario: internal.ScenarioHouseToHouse},
			},
		},
		{Period: "9-15 de março", StartDate: "2026-03-09", EndDate: "2026-03-15"},
	}
	out := filepath.Join(t.TempDir(), "out", "semanas.xlsx")
	if err := ExportWeeksToXLSX(weeks, out); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("len=%d", len(rows))
	}
	if rows[0][0] != "periodo" || rows[1][4] != "76" || rows[2][8] != "Iniciando conversas" {
		t.Fatalf("rows=%v", rows)
	}
	if rows[3][1] != "2026-03-09" {
		t.Fatalf("empty week row=%v", rows[3])
	}
}
