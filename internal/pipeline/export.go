package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"mwb/internal"
)

var exportHeaders = []string{
	"periodo", "dataInicio", "dataFim", "leituraBiblica",
	"canticoInicial", "canticoMeio", "canticoFinal",
	"numero", "titulo", "duracao", "secao", "tipo", "cenario", "sala", "material",
}

// ExportWeeksToXLSX writes one row per part, repeating the week columns.
// A week without parts still gets one row.
func ExportWeeksToXLSX(weeks []internal.WeekProgram, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	r := 2
	for _, w := range weeks {
		parts := w.Parts
		if len(parts) == 0 {
			parts = []internal.Part{{}}
		}
		for _, p := range parts {
			set := func(col int, value any) {
				cell, _ := excelize.CoordinatesToCellName(col, r)
				_ = f.SetCellValue(sheet, cell, value)
			}

			set(1, w.Period)
			set(2, w.StartDate)
			set(3, w.EndDate)
			set(4, w.BibleReading)
			set(5, derefInt(w.Songs.Opening))
			set(6, derefInt(w.Songs.Middle))
			set(7, derefInt(w.Songs.Closing))
			if p.Number > 0 {
				set(8, p.Number)
				set(9, p.Title)
				set(10, p.Duration)
				set(11, string(p.Section))
				set(12, string(p.Type))
				set(13, string(p.Scenario))
				set(14, string(p.Room))
				set(15, p.Material)
			}
			r++
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
