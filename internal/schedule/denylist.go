package schedule

import (
	"strings"

	"mwb/internal"
	"mwb/internal/util"
)

// KnownCorruptEntry describes a stored week known to be wrong upstream.
type KnownCorruptEntry struct {
	StartDate string
	// PeriodYear, when set, matches a "1-7 de janeiro" label of that year.
	PeriodYear string
}

// KnownCorruptEntries lists the placeholder weeks the legacy importer wrote
// for the turn of 2025 and 2026.
var KnownCorruptEntries = []KnownCorruptEntry{
	{StartDate: "2025-01-01", PeriodYear: "2025"},
	{StartDate: "2026-01-01", PeriodYear: "2026"},
}

// KnownCorrupt reports whether w matches a denylisted week.
func KnownCorrupt(w internal.WeekProgram) bool {
	label := util.Fold(w.Period)
	for _, e := range KnownCorruptEntries {
		if w.StartDate == e.StartDate {
			return true
		}
		if e.PeriodYear != "" && strings.Contains(label, "1") && strings.Contains(label, "7") &&
			strings.Contains(label, "janeiro") && strings.Contains(label, e.PeriodYear) {
			return true
		}
	}
	return false
}

// DropKnownCorrupt returns weeks without the denylisted ones.
func DropKnownCorrupt(weeks []internal.WeekProgram) []internal.WeekProgram {
	out := make([]internal.WeekProgram, 0, len(weeks))
	for _, w := range weeks {
		if !KnownCorrupt(w) {
			out = append(out, w)
		}
	}
	return out
}
