package records

import (
	"errors"
	"strings"

	"mwb/internal"
	"mwb/internal/period"
	"mwb/internal/scenario"
	"mwb/internal/util"
)

const (
	defaultItemMinutes    = 10
	defaultReadingMinutes = 4
	congregationStudyMins = 30
)

// Normalize turns stored rows into week programs. Malformed rows are skipped.
// When a current row and a legacy row describe the same week, the current one
// absorbs what it is missing and the legacy one is dropped.
func Normalize(rows []Row) []internal.WeekProgram {
	out := make([]internal.WeekProgram, 0, len(rows))
	for _, row := range rows {
		w, err := NormalizeRow(row)
		if err != nil {
			continue
		}
		out = append(out, w)
	}
	return mergeSameWeek(out)
}

// NormalizeRow converts a single row.
func NormalizeRow(row Row) (internal.WeekProgram, error) {
	start, ok := period.ParseISO(firstN(row.WeekDate, len(period.DateLayout)))
	if !ok {
		return internal.WeekProgram{}, ErrMalformed
	}
	p, err := Decode(row.Content)
	if err != nil {
		return internal.WeekProgram{}, err
	}

	startISO := start.Format(period.DateLayout)
	endISO := start.AddDate(0, 0, 6).Format(period.DateLayout)
	synthetic := startISO + "–" + endISO

	switch v := p.(type) {
	case CurrentPayload:
		return internal.WeekProgram{
			Period:       util.FirstNonEmpty(v.Period, synthetic),
			StartDate:    startISO,
			EndDate:      endISO,
			BibleReading: strings.TrimSpace(v.BibleReading),
			Songs:        v.Songs,
			Parts:        internal.Renumber(backfillMinistry(v.Parts, v.Ministry)),
		}, nil
	case LegacyPayload:
		return internal.WeekProgram{
			Period:       util.FirstNonEmpty(v.Date, synthetic),
			StartDate:    startISO,
			EndDate:      endISO,
			BibleReading: strings.TrimSpace(v.BibleReference),
			Songs: internal.Songs{
				Opening: looseSong(v.SongOpening),
				Middle:  looseSong(v.SongMiddle),
				Closing: looseSong(v.SongClosing),
			},
			Parts:      legacyParts(v),
			IsFallback: true,
		}, nil
	}
	return internal.WeekProgram{}, errors.New("unknown payload")
}

// backfillMinistry fills empty ministry fields from the parallel legacy list
// at the same ministry ordinal. Present values are never replaced.
func backfillMinistry(parts []internal.Part, ministry []LegacyItem) []internal.Part {
	out := append([]internal.Part(nil), parts...)
	k := 0
	for i := range out {
		p := &out[i]
		if p.Section != internal.SectionMinistry {
			continue
		}
		var src LegacyItem
		if k < len(ministry) {
			src = ministry[k]
		}
		k++

		if p.Material == "" {
			p.Material = src.Material
		}
		if p.Scenario == "" {
			p.Scenario = canonicalScenario(src.Scenario)
		}
		if p.Description == "" {
			p.Description = util.FirstNonEmpty(
				src.Description,
				scenario.DescriptionFromTitle(src.Title, p.Scenario),
				scenario.DescriptionFromTitle(p.Title, p.Scenario),
			)
		}
		det := scenario.Sanitize(scenario.Details{Scenario: p.Scenario, Material: p.Material, Description: p.Description})
		p.Description = det.Description
		if p.Room == "" {
			p.Room = internal.RoomBoth
		}
	}
	return out
}

func legacyParts(v LegacyPayload) []internal.Part {
	parts := []internal.Part{}
	add := func(p internal.Part) {
		parts = append(parts, p)
	}

	for _, it := range v.Treasures {
		typ := internal.PartTalk
		if util.ContainsFold(it.Title, "leitura") {
			typ = internal.PartReading
		}
		add(internal.Part{Title: it.Title, Duration: minutes(it, defaultItemMinutes), Section: internal.SectionTreasures, Type: typ})
	}
	if v.Reading != nil {
		add(internal.Part{
			Title:    "Leitura da Bíblia",
			Duration: minutesOf(v.Reading.Duration, defaultReadingMinutes),
			Section:  internal.SectionTreasures,
			Type:     internal.PartReading,
		})
	}
	for _, it := range v.Ministry {
		sc := canonicalScenario(it.Scenario)
		if sc == "" {
			sc, _, _ = scenario.Detect(it.Title)
		}
		desc := it.Description
		if desc == "" {
			desc = scenario.DescriptionFromTitle(it.Title, sc)
		}
		det := scenario.Sanitize(scenario.Details{Scenario: sc, Material: it.Material, Description: desc})
		add(internal.Part{
			Title:       it.Title,
			Duration:    minutes(it, defaultItemMinutes),
			Section:     internal.SectionMinistry,
			Type:        internal.PartDemonstration,
			Material:    det.Material,
			Scenario:    det.Scenario,
			Description: det.Description,
			Room:        internal.RoomBoth,
		})
	}
	// Legacy christian-life items carry no type; they are read as talks.
	for _, it := range v.Living {
		add(internal.Part{Title: it.Title, Duration: minutes(it, defaultItemMinutes), Section: internal.SectionLiving, Type: internal.PartTalk})
	}
	if truthy(v.BibleStudy) {
		add(internal.Part{Title: "Estudo de Congregação", Duration: congregationStudyMins, Section: internal.SectionLiving, Type: internal.PartCongregationStudy})
	}
	return internal.Renumber(parts)
}

func minutes(it LegacyItem, fallback int) int {
	if it.Bare {
		return fallback
	}
	return minutesOf(it.Duration, fallback)
}

func minutesOf(raw string, fallback int) int {
	n, ok := util.ParseLeadingInt(raw)
	if !ok || n == 0 {
		return fallback
	}
	return n
}

func canonicalScenario(label string) internal.Scenario {
	sc, _, _ := scenario.Detect(label)
	return sc
}

func mergeSameWeek(weeks []internal.WeekProgram) []internal.WeekProgram {
	current := map[string]int{}
	for i, w := range weeks {
		if !w.IsFallback {
			if _, ok := current[w.StartDate]; !ok {
				current[w.StartDate] = i
			}
		}
	}

	out := make([]internal.WeekProgram, 0, len(weeks))
	absorbed := map[int]internal.WeekProgram{}
	for _, w := range weeks {
		if !w.IsFallback {
			continue
		}
		if idx, ok := current[w.StartDate]; ok {
			base, seen := absorbed[idx]
			if !seen {
				base = weeks[idx]
			}
			absorbed[idx] = base.FillMissing(w)
		}
	}
	for i, w := range weeks {
		if w.IsFallback {
			if _, ok := current[w.StartDate]; ok {
				continue
			}
		}
		if merged, ok := absorbed[i]; ok {
			w = merged
		}
		out = append(out, w)
	}
	return out
}

func firstN(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
