package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"mwb/internal"
	"mwb/internal/period"
	"mwb/internal/scenario"
	"mwb/internal/util"
)

var (
	looseItemRe   = regexp.MustCompile(`(?i)(?:(\d{1,2})[.)]\s*)?([^()]{3,}?)\s*(?:\(\s*(\d{1,3})\s*min[^)]*\)|[-–—]\s*(\d{1,3})\s*min(?:utos?|utes?|s)?\.?)`)
	innerOrdinal  = regexp.MustCompile(`(?:^|\s)\d{1,2}[.)]\s+`)
	sentenceBreak = regexp.MustCompile(`[.!?|]\s+`)
	framingLoose  = regexp.MustCompile(`(?i)coment[áa]rios\s+(?:iniciais|finais)|opening\s+comments|concluding\s+comments`)
)

// yearTracker carries the working year across consecutive windows of one
// document so that a December week followed by a January week moves forward.
type yearTracker struct {
	year int
	last time.Time
}

func (t *yearTracker) resolve(phrase string) period.Range {
	r := period.Resolve(phrase, t.year)
	if r.Resolved && !t.last.IsZero() && r.Start.Before(t.last.AddDate(0, -6, 0)) {
		t.year++
		r = period.Resolve(phrase, t.year)
	}
	if r.Resolved {
		t.last = r.Start
		t.year = r.End.Year()
	}
	return r
}

type bulkWindow struct {
	phrase string
	lines  []string
}

// ExtractBulkStrict segments a long text into weeks by lines carrying a period
// phrase. Repeated page headers collapse into one window and windows without
// any part are dropped. A line naming two different weeks means the line
// structure was lost, and the text is left to ExtractBulkLoose.
func ExtractBulkStrict(text string, fallbackYear int) []internal.WeekProgram {
	var windows []bulkWindow
	for _, line := range util.SplitLines(text) {
		found := period.Find(line, fallbackYear)
		if namesSeveralWeeks(found) {
			return []internal.WeekProgram{}
		}
		if len(found) > 0 {
			phrase := util.NormalizeSpaces(found[0].Phrase)
			if n := len(windows); n > 0 && util.Fold(windows[n-1].phrase) == util.Fold(phrase) {
				windows[n-1].lines = append(windows[n-1].lines, line)
				continue
			}
			windows = append(windows, bulkWindow{phrase: phrase, lines: []string{line}})
			continue
		}
		if n := len(windows); n > 0 {
			windows[n-1].lines = append(windows[n-1].lines, line)
		}
	}

	tracker := &yearTracker{year: fallbackYear}
	out := make([]internal.WeekProgram, 0, len(windows))
	for _, w := range windows {
		r := tracker.resolve(w.phrase)
		body := strings.Join(w.lines, "\n")
		parts := ExtractParts(body)
		if len(parts) == 0 {
			continue
		}
		out = append(out, buildWeek(w.phrase, r, body, parts))
	}
	return out
}

func namesSeveralWeeks(found []period.Match) bool {
	for _, m := range found {
		if m.Range.Start != found[0].Range.Start {
			return true
		}
	}
	return false
}

// ExtractBulkLoose works on whitespace-collapsed text, so it still finds weeks
// when line structure was lost in conversion. Every window is kept.
func ExtractBulkLoose(text string, fallbackYear int) []internal.WeekProgram {
	flat := util.NormalizeSpaces(text)
	matches := period.Find(flat, fallbackYear)

	tracker := &yearTracker{year: fallbackYear}
	out := make([]internal.WeekProgram, 0, len(matches))
	for i, m := range matches {
		next := len(flat)
		if i+1 < len(matches) {
			next = matches[i+1].Start
		}
		window := flat[m.End:next]
		r := tracker.resolve(m.Phrase)
		out = append(out, buildWeek(util.NormalizeSpaces(m.Phrase), r, window, extractPartsLoose(window)))
	}
	return out
}

func extractPartsLoose(window string) []internal.Part {
	var parts []internal.Part
	for _, span := range locateSections(window) {
		text := window[span.start:span.end]
		locs := looseItemRe.FindAllStringSubmatchIndex(text, -1)

		// The lazy title can swallow the tail of the previous item, so each
		// item really starts where its trimmed title starts.
		starts := make([]int, len(locs))
		titles := make([]int, len(locs))
		for i, loc := range locs {
			starts[i], titles[i] = loc[0], loc[4]
			if loc[2] < 0 {
				item, title := looseTitleStart(text[loc[4]:loc[5]])
				starts[i], titles[i] = loc[4]+item, loc[4]+title
			}
		}

		for i, loc := range locs {
			title := util.NormalizeSpaces(text[titles[i]:loc[5]])
			if title == "" || framingLoose.MatchString(title) {
				continue
			}
			raw := ""
			if loc[6] >= 0 {
				raw = text[loc[6]:loc[7]]
			} else if loc[8] >= 0 {
				raw = text[loc[8]:loc[9]]
			}
			dur := 0
			if len(raw) <= 2 {
				dur, _ = strconv.Atoi(raw)
			}

			p := internal.Part{
				Title:    cleanTitle(title),
				Duration: dur,
				Section:  span.section,
			}
			p.Type = classify(span.section, p.Title)
			if span.section == internal.SectionMinistry {
				next := len(text)
				if i+1 < len(locs) {
					next = starts[i+1]
				}
				det := scenario.Normalize(text[loc[1]:next], title)
				p.Material = det.Material
				p.Scenario = det.Scenario
				p.Description = det.Description
				p.Room = internal.RoomBoth
			}
			parts = append(parts, p)
		}
	}
	return internal.Renumber(parts)
}

// looseTitleStart returns where the item and its title begin inside a lazily
// matched run: at the last inner ordinal, else after the last sentence break.
func looseTitleStart(raw string) (item, title int) {
	if locs := innerOrdinal.FindAllStringIndex(raw, -1); len(locs) > 0 {
		last := locs[len(locs)-1]
		return last[0], last[1]
	}
	if locs := sentenceBreak.FindAllStringIndex(raw, -1); len(locs) > 0 {
		last := locs[len(locs)-1]
		return last[1], last[1]
	}
	return 0, 0
}

func buildWeek(phrase string, r period.Range, body string, parts []internal.Part) internal.WeekProgram {
	w := internal.WeekProgram{
		Period:       phrase,
		StartDate:    r.StartISO(),
		EndDate:      r.EndISO(),
		BibleReading: findReadingIn(body),
		Songs:        FindSongs(body),
		Parts:        parts,
		Unresolved:   !r.Resolved,
	}
	if r.Resolved {
		w.Period = r.Label()
	}
	if w.Parts == nil {
		w.Parts = []internal.Part{}
	}
	return w
}

// ExtractWindow reads text as the body of the single week spanning r. Line
// structure is tried first, then the collapsed text. Blank text gives nil.
func ExtractWindow(text string, r period.Range) *internal.WeekProgram {
	if len(util.SplitLines(text)) == 0 {
		return nil
	}
	parts := ExtractParts(text)
	if len(parts) == 0 {
		parts = extractPartsLoose(util.NormalizeSpaces(text))
	}
	w := buildWeek(r.Label(), r, text, parts)
	return &w
}
