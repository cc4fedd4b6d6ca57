package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mwb/internal"
	"mwb/internal/period"
	"mwb/internal/scenario"
	"mwb/internal/util"
)

var (
	tripleRe = regexp.MustCompile(`(?i)(\d{1,2})\.\s+(.+?)\s*\(?(\d{1,3})\s*min\.?\)?`)
	yearRe   = regexp.MustCompile(`\b(20\d{2})\b`)
)

// ExtractWeek parses one week's detail page. It returns nil when no period
// phrase is found; any other missing piece leaves the record partial.
func ExtractWeek(markup, sourceURL string, fallbackYear int) *internal.WeekProgram {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	main := mainRegion(doc)
	mainText := blockText(main)

	year := fallbackYear
	if y, ok := documentYear(doc, sourceURL); ok {
		year = y
	}

	heading := util.NormalizeSpaces(doc.Find("title").First().Text() + " " + doc.Find("h1").First().Text())
	matches := period.Find(heading, year)
	if len(matches) == 0 {
		matches = period.Find(mainText, year)
	}
	if len(matches) == 0 {
		return nil
	}
	r := matches[0].Range

	week := &internal.WeekProgram{
		Period:     r.Label(),
		StartDate:  r.StartISO(),
		EndDate:    r.EndISO(),
		Songs:      FindSongs(mainText),
		Unresolved: !r.Resolved,
	}

	spans := locateSections(mainText)
	week.BibleReading = weeklyReading(doc, main, mainText, spans)

	for _, span := range spans {
		week.Parts = append(week.Parts, extractTriples(span.section, mainText[span.start:span.end])...)
	}
	week.Parts = internal.Renumber(week.Parts)
	return week
}

func weeklyReading(doc *goquery.Document, main *goquery.Selection, mainText string, spans []sectionSpan) string {
	const readingSelector = `#p2, [data-pid="2"]`
	sel := main.Find(readingSelector).First()
	if sel.Length() == 0 {
		sel = doc.Find(readingSelector).First()
	}
	if sel.Length() > 0 {
		if ref := findReadingIn(util.NormalizeSpaces(sel.Text())); ref != "" {
			return ref
		}
	}
	for _, span := range spans {
		if span.section == internal.SectionTreasures {
			if ref := findReadingIn(mainText[span.start:span.end]); ref != "" {
				return ref
			}
		}
	}
	return findReadingIn(mainText)
}

// extractTriples reads "N. title (NN min)" items from one section's text. For
// ministry parts the text up to the next item feeds the scenario normalizer.
func extractTriples(section internal.Section, text string) []internal.Part {
	text = util.NormalizeSpaces(text)
	locs := tripleRe.FindAllStringSubmatchIndex(text, -1)
	out := make([]internal.Part, 0, len(locs))
	for i, loc := range locs {
		title := strings.TrimSpace(text[loc[4]:loc[5]])
		dur, _ := strconv.Atoi(text[loc[6]:loc[7]])
		if dur > 99 {
			dur = 0
		}
		p := internal.Part{
			Title:    cleanTitle(title),
			Duration: dur,
			Section:  section,
		}
		p.Type = classify(section, p.Title)

		if section == internal.SectionMinistry {
			next := len(text)
			if i+1 < len(locs) {
				next = locs[i+1][0]
			}
			det := scenario.Normalize(text[loc[1]:next], title)
			p.Material = det.Material
			p.Scenario = det.Scenario
			p.Description = det.Description
			p.Room = internal.RoomBoth
		}
		out = append(out, p)
	}
	return out
}

// documentYear looks for a four-digit year in the source URL and in the
// page's identifying tags.
func documentYear(doc *goquery.Document, sourceURL string) (int, bool) {
	candidates := []string{sourceURL}
	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		candidates = append(candidates, href)
	}
	if content, ok := doc.Find(`meta[property="og:url"]`).Attr("content"); ok {
		candidates = append(candidates, content)
	}
	candidates = append(candidates, doc.Find("title").First().Text())
	for _, c := range candidates {
		if m := yearRe.FindStringSubmatch(c); m != nil {
			y, err := strconv.Atoi(m[1])
			if err == nil {
				return y, true
			}
		}
	}
	return 0, false
}
