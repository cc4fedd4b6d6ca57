package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"mwb/internal"
)

type sectionSpan struct {
	section internal.Section
	start   int
	end     int
}

type sectionHeading struct {
	section internal.Section
	strong  *regexp.Regexp
	weak    *regexp.Regexp
}

// Fixed priority: opening, ministry, christian life.
var sectionHeadings = []sectionHeading{
	{
		section: internal.SectionTreasures,
		strong:  regexp.MustCompile(`(?i)TESOUROS\s+DA\s+PALAVRA(?:\s+DE\s+DEUS)?|TREASURES\s+FROM\s+GOD[’']?S\s+WORD`),
		weak:    regexp.MustCompile(`(?i)\bTESOUROS\b|\bTREASURES\b`),
	},
	{
		section: internal.SectionMinistry,
		strong:  regexp.MustCompile(`(?i)FA[ÇC]A\s+SEU\s+MELHOR\s+NO\s+MINIST[ÉE]RIO|APPLY\s+YOURSELF\s+TO\s+THE\s+FIELD\s+MINISTRY`),
		weak:    regexp.MustCompile(`(?i)MINIST[ÉE]RIO|APPLY\s+YOURSELF`),
	},
	{
		section: internal.SectionLiving,
		strong:  regexp.MustCompile(`(?i)NOSSA\s+VIDA\s+CRIST[ÃA]|OUR\s+CHRISTIAN\s+LIFE|LIVING\s+AS\s+CHRISTIANS`),
		weak:    regexp.MustCompile(`(?i)VIDA\s+CRIST[ÃA]|CHRISTIAN\s+LIFE`),
	},
}

// locateSections splits text into section spans by heading search. Text before
// the first heading belongs to the opening section; a text without headings is
// one opening span.
func locateSections(text string) []sectionSpan {
	type hit struct {
		section internal.Section
		at      int
	}
	var hits []hit
	after := 0
	for _, h := range sectionHeadings {
		loc := firstIndexFrom(h.strong, text, after)
		if loc < 0 {
			loc = firstIndexFrom(h.weak, text, after)
		}
		if loc < 0 {
			continue
		}
		hits = append(hits, hit{section: h.section, at: loc})
		after = loc
	}
	if len(hits) == 0 {
		return []sectionSpan{{section: internal.SectionTreasures, start: 0, end: len(text)}}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at < hits[j].at })

	var spans []sectionSpan
	if hits[0].at > 0 && hits[0].section != internal.SectionTreasures {
		spans = append(spans, sectionSpan{section: internal.SectionTreasures, start: 0, end: hits[0].at})
	}
	for i, h := range hits {
		start := h.at
		if i == 0 && h.section == internal.SectionTreasures {
			start = 0
		}
		end := len(text)
		if i+1 < len(hits) {
			end = hits[i+1].at
		}
		spans = append(spans, sectionSpan{section: h.section, start: start, end: end})
	}
	return spans
}

func firstIndexFrom(re *regexp.Regexp, text string, from int) int {
	if from > len(text) {
		return -1
	}
	loc := re.FindStringIndex(text[from:])
	if loc == nil {
		return -1
	}
	return from + loc[0]
}

// headingOf reports the section a single line announces, if any. Lines with an
// ordinal or a duration marker are items, never headings, and the short forms
// only count when written in capitals.
func headingOf(line string) (internal.Section, bool) {
	if ordinalRe.MatchString(line) || durationRe.MatchString(line) {
		return "", false
	}
	for _, h := range sectionHeadings {
		if h.strong.MatchString(line) {
			return h.section, true
		}
	}
	for _, h := range sectionHeadings {
		if h.weak.MatchString(line) && line == strings.ToUpper(line) {
			return h.section, true
		}
	}
	return "", false
}
