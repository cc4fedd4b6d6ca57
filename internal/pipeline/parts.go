package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"mwb/internal"
	"mwb/internal/scenario"
	"mwb/internal/util"
)

var (
	ordinalRe  = regexp.MustCompile(`^(\d{1,2})[.)]\s+(.*)$`)
	durationRe = regexp.MustCompile(`(?i)\(\s*(\d+)\s*min[^)]*\)|[-–—]\s*(\d+)\s*min(?:utos?|utes?|s)?\.?`)
	framingRe  = regexp.MustCompile(`(?i)^(?:C[âa]ntico|Song)\s+\d+|coment[áa]rios\s+(?:iniciais|finais)|opening\s+comments|concluding\s+comments`)
	trailPunct = regexp.MustCompile(`[\s.,;:\-–—|]+$`)
)

// ministrySpanLines caps how many lines after a ministry title feed the
// scenario normalizer.
const ministrySpanLines = 3

type draft struct {
	section  internal.Section
	title    string
	line     string
	duration int
	timed    bool
	follow   []string
}

// ExtractParts reads a week block line by line and returns its parts numbered
// 1..n in source order.
func ExtractParts(block string) []internal.Part {
	section := internal.SectionTreasures
	var (
		parts []internal.Part
		cur   *draft
	)
	flush := func() {
		if cur != nil {
			parts = append(parts, cur.build())
			cur = nil
		}
	}

	for _, line := range util.SplitLines(block) {
		if sec, ok := headingOf(line); ok {
			flush()
			section = sec
			continue
		}
		if framingRe.MatchString(line) {
			flush()
			continue
		}
		if m := ordinalRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = newDraft(section, m[2])
			continue
		}
		if dur, ok := findDuration(line); ok {
			if cur != nil && !cur.timed && len(cur.follow) < 2 {
				cur.duration, cur.timed = dur, true
				cur.follow = append(cur.follow, line)
				continue
			}
			flush()
			cur = newDraft(section, line)
			continue
		}
		if cur != nil {
			cur.follow = append(cur.follow, line)
		}
	}
	flush()

	return internal.Renumber(parts)
}

func newDraft(section internal.Section, line string) *draft {
	d := &draft{section: section, line: line}
	d.duration, d.timed = findDuration(line)
	d.title = cleanTitle(line)
	return d
}

func (d *draft) build() internal.Part {
	p := internal.Part{
		Title:    d.title,
		Duration: d.duration,
		Section:  d.section,
		Type:     classify(d.section, d.title),
	}
	if d.section == internal.SectionMinistry {
		follow := d.follow
		if len(follow) > ministrySpanLines {
			follow = follow[:ministrySpanLines]
		}
		span := durationRe.ReplaceAllString(strings.Join(append([]string{d.line}, follow...), " "), " ")
		det := scenario.Normalize(span, d.line)
		p.Material = det.Material
		p.Scenario = det.Scenario
		p.Description = det.Description
		p.Room = internal.RoomBoth
	}
	return p
}

// findDuration returns the minutes of the first duration marker in line. A
// marker whose number cannot be a real duration yields 0 but still counts.
func findDuration(line string) (int, bool) {
	m := durationRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	raw := util.FirstNonEmpty(m[1], m[2])
	if len(raw) > 2 {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true
	}
	return n, true
}

// cleanTitle drops duration markers and everything from the scenario label on.
func cleanTitle(line string) string {
	title := line
	if loc := durationRe.FindStringIndex(title); loc != nil {
		if loc[0] > 0 {
			title = title[:loc[0]]
		} else {
			title = title[loc[1]:]
		}
	}
	if sc, start, _ := scenario.Detect(title); sc != "" && start > 0 {
		title = title[:start]
	}
	title = durationRe.ReplaceAllString(title, " ")
	title = trailPunct.ReplaceAllString(util.NormalizeSpaces(title), "")
	return strings.TrimLeft(title, ".,;:-–— ")
}

func classify(section internal.Section, title string) internal.PartType {
	t := util.Fold(title)
	switch section {
	case internal.SectionMinistry:
		return internal.PartDemonstration
	case internal.SectionLiving:
		switch {
		case strings.Contains(t, "estudo") && strings.Contains(t, "congrega"),
			strings.Contains(t, "congregation") && strings.Contains(t, "study"):
			return internal.PartCongregationStudy
		default:
			return internal.PartElderConsideration
		}
	default:
		switch {
		case strings.Contains(t, "leitura") || strings.Contains(t, "reading"):
			return internal.PartReading
		case strings.Contains(t, "joias") || strings.Contains(t, "gems"):
			return internal.PartQuestionsAnswers
		default:
			return internal.PartTalk
		}
	}
}
