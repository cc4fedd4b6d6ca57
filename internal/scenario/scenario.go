// Package scenario pulls the delivery-method label, the material citation and
// the free-text description out of the text around a ministry part.
package scenario

import (
	"regexp"
	"strings"

	"mwb/internal"
	"mwb/internal/util"
)

// Details is the normalized trio. Empty strings mean absent.
type Details struct {
	Scenario    internal.Scenario
	Material    string
	Description string
}

var (
	labelFragments = map[internal.Scenario]string{
		internal.ScenarioHouseToHouse:       `DE\s+CASA\s+EM\s+CASA`,
		internal.ScenarioInformalWitnessing: `TESTEMUNHO\s+INFORMAL`,
		internal.ScenarioPublicWitnessing:   `TESTEMUNHO\s+P[ÚU]BLICO`,
		internal.ScenarioInformalChat:       `CONVERSA\s+INFORMAL`,
		internal.ScenarioHouseToHouseEN:     `HOUSE\s+TO\s+HOUSE`,
		internal.ScenarioInformalEN:         `INFORMAL\s+WITNESSING`,
		internal.ScenarioPublicEN:           `PUBLIC\s+WITNESSING`,
	}

	labelPattern = buildLabelPattern()

	materialParen = regexp.MustCompile(`(?i)\(([^()]*?\b(?:lmd|th|lfb|ap[êe]ndice|appendix|cap|chapter|lesson|li[çc][ãa]o)\b[^()]*?)\)`)
	materialBare  = regexp.MustCompile(`(?i)\b(?:lmd|th|lfb)\s+(?:li[çc][ãa]o|lesson|cap\.?|chapter|ponto|point)?\s*\d+(?:\s*(?:ponto|point)\s*\d+)?`)
	leadingPunct  = regexp.MustCompile(`^[\s.,;:\-–—|]+`)
	durationParen = regexp.MustCompile(`(?i)\s*\(\s*\d{1,3}\s*min[^)]*\)`)
)

func buildLabelPattern() *regexp.Regexp {
	alts := make([]string, 0, len(internal.Scenarios))
	for _, s := range internal.Scenarios {
		alts = append(alts, labelFragments[s])
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)
}

// Detect returns the first scenario label in text and the byte offsets of the match.
func Detect(text string) (internal.Scenario, int, int) {
	loc := labelPattern.FindStringIndex(text)
	if loc == nil {
		return "", -1, -1
	}
	return canonical(text[loc[0]:loc[1]]), loc[0], loc[1]
}

func canonical(label string) internal.Scenario {
	folded := util.Fold(util.NormalizeSpaces(label))
	for _, s := range internal.Scenarios {
		if util.Fold(string(s)) == folded {
			return s
		}
	}
	return internal.Scenario(strings.ToUpper(util.NormalizeSpaces(label)))
}

// Normalize derives the trio from span, the text that follows a ministry part's
// title up to the next part. titleLine is the part's own heading and is used
// when the span carries a label but no text after it.
func Normalize(span, titleLine string) Details {
	span = util.NormalizeSpaces(span)
	titleLine = util.NormalizeSpaces(titleLine)

	var d Details
	if sc, _, end := Detect(span); sc != "" {
		d.Scenario = sc
		d.Description = leadingPunct.ReplaceAllString(span[end:], "")
	}

	d.Material = FindMaterial(span)
	if d.Material == "" {
		d.Material = FindMaterial(titleLine)
	}

	if d.Scenario == "" {
		if sc, _, _ := Detect(titleLine); sc != "" {
			d.Scenario = sc
		}
	}
	if d.Description == "" && d.Scenario != "" {
		d.Description = DescriptionFromTitle(titleLine, d.Scenario)
	}
	return Sanitize(d)
}

// FindMaterial returns the first teaching-aid citation, parenthesized forms first.
func FindMaterial(text string) string {
	if m := materialParen.FindStringSubmatch(text); len(m) > 1 {
		return util.NormalizeSpaces(m[1])
	}
	if m := materialBare.FindString(text); m != "" {
		return util.NormalizeSpaces(m)
	}
	return ""
}

// DescriptionFromTitle returns the text after the scenario label inside a title,
// without the duration marker and a trailing material citation.
func DescriptionFromTitle(title string, sc internal.Scenario) string {
	found, _, end := Detect(title)
	if found == "" || (sc != "" && found != sc) {
		return ""
	}
	seg := leadingPunct.ReplaceAllString(title[end:], "")
	seg = durationParen.ReplaceAllString(seg, "")
	if loc := materialParen.FindStringIndex(seg); loc != nil && strings.TrimSpace(seg[loc[1]:]) == "" {
		seg = seg[:loc[0]]
	}
	return strings.TrimSpace(seg)
}

// Sanitize strips a leading repetition of the scenario label and a trailing
// parenthesized repetition of the material from the description. It runs to a
// fixed point, so Sanitize(Sanitize(d)) == Sanitize(d).
func Sanitize(d Details) Details {
	d.Material = util.NormalizeSpaces(d.Material)
	desc := util.NormalizeSpaces(d.Description)

	var prefix, suffix *regexp.Regexp
	if d.Scenario != "" {
		frag, ok := labelFragments[d.Scenario]
		if !ok {
			frag = regexp.QuoteMeta(string(d.Scenario))
		}
		prefix = regexp.MustCompile(`(?i)^(?:` + frag + `)(?:[\s.,;:\-–—|]+|$)`)
	}
	if d.Material != "" {
		suffix = regexp.MustCompile(`(?i)\s*\(\s*` + regexp.QuoteMeta(d.Material) + `\s*\)[\s.,;]*$`)
	}

	for {
		before := desc
		if prefix != nil {
			desc = strings.TrimSpace(prefix.ReplaceAllString(desc, ""))
		}
		if suffix != nil {
			desc = strings.TrimSpace(suffix.ReplaceAllString(desc, ""))
		}
		if strings.EqualFold(desc, d.Material) {
			desc = ""
		}
		if desc == before {
			break
		}
	}
	d.Description = desc
	return d
}
