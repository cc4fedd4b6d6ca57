package period

import "sort"

// Match is one period phrase found in a larger text.
type Match struct {
	Start  int
	End    int
	Phrase string
	Range  Range
}

// Find returns every period phrase in text in document order. Overlapping
// candidates keep the earliest, then the longest, match.
func Find(text string, fallbackYear int) []Match {
	var all []Match
	for _, s := range shapes {
		for _, loc := range s.re.FindAllStringSubmatchIndex(text, -1) {
			groups := make([]string, len(loc)/2)
			for g := range groups {
				if loc[2*g] >= 0 {
					groups[g] = text[loc[2*g]:loc[2*g+1]]
				}
			}
			r, ok := s.build(groups, fallbackYear)
			if !ok {
				continue
			}
			r.Lang = s.lang
			all = append(all, Match{Start: loc[0], End: loc[1], Phrase: groups[0], Range: r})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Start != all[j].Start {
			return all[i].Start < all[j].Start
		}
		return all[i].End > all[j].End
	})

	out := make([]Match, 0, len(all))
	lastEnd := -1
	for _, m := range all {
		if m.Start < lastEnd {
			continue
		}
		out = append(out, m)
		lastEnd = m.End
	}
	return out
}

// Contains reports whether text holds at least one resolvable period phrase.
func Contains(text string) bool {
	return len(Find(text, 2000)) > 0
}
