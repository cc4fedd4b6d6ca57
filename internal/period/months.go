package period

import (
	"strings"
	"time"

	"mwb/internal/util"
)

var monthsPT = [...]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"}

var monthsEN = [...]string{"january", "february", "march", "april", "may", "june", "july", "august", "september", "october", "november", "december"}

var monthIndex = buildMonthIndex()

func buildMonthIndex() map[string]time.Month {
	idx := map[string]time.Month{}
	for i := range monthsPT {
		m := time.Month(i + 1)
		for _, name := range []string{monthsPT[i], monthsEN[i]} {
			folded := util.Fold(name)
			idx[folded] = m
			idx[folded[:3]] = m
		}
	}
	idx["sept"] = time.September
	return idx
}

// LookupMonth matches full names and three-letter abbreviations in Portuguese or
// English, ignoring case, accents and a trailing dot.
func LookupMonth(token string) (time.Month, bool) {
	key := util.Fold(strings.TrimRight(strings.TrimSpace(token), "."))
	m, ok := monthIndex[key]
	return m, ok
}

// MonthName returns the display name of m for lang ("pt" or "en").
func MonthName(m time.Month, lang string) string {
	if m < time.January || m > time.December {
		return ""
	}
	if lang == "en" {
		return monthsEN[m-1]
	}
	return monthsPT[m-1]
}
