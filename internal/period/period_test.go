package period

import (
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name     string
		phrase   string
		fallback int
		start    string
		end      string
	}{
		{name: "same month", phrase: "2-8 de dezembro", fallback: 2025, start: "2025-12-02", end: "2025-12-08"},
		{name: "cross month with year", phrase: "26 de janeiro – 1 de fevereiro de 2026", fallback: 2024, start: "2026-01-26", end: "2026-02-01"},
		{name: "cross year rollover", phrase: "29 de dezembro – 4 de janeiro", fallback: 2025, start: "2025-12-29", end: "2026-01-04"},
		{name: "cross year explicit", phrase: "29 de dezembro–4 de janeiro de 2026", fallback: 2020, start: "2025-12-29", end: "2026-01-04"},
		{name: "same month explicit year", phrase: "5-11 de janeiro de 2026", fallback: 2025, start: "2026-01-05", end: "2026-01-11"},
		{name: "word separator and ordinal", phrase: "1.º a 7 de março", fallback: 2027, start: "2027-03-01", end: "2027-03-07"},
		{name: "accent insensitive", phrase: "3-9 de MARCO", fallback: 2025, start: "2025-03-03", end: "2025-03-09"},
		{name: "abbreviation", phrase: "10-16 de fev.", fallback: 2025, start: "2025-02-10", end: "2025-02-16"},
		{name: "english same", phrase: "December 2-8, 2025", fallback: 2020, start: "2025-12-02", end: "2025-12-08"},
		{name: "english no year", phrase: "Sept 1-7", fallback: 2025, start: "2025-09-01", end: "2025-09-07"},
		{name: "english cross", phrase: "December 29–January 4, 2026", fallback: 2020, start: "2025-12-29", end: "2026-01-04"},
		{name: "english cross both years", phrase: "December 29, 2025–January 4, 2026", fallback: 2025, start: "2025-12-29", end: "2026-01-04"},
		{name: "english cross first year only", phrase: "December 29, 2025 - January 4", fallback: 2020, start: "2025-12-29", end: "2026-01-04"},
		{name: "compressed cross month", phrase: "30-5 de abril", fallback: 2026, start: "2026-03-30", end: "2026-04-05"},
		{name: "embedded in heading", phrase: "PROGRAMA | 2-8 DE DEZEMBRO | PROVÉRBIOS 1", fallback: 2025, start: "2025-12-02", end: "2025-12-08"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Resolve(tc.phrase, tc.fallback)
			if !r.Resolved {
				t.Fatalf("unresolved %q", tc.phrase)
			}
			if r.StartISO() != tc.start || r.EndISO() != tc.end {
				t.Fatalf("got %s..%s want %s..%s", r.StartISO(), r.EndISO(), tc.start, tc.end)
			}
		})
	}
}

func TestResolveSameMonthProperty(t *testing.T) {
	for m := time.January; m <= time.December; m++ {
		for d1 := 1; d1 <= 22; d1 += 7 {
			d2 := d1 + 6
			phrase := itoa(d1) + "–" + itoa(d2) + " de " + MonthName(m, "pt")
			r := Resolve(phrase, 2025)
			if !r.Resolved {
				t.Fatalf("unresolved %q", phrase)
			}
			if r.Start.Month() != m || r.End.Month() != m || r.Start.Day() != d1 || r.End.Day() != d2 {
				t.Fatalf("%q -> %s..%s", phrase, r.StartISO(), r.EndISO())
			}
		}
	}
}

func TestResolveRolloverProperty(t *testing.T) {
	for _, y := range []int{2019, 2024, 2025, 2030} {
		r := Resolve("26 de dezembro – 1 de janeiro", y)
		if r.Start.Year() != y || r.End.Year() != y+1 {
			t.Fatalf("year %d -> %s..%s", y, r.StartISO(), r.EndISO())
		}
	}
}

// The unresolved flag deliberately departs from the bare January 1st sentinel:
// a real New Year's week must stay distinguishable from garbage input.
func TestResolveUnresolvedIsFlagged(t *testing.T) {
	bad := Resolve("Programa da semana", 2025)
	if bad.Resolved {
		t.Fatal("expected unresolved")
	}
	if bad.StartISO() != "2025-01-01" || bad.EndISO() != "2025-01-01" {
		t.Fatalf("sentinel %s..%s", bad.StartISO(), bad.EndISO())
	}

	real := Resolve("1-7 de janeiro de 2025", 2025)
	if !real.Resolved || real.StartISO() != "2025-01-01" {
		t.Fatalf("real week %v", real)
	}
}

func TestResolveRejectsImpossibleDates(t *testing.T) {
	if r := Resolve("30-31 de fevereiro", 2025); r.Resolved {
		t.Fatalf("resolved %s", r.StartISO())
	}
	if r := Resolve("2-8 de brumário", 2025); r.Resolved {
		t.Fatalf("resolved %s", r.StartISO())
	}
}

func TestFind(t *testing.T) {
	text := "PROGRAMA 2-8 de dezembro Cântico 10 ... 9-15 de dezembro ... 29 de dezembro – 4 de janeiro fim"
	matches := Find(text, 2025)
	if len(matches) != 3 {
		t.Fatalf("len=%d", len(matches))
	}
	if matches[2].Range.EndISO() != "2026-01-04" {
		t.Fatalf("end=%s", matches[2].Range.EndISO())
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Start < matches[i-1].End {
			t.Fatalf("overlap at %d", i)
		}
	}
	if len(Find("nothing to see", 2025)) != 0 {
		t.Fatal("expected no matches")
	}
}

func TestFormat(t *testing.T) {
	d := func(s string) time.Time { v, _ := ParseISO(s); return v }
	cases := []struct {
		start, end, want string
	}{
		{"2025-12-02", "2025-12-08", "2-8 de dezembro de 2025"},
		{"2026-01-26", "2026-02-01", "26 de janeiro–1 de fevereiro de 2026"},
		{"2025-12-29", "2026-01-04", "29 de dezembro de 2025–4 de janeiro de 2026"},
	}
	for _, tc := range cases {
		got := Format(d(tc.start), d(tc.end))
		if got != tc.want {
			t.Fatalf("got %q want %q", got, tc.want)
		}
		if r := Resolve(got, 1999); r.StartISO() != tc.start || r.EndISO() != tc.end {
			t.Fatalf("round trip %q -> %s..%s", got, r.StartISO(), r.EndISO())
		}
	}
}

func TestFormatEnglish(t *testing.T) {
	d := func(s string) time.Time { v, _ := ParseISO(s); return v }
	cases := []struct {
		start, end, want string
	}{
		{"2025-12-02", "2025-12-08", "December 2-8, 2025"},
		{"2026-01-26", "2026-02-01", "January 26–February 1, 2026"},
		{"2025-12-29", "2026-01-04", "December 29, 2025–January 4, 2026"},
	}
	for _, tc := range cases {
		got := FormatIn(d(tc.start), d(tc.end), "en")
		if got != tc.want {
			t.Fatalf("got %q want %q", got, tc.want)
		}
		r := Resolve(got, 1999)
		if r.StartISO() != tc.start || r.EndISO() != tc.end || r.Lang != "en" {
			t.Fatalf("round trip %q -> %s..%s lang=%q", got, r.StartISO(), r.EndISO(), r.Lang)
		}
		if r.Label() != got {
			t.Fatalf("label=%q", r.Label())
		}
	}
	if r := Resolve("2-8 de dezembro de 2025", 1999); r.Lang != "pt" || r.Label() != "2-8 de dezembro de 2025" {
		t.Fatalf("pt label=%q lang=%q", r.Label(), r.Lang)
	}
}

func TestMeetingDateAndWindows(t *testing.T) {
	start, _ := ParseISO("2025-12-01")
	end, _ := ParseISO("2025-12-07")
	got, ok := MeetingDate(start, end, time.Wednesday)
	if !ok || got.Format(DateLayout) != "2025-12-03" {
		t.Fatalf("meeting=%v ok=%v", got, ok)
	}
	if _, ok := MeetingDate(start, start, time.Wednesday); ok {
		t.Fatal("single Monday has no Wednesday")
	}

	if k := WindowKey(2026, time.February); k != "2026-01" {
		t.Fatalf("key=%s", k)
	}
	if k := WindowKey(2025, time.November); k != "2025-11" {
		t.Fatalf("key=%s", k)
	}
	y, m, err := ParseWindowKey("2026-04")
	if err != nil || y != 2026 || m != time.March {
		t.Fatalf("parsed %d %v %v", y, m, err)
	}

	from, _ := ParseISO("2025-12-04")
	if n := NextWeekday(from, time.Wednesday); n.Format(DateLayout) != "2025-12-10" {
		t.Fatalf("next=%s", n.Format(DateLayout))
	}
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}
