// Package schedule orders extracted weeks by their meeting day.
package schedule

import (
	"sort"
	"time"

	"mwb/internal"
	"mwb/internal/period"
)

// Order sorts weeks by the meeting date inside each span. Weeks that are
// unresolved, or whose span holds no meeting weekday, are returned in dropped
// in input order; callers normally show only ordered.
func Order(weeks []internal.WeekProgram, weekday time.Weekday) (ordered, dropped []internal.WeekProgram) {
	type keyed struct {
		week    internal.WeekProgram
		meeting time.Time
	}
	var ok []keyed
	dropped = []internal.WeekProgram{}
	for _, w := range weeks {
		d, found := MeetingDate(w, weekday)
		if !found {
			dropped = append(dropped, w)
			continue
		}
		ok = append(ok, keyed{week: w, meeting: d})
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].meeting.Before(ok[j].meeting) })

	ordered = make([]internal.WeekProgram, 0, len(ok))
	for _, k := range ok {
		ordered = append(ordered, k.week)
	}
	return ordered, dropped
}

// MeetingDate returns the meeting day of w, or false when w has no usable span.
func MeetingDate(w internal.WeekProgram, weekday time.Weekday) (time.Time, bool) {
	if w.Unresolved {
		return time.Time{}, false
	}
	start, ok1 := period.ParseISO(w.StartDate)
	end, ok2 := period.ParseISO(w.EndDate)
	if !ok1 || !ok2 {
		return time.Time{}, false
	}
	return period.MeetingDate(start, end, weekday)
}
