package attendance

import "time"

// Overlaps reports whether the half-open windows [aStart, aEnd) and
// [bStart, bEnd) intersect. Back-to-back windows do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	latestStart := aStart
	if bStart.After(latestStart) {
		latestStart = bStart
	}
	earliestEnd := aEnd
	if bEnd.Before(earliestEnd) {
		earliestEnd = bEnd
	}
	return latestStart.Before(earliestEnd)
}

// conflictsWith applies the room rule: same room, same date, overlapping window.
func (s Session) conflictsWith(o Session) bool {
	return s.Room == o.Room && s.Date == o.Date && Overlaps(s.StartsAt, s.EndsAt, o.StartsAt, o.EndsAt)
}
