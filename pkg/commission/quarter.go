package commission

import "time"

// TrailingQuarter returns [start, end) of the calendar quarter before the one
// containing now, in now's location.
func TrailingQuarter(now time.Time) (time.Time, time.Time) {
	currentStartMonth := time.Month((int(now.Month())-1)/3*3 + 1)
	end := time.Date(now.Year(), currentStartMonth, 1, 0, 0, 0, 0, now.Location())
	start := end.AddDate(0, -3, 0)
	return start, end
}
