package domain

import "time"

// Bills and rule entries close at 23:50 local time.
const (
	periodCloseHour   = 23
	periodCloseMinute = 50
	periodMidMonthDay = 16
)

// PeriodEnd returns the nominal closing timestamp for entries created at now:
// 23:50 on the 16th when now is before the 16th, otherwise 23:50 on the 1st of
// the next month. The result is in now's location and is never enforced.
func PeriodEnd(now time.Time) time.Time {
	if now.Day() < periodMidMonthDay {
		return time.Date(now.Year(), now.Month(), periodMidMonthDay, periodCloseHour, periodCloseMinute, 0, 0, now.Location())
	}
	// time.Date normalizes month 13 to January of the next year.
	return time.Date(now.Year(), now.Month()+1, 1, periodCloseHour, periodCloseMinute, 0, 0, now.Location())
}
