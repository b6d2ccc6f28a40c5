package checks

import "time"

// AddMonths advances a calendar date by whole months, clamping to the last
// day of the target month (Jan 31 + 1 month = Feb 28, or Feb 29 in a leap
// year). This matches how the database computes date + make_interval, so
// due dates survive a backend swap unchanged.
func AddMonths(date time.Time, months int) time.Time {
	y, m, d := date.UTC().Date()
	total := int(m) - 1 + months
	year := y + total/12
	month := time.Month(total%12 + 1)
	if last := lastDayOfMonth(year, month); d > last {
		d = last
	}
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextDue derives the due date a successful check produces, or nil when the
// result was not a success or the model carries no cadence requirement for
// the check type.
func NextDue(checkDate time.Time, intervalMonths int, isSuccess bool) *time.Time {
	if !isSuccess || intervalMonths <= 0 {
		return nil
	}
	due := AddMonths(checkDate, intervalMonths)
	return &due
}
