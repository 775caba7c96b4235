package attribution

import (
	"time"

	"leadsync/internal/domain"
)

// BimonthPeriod maps a month to its fixed two-month bucket:
// Jan-Feb=1, Mar-Apr=2, ... Nov-Dec=6.
func BimonthPeriod(month time.Month) int {
	return (int(month)-1)/2 + 1
}

func periodFirstMonth(period int) time.Month {
	return time.Month((period-1)*2 + 1)
}

func periodLastMonth(period int) time.Month {
	return time.Month(period * 2)
}

func PeriodKeyOf(mobile string, date time.Time) domain.PeriodKey {
	return domain.PeriodKey{
		Mobile: mobile,
		Year:   date.Year(),
		Period: BimonthPeriod(date.Month()),
	}
}

// ExpandToBimonth widens [start, end] to whole bi-month periods so that
// period deduplication gives the same answer for any window inside them.
func ExpandToBimonth(start, end time.Time) (domain.Window, error) {
	if start.After(end) {
		return domain.Window{}, domain.ErrInvalidWindow
	}

	first := periodFirstMonth(BimonthPeriod(start.Month()))
	last := periodLastMonth(BimonthPeriod(end.Month()))

	return domain.Window{
		Start: time.Date(start.Year(), first, 1, 0, 0, 0, 0, start.Location()),
		// day 0 of the following month is the last day of last
		End: time.Date(end.Year(), last+1, 0, 0, 0, 0, 0, end.Location()),
	}, nil
}
