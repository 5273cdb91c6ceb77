package devicerule

import (
	"fmt"
	"time"
)

// TimeRange is a daily window in minutes since midnight.
// End before Start means the window crosses midnight, in which case the
// part after midnight belongs to the day the window started on.
type TimeRange struct {
	Start int
	End   int
	// Days holds ISO weekdays, 1 (Monday) through 7 (Sunday). Empty means every day.
	Days []int
}

// ParseTimeRange builds a TimeRange from "HH:MM" bounds.
func ParseTimeRange(start, end string, days []int) (TimeRange, error) {
	s, err := parseClock(start)
	if err != nil {
		return TimeRange{}, err
	}
	e, err := parseClock(end)
	if err != nil {
		return TimeRange{}, err
	}
	for _, d := range days {
		if d < 1 || d > 7 {
			return TimeRange{}, fmt.Errorf("%w: weekday %d out of range 1-7", ErrInvalidRule, d)
		}
	}
	return TimeRange{Start: s, End: e, Days: days}, nil
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidRule, v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t falls inside the window. Start is inclusive
// and End exclusive. Start equal to End covers the whole day.
func (r TimeRange) Contains(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()

	switch {
	case r.Start == r.End:
		return r.onDay(t)
	case r.Start < r.End:
		return minute >= r.Start && minute < r.End && r.onDay(t)
	case minute >= r.Start:
		return r.onDay(t)
	case minute < r.End:
		return r.onDay(t.AddDate(0, 0, -1))
	default:
		return false
	}
}

func (r TimeRange) onDay(t time.Time) bool {
	if len(r.Days) == 0 {
		return true
	}
	wd := isoWeekday(t)
	for _, d := range r.Days {
		if d == wd {
			return true
		}
	}
	return false
}

func isoWeekday(t time.Time) int {
	if wd := t.Weekday(); wd != time.Sunday {
		return int(wd)
	}
	return 7
}

// String formats the window as "HH:MM-HH:MM".
func (r TimeRange) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", r.Start/60, r.Start%60, r.End/60, r.End%60)
}
