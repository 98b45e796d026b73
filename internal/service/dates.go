package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"crm/internal/stats"
)

const (
	dateLayout = "2006-01-02"

	// defaultRangeDays is the length of an open-ended range, end day included.
	defaultRangeDays = 7
)

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days in the range.
func (r DateRange) Days() int {
	return int(math.Round(r.End.Sub(r.Start).Hours()/24)) + 1
}

// StartLabel returns the start day as YYYY-MM-DD.
func (r DateRange) StartLabel() string { return r.Start.Format(dateLayout) }

// EndLabel returns the end day as YYYY-MM-DD.
func (r DateRange) EndLabel() string { return r.End.Format(dateLayout) }

// ParseDateRange reads start and end query values in loc.
//
// With neither value the range is the seven days ending today. A lone start
// covers that single day; a lone end covers the seven days ending on it.
func ParseDateRange(start, end string, now time.Time, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)

	var r DateRange
	var err error
	switch {
	case start == "" && end == "":
		y, m, d := now.In(loc).Date()
		r.End = time.Date(y, m, d, 0, 0, 0, 0, loc)
		r.Start = r.End.AddDate(0, 0, -(defaultRangeDays - 1))
	case end == "":
		if r.Start, err = parseDay(start, loc); err != nil {
			return DateRange{}, err
		}
		r.End = r.Start
	case start == "":
		if r.End, err = parseDay(end, loc); err != nil {
			return DateRange{}, err
		}
		r.Start = r.End.AddDate(0, 0, -(defaultRangeDays - 1))
	default:
		if r.Start, err = parseDay(start, loc); err != nil {
			return DateRange{}, err
		}
		if r.End, err = parseDay(end, loc); err != nil {
			return DateRange{}, err
		}
	}

	if r.End.Before(r.Start) {
		return DateRange{}, ErrInvalidDateRange
	}
	if r.Days() > stats.MaxRangeDays {
		return DateRange{}, fmt.Errorf("%w: %d days, at most %d", ErrDateRangeTooLong, r.Days(), stats.MaxRangeDays)
	}
	return r, nil
}

func parseDay(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}
