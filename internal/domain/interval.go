package domain

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimeOfDayLayout = "15:04"

	minutesPerDay = 24 * 60
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidTimeOfDay = errors.New("invalid time of day")
	ErrInvalidRange     = errors.New("end time must be after start time")
)

// TimeOfDay is a wall-clock time in minutes after midnight. No time zone is
// attached; callers combine it with a date and a location via At.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(TimeOfDayLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// AddMinutes adds wall-clock minutes, wrapping past midnight without
// touching any date.
func (t TimeOfDay) AddMinutes(minutes int) TimeOfDay {
	v := (int(t) + minutes) % minutesPerDay
	if v < 0 {
		v += minutesPerDay
	}
	return TimeOfDay(v)
}

func (t TimeOfDay) Before(o TimeOfDay) bool { return t < o }

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share an instant.
// Ranges that only touch (aEnd == bStart) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return (aStart >= bStart && aStart < bEnd) ||
		(aEnd > bStart && aEnd <= bEnd) ||
		(aStart <= bStart && aEnd >= bEnd)
}

// IsLessThanLeadTime reports whether candidateStart is closer to now than lead.
// A candidate exactly lead away is acceptable.
func IsLessThanLeadTime(candidateStart, now time.Time, lead time.Duration) bool {
	return candidateStart.Sub(now) < lead
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// At combines a calendar date and a wall-clock time into an instant in loc.
func At(date string, t TimeOfDay, loc *time.Location) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year(), d.Month(), d.Day(), int(t)/60, int(t)%60, 0, 0, loc), nil
}

// DateOf formats the calendar date of ts as seen in loc.
func DateOf(ts time.Time, loc *time.Location) string {
	if loc != nil {
		ts = ts.In(loc)
	}
	return ts.Format(DateLayout)
}

func parseRange(start, end string) (TimeOfDay, TimeOfDay, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return 0, 0, err
	}
	if e <= s {
		return 0, 0, ErrInvalidRange
	}
	return s, e, nil
}
