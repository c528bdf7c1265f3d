package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	timeLabelPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)
	shortDatePattern = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})$`)
	fullDateLayouts  = []string{"2006-01-02", "02.01.2006", "2.1.2006"}
)

// ValidTimeLabel reports whether label is a 24h HH:MM time.
func ValidTimeLabel(label string) bool {
	return timeLabelPattern.MatchString(strings.TrimSpace(label))
}

// ResolveWalkTime turns a time label and an optional date into an absolute
// time in now's location. Without a date the next occurrence of the time is
// used. A DD.MM date that already passed this year means next year.
func ResolveWalkTime(label, date string, now time.Time) (time.Time, error) {
	m := timeLabelPattern.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return time.Time{}, ErrInvalidTime
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	loc := now.Location()

	date = strings.TrimSpace(date)
	if date == "" {
		t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}

	day, err := resolveDate(date, now)
	if err != nil {
		return time.Time{}, err
	}
	t := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	if !t.After(now) {
		return time.Time{}, ErrTimeInPast
	}
	return t, nil
}

func resolveDate(date string, now time.Time) (time.Time, error) {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	if m := shortDatePattern.FindStringSubmatch(date); m != nil {
		d, _ := strconv.Atoi(m[1])
		mon, _ := strconv.Atoi(m[2])
		t, ok := calendarDate(now.Year(), mon, d, loc)
		if !ok {
			return time.Time{}, ErrInvalidDate
		}
		if t.Before(today) {
			if t, ok = calendarDate(now.Year()+1, mon, d, loc); !ok {
				return time.Time{}, ErrInvalidDate
			}
		}
		return t, nil
	}

	for _, layout := range fullDateLayouts {
		if t, err := time.ParseInLocation(layout, date, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// calendarDate rejects dates that time.Date would normalise, like 31.02.
func calendarDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	return t, t.Day() == day && int(t.Month()) == month
}
