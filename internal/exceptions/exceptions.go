package exceptions

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/khidmaapp/availability/internal/schedule"
)

const dateLayout = "2006-01-02"

// Exception overrides the weekly template for an inclusive date range.
// Available=true forces the range open, false forces it closed.
type Exception struct {
	ID        string `json:"id"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Available bool   `json:"available"`
}

var (
	ErrMissingDates  = errors.New("exception start and end dates are required")
	ErrInvertedRange = errors.New("exception end date is before start date")
)

// ParseDate parses a YYYY-MM-DD calendar date as a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// FormatDate renders a timestamp's calendar date in the given location.
func FormatDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

// Validate checks a single exception's dates.
func (e Exception) Validate() error {
	if e.StartDate == "" || e.EndDate == "" {
		return ErrMissingDates
	}
	start, err := ParseDate(e.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q: %w", e.StartDate, err)
	}
	end, err := ParseDate(e.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end date %q: %w", e.EndDate, err)
	}
	if end.Before(start) {
		return ErrInvertedRange
	}
	return nil
}

// Contains reports whether the exception's inclusive range covers date.
// Malformed exceptions never match.
func (e Exception) Contains(date string) bool {
	d, err := ParseDate(date)
	if err != nil {
		return false
	}
	start, err := ParseDate(e.StartDate)
	if err != nil {
		return false
	}
	end, err := ParseDate(e.EndDate)
	if err != nil {
		return false
	}
	return !d.Before(start) && !d.After(end)
}

// Overlaps reports whether two exceptions share any date.
func (e Exception) Overlaps(other Exception) bool {
	aStart, err := ParseDate(e.StartDate)
	if err != nil {
		return false
	}
	aEnd, err := ParseDate(e.EndDate)
	if err != nil {
		return false
	}
	bStart, err := ParseDate(other.StartDate)
	if err != nil {
		return false
	}
	bEnd, err := ParseDate(other.EndDate)
	if err != nil {
		return false
	}
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// Add assigns a fresh id and appends. The input list is not mutated.
func Add(list []Exception, exc Exception) ([]Exception, error) {
	if err := exc.Validate(); err != nil {
		return nil, err
	}
	exc.ID = uuid.NewString()
	out := make([]Exception, 0, len(list)+1)
	out = append(out, list...)
	out = append(out, exc)
	return out, nil
}

// Remove filters out the exception with the given id.
func Remove(list []Exception, id string) []Exception {
	out := make([]Exception, 0, len(list))
	for _, e := range list {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// DisabledDates returns the dates a new exception may not start or end on:
// the 365 days before the reference date (the reference date itself stays
// selectable) plus every date already covered by an existing exception.
func DisabledDates(existing []Exception, referenceDate time.Time) map[string]struct{} {
	out := make(map[string]struct{}, 365)
	ref := referenceDate.UTC().Truncate(24 * time.Hour)
	for i := 1; i <= 365; i++ {
		out[ref.AddDate(0, 0, -i).Format(dateLayout)] = struct{}{}
	}
	for _, e := range existing {
		start, err := ParseDate(e.StartDate)
		if err != nil {
			continue
		}
		end, err := ParseDate(e.EndDate)
		if err != nil {
			continue
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			out[d.Format(dateLayout)] = struct{}{}
		}
	}
	return out
}

// IsDayAvailable answers the effective-availability question for one date:
// the first exception in list order covering the date wins; otherwise the
// weekly template's flag for that weekday applies.
func IsDayAvailable(weekly schedule.Weekly, list []Exception, date string) (bool, error) {
	d, err := ParseDate(date)
	if err != nil {
		return false, fmt.Errorf("invalid date %q: %w", date, err)
	}
	for _, e := range list {
		if e.Contains(date) {
			return e.Available, nil
		}
	}
	return weekly[schedule.DayName(d.Weekday())].Enabled, nil
}
