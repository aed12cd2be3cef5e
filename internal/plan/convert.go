package plan

import (
	"fmt"
	"sort"
	"time"

	"github.com/khidmaapp/availability/internal/exceptions"
	"github.com/khidmaapp/availability/internal/schedule"
)

var dayCodes = map[string]string{
	"monday":    "mon",
	"tuesday":   "tue",
	"wednesday": "wed",
	"thursday":  "thu",
	"friday":    "fri",
	"saturday":  "sat",
	"sunday":    "sun",
}

var codeDays = map[string]string{
	"mon": "monday",
	"tue": "tuesday",
	"wed": "wednesday",
	"thu": "thursday",
	"fri": "friday",
	"sat": "saturday",
	"sun": "sunday",
}

// Resolution is the outcome of overlap resolution: the slots that survive
// and the ones that were dropped, so callers can tell the provider what
// will not be published instead of discarding them silently.
type Resolution struct {
	Slots   []schedule.TimeSlot
	Dropped []schedule.TimeSlot
}

// SortAndResolve sorts slots by start minute and resolves overlaps greedily
// left to right: when two adjacent slots overlap, the later-starting one is
// dropped and the scan retries at the same position. The earliest slot in a
// conflict always wins. The operation is idempotent and never errors;
// slots with unparsable times are dropped.
func SortAndResolve(slots []schedule.TimeSlot) Resolution {
	type keyed struct {
		slot  schedule.TimeSlot
		start int
		end   int
	}

	var res Resolution
	kept := make([]keyed, 0, len(slots))
	for _, s := range slots {
		start, err := schedule.MinuteOfDay(s.StartTime)
		if err != nil {
			res.Dropped = append(res.Dropped, s)
			continue
		}
		end, err := schedule.MinuteOfDay(s.EndTime)
		if err != nil {
			res.Dropped = append(res.Dropped, s)
			continue
		}
		kept = append(kept, keyed{slot: s, start: start, end: end})
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].start < kept[j].start })

	for i := 0; i < len(kept)-1; {
		a, b := kept[i], kept[i+1]
		if a.start < b.end && b.start < a.end {
			res.Dropped = append(res.Dropped, b.slot)
			kept = append(kept[:i+1], kept[i+2:]...)
			continue
		}
		i++
	}

	res.Slots = make([]schedule.TimeSlot, 0, len(kept))
	for _, k := range kept {
		res.Slots = append(res.Slots, k.slot)
	}
	return res
}

// ToWire converts a weekly template into the backend plan format. Disabled
// days and days without valid slots contribute no entries, which the
// backend treats as fully closed. The returned Resolution per day reports
// anything dropped during overlap resolution, keyed by day name.
func ToWire(weekly schedule.Weekly, timezone string) (Wire, map[string][]schedule.TimeSlot) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	wire := Wire{Type: PlanTypeTime, Timezone: timezone, Entries: []Entry{}}
	dropped := make(map[string][]schedule.TimeSlot)

	for _, day := range schedule.Days {
		d := weekly[day]
		if !d.Enabled || len(d.Slots) == 0 {
			continue
		}
		res := SortAndResolve(d.Slots)
		if len(res.Dropped) > 0 {
			dropped[day] = res.Dropped
		}
		for _, s := range res.Slots {
			start, err := schedule.MinuteOfDay(s.StartTime)
			if err != nil {
				continue
			}
			end, err := schedule.MinuteOfDay(s.EndTime)
			if err != nil {
				continue
			}
			// Zero-length and inverted slots are skipped rather than sent.
			if end <= start {
				continue
			}
			wire.Entries = append(wire.Entries, Entry{
				DayOfWeek: dayCodes[day],
				Seats:     s.Seats,
				StartTime: s.StartTime,
				EndTime:   s.EndTime,
			})
		}
	}
	return wire, dropped
}

// FromWire reconstructs a weekly template from a stored plan. Unknown plan
// types yield the fresh all-closed template. This is not a perfect inverse
// of ToWire for schedules that contained overlapping or inverted slots;
// those were already dropped on the way in.
func FromWire(w Wire) (schedule.Weekly, string) {
	weekly := schedule.NewWeekly()
	timezone := w.Timezone
	if timezone == "" {
		timezone = DefaultTimezone
	}
	if w.Type != PlanTypeTime {
		return weekly, timezone
	}
	for _, e := range w.Entries {
		day, ok := codeDays[e.DayOfWeek]
		if !ok {
			continue
		}
		d := weekly[day]
		d.Enabled = true
		d.Slots = append(d.Slots, schedule.TimeSlot{
			StartTime: e.StartTime,
			EndTime:   e.EndTime,
			Seats:     e.Seats,
		})
		weekly[day] = d
	}
	return weekly, timezone
}

// ToWireException converts one exception into the backend create payload.
// Dates become UTC midnights; availability is encoded through the seat
// sentinel the backend expects.
func ToWireException(exc exceptions.Exception, listingID string) (WireException, error) {
	if err := exc.Validate(); err != nil {
		return WireException{}, err
	}
	start, err := exceptions.ParseDate(exc.StartDate)
	if err != nil {
		return WireException{}, fmt.Errorf("invalid start date %q: %w", exc.StartDate, err)
	}
	end, err := exceptions.ParseDate(exc.EndDate)
	if err != nil {
		return WireException{}, fmt.Errorf("invalid end date %q: %w", exc.EndDate, err)
	}
	seats := SeatsUnavailable
	if exc.Available {
		seats = SeatsAvailable
	}
	return WireException{ListingID: listingID, Start: start, End: end, Seats: seats}, nil
}

// FromWireException reconstructs an exception from a stored resource.
// The calendar date is taken in the listing's configured timezone so a
// midnight-UTC timestamp does not land on the wrong local day; pass nil
// to fall back to UTC.
func FromWireException(res ExceptionResource, loc *time.Location) exceptions.Exception {
	return exceptions.Exception{
		ID:        res.ID,
		StartDate: exceptions.FormatDate(res.Start, loc),
		EndDate:   exceptions.FormatDate(res.End, loc),
		Available: res.Seats > 0,
	}
}

// FilterForSubmit drops exceptions that must not reach the backend:
// missing, unparsable, or inverted dates. Survivors and rejects are both
// returned so the caller can report what was skipped.
func FilterForSubmit(list []exceptions.Exception) (valid, dropped []exceptions.Exception) {
	for _, e := range list {
		if e.Validate() != nil {
			dropped = append(dropped, e)
			continue
		}
		valid = append(valid, e)
	}
	return valid, dropped
}
