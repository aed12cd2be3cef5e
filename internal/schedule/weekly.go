package schedule

import (
	"fmt"
	"time"
)

// Days is the canonical day order. Every Weekly value carries all seven
// keys; iteration anywhere in this package and in the plan converter
// follows this order.
var Days = [7]string{
	"monday",
	"tuesday",
	"wednesday",
	"thursday",
	"friday",
	"saturday",
	"sunday",
}

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
	time.Sunday:    "sunday",
}

// TimeSlot is one bookable interval within a day, in schedule-local
// time of day. Seats is the concurrent-booking capacity.
type TimeSlot struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Seats     int    `json:"seats"`
}

// DaySchedule holds one weekday's configuration. Enabled=false means the
// day is fully closed no matter what Slots contains.
type DaySchedule struct {
	Enabled bool       `json:"enabled"`
	Slots   []TimeSlot `json:"slots"`
}

// Weekly is the recurring availability template: one DaySchedule per
// canonical day name. All seven keys are always present.
type Weekly map[string]DaySchedule

// NewWeekly returns a template with every day closed and no slots.
func NewWeekly() Weekly {
	w := make(Weekly, len(Days))
	for _, d := range Days {
		w[d] = DaySchedule{}
	}
	return w
}

// DayName maps a time.Weekday to the canonical lowercase key.
func DayName(wd time.Weekday) string {
	return weekdayNames[wd]
}

// Clone returns a deep copy. Operations in this package never mutate
// their input; they work on a clone and return it.
func (w Weekly) Clone() Weekly {
	out := make(Weekly, len(Days))
	for _, d := range Days {
		day := w[d]
		var slots []TimeSlot
		if len(day.Slots) > 0 {
			slots = make([]TimeSlot, len(day.Slots))
			copy(slots, day.Slots)
		}
		out[d] = DaySchedule{Enabled: day.Enabled, Slots: slots}
	}
	return out
}

// ToggleDay flips the Enabled flag for one day. Slots are left untouched
// so re-enabling a day restores its previous configuration.
func ToggleDay(w Weekly, day string) (Weekly, error) {
	if err := checkDay(day); err != nil {
		return nil, err
	}
	out := w.Clone()
	d := out[day]
	d.Enabled = !d.Enabled
	out[day] = d
	return out, nil
}

// AddSlot appends a slot to a day. With existing slots the new one starts
// where the last ends and runs one hour, wrapping modulo 24h; an empty day
// gets 09:00-10:00. Overlap with existing slots is not checked here; it is
// resolved when the schedule is converted for publishing.
func AddSlot(w Weekly, day string) (Weekly, error) {
	if err := checkDay(day); err != nil {
		return nil, err
	}
	out := w.Clone()
	d := out[day]

	slot := TimeSlot{StartTime: "09:00", EndTime: "10:00", Seats: 1}
	if n := len(d.Slots); n > 0 {
		last := d.Slots[n-1]
		startMin, err := MinuteOfDay(last.EndTime)
		if err != nil {
			return nil, fmt.Errorf("day %s slot %d has invalid end time %q: %w", day, n-1, last.EndTime, err)
		}
		slot.StartTime = FormatMinute(startMin)
		slot.EndTime = FormatMinute((startMin + 60) % minutesPerDay)
	}

	d.Slots = append(d.Slots, slot)
	out[day] = d
	return out, nil
}

// SlotField names the mutable fields of a TimeSlot for UpdateSlot.
type SlotField string

const (
	FieldStartTime SlotField = "startTime"
	FieldEndTime   SlotField = "endTime"
	FieldSeats     SlotField = "seats"
)

// UpdateSlot sets one field of one slot. Moving StartTime past or onto the
// current EndTime pushes EndTime to one hour after the new start (mod 24h).
// Editing EndTime alone is accepted even if it produces an inverted range;
// validation catches that at save time.
func UpdateSlot(w Weekly, day string, index int, field SlotField, value string) (Weekly, error) {
	if err := checkDay(day); err != nil {
		return nil, err
	}
	out := w.Clone()
	d := out[day]
	if index < 0 || index >= len(d.Slots) {
		return nil, fmt.Errorf("day %s has no slot at index %d", day, index)
	}
	slot := d.Slots[index]

	switch field {
	case FieldStartTime:
		startMin, err := MinuteOfDay(value)
		if err != nil {
			return nil, fmt.Errorf("invalid start time %q: %w", value, err)
		}
		slot.StartTime = value
		if endMin, err := MinuteOfDay(slot.EndTime); err != nil || endMin <= startMin {
			slot.EndTime = FormatMinute((startMin + 60) % minutesPerDay)
		}
	case FieldEndTime:
		if _, err := MinuteOfDay(value); err != nil {
			return nil, fmt.Errorf("invalid end time %q: %w", value, err)
		}
		slot.EndTime = value
	case FieldSeats:
		seats, err := parseSeats(value)
		if err != nil {
			return nil, err
		}
		slot.Seats = seats
	default:
		return nil, fmt.Errorf("unknown slot field %q", field)
	}

	d.Slots[index] = slot
	out[day] = d
	return out, nil
}

// RemoveSlot deletes one slot by position.
func RemoveSlot(w Weekly, day string, index int) (Weekly, error) {
	if err := checkDay(day); err != nil {
		return nil, err
	}
	out := w.Clone()
	d := out[day]
	if index < 0 || index >= len(d.Slots) {
		return nil, fmt.Errorf("day %s has no slot at index %d", day, index)
	}
	d.Slots = append(d.Slots[:index], d.Slots[index+1:]...)
	out[day] = d
	return out, nil
}

// Validate rejects schedules that must not be persisted or published:
// malformed times, inverted or zero-length slots on enabled days, and
// seat counts below one. Overlap between slots is reported too, so the
// caller can warn before the converter would silently drop slots.
func Validate(w Weekly) error {
	for _, day := range Days {
		d, ok := w[day]
		if !ok {
			return fmt.Errorf("schedule is missing day %s", day)
		}
		if !d.Enabled {
			continue
		}
		for i, s := range d.Slots {
			start, err := MinuteOfDay(s.StartTime)
			if err != nil {
				return fmt.Errorf("%s slot %d: invalid start time %q", day, i, s.StartTime)
			}
			end, err := MinuteOfDay(s.EndTime)
			if err != nil {
				return fmt.Errorf("%s slot %d: invalid end time %q", day, i, s.EndTime)
			}
			if end <= start {
				return fmt.Errorf("%s slot %d: end time %s is not after start time %s", day, i, s.EndTime, s.StartTime)
			}
			if s.Seats < 1 {
				return fmt.Errorf("%s slot %d: seats must be at least 1", day, i)
			}
			for j := 0; j < i; j++ {
				prevStart, err := MinuteOfDay(d.Slots[j].StartTime)
				if err != nil {
					continue
				}
				prevEnd, err := MinuteOfDay(d.Slots[j].EndTime)
				if err != nil {
					continue
				}
				if start < prevEnd && prevStart < end {
					return fmt.Errorf("%s slot %d overlaps slot %d", day, i, j)
				}
			}
		}
	}
	return nil
}

func checkDay(day string) error {
	for _, d := range Days {
		if d == day {
			return nil
		}
	}
	return fmt.Errorf("unknown day %q", day)
}

func parseSeats(value string) (int, error) {
	var seats int
	if _, err := fmt.Sscanf(value, "%d", &seats); err != nil {
		return 0, fmt.Errorf("invalid seats value %q", value)
	}
	if seats < 1 {
		return 0, fmt.Errorf("seats must be at least 1 (got %d)", seats)
	}
	return seats, nil
}
