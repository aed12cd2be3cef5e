package schedule

import (
	"reflect"
	"testing"
)

func TestNewWeeklyAllDaysClosed(t *testing.T) {
	w := NewWeekly()
	if len(w) != 7 {
		t.Fatalf("expected 7 days, got %d", len(w))
	}
	for _, d := range Days {
		day, ok := w[d]
		if !ok {
			t.Fatalf("missing day %s", d)
		}
		if day.Enabled || len(day.Slots) != 0 {
			t.Fatalf("expected %s closed and empty, got %+v", d, day)
		}
	}
}

func TestToggleDayFlipsOnlyEnabled(t *testing.T) {
	w := NewWeekly()
	w["monday"] = DaySchedule{Enabled: false, Slots: []TimeSlot{{StartTime: "09:00", EndTime: "10:00", Seats: 2}}}

	out, err := ToggleDay(w, "monday")
	if err != nil {
		t.Fatalf("ToggleDay failed: %v", err)
	}
	if !out["monday"].Enabled {
		t.Fatal("expected monday enabled after toggle")
	}
	if !reflect.DeepEqual(out["monday"].Slots, w["monday"].Slots) {
		t.Fatalf("slots changed: %+v", out["monday"].Slots)
	}
	for _, d := range Days {
		if d == "monday" {
			continue
		}
		if !reflect.DeepEqual(out[d], w[d]) {
			t.Fatalf("day %s changed: %+v", d, out[d])
		}
	}
	// Input must be untouched.
	if w["monday"].Enabled {
		t.Fatal("ToggleDay mutated its input")
	}
}

func TestToggleDayUnknownDay(t *testing.T) {
	if _, err := ToggleDay(NewWeekly(), "funday"); err == nil {
		t.Fatal("expected error for unknown day")
	}
}

func TestAddSlotDefaults(t *testing.T) {
	w := NewWeekly()

	out, err := AddSlot(w, "tuesday")
	if err != nil {
		t.Fatalf("AddSlot failed: %v", err)
	}
	got := out["tuesday"].Slots
	if len(got) != 1 || got[0].StartTime != "09:00" || got[0].EndTime != "10:00" || got[0].Seats != 1 {
		t.Fatalf("unexpected default slot: %+v", got)
	}

	out, err = AddSlot(out, "tuesday")
	if err != nil {
		t.Fatalf("AddSlot failed: %v", err)
	}
	got = out["tuesday"].Slots
	if len(got) != 2 || got[1].StartTime != "10:00" || got[1].EndTime != "11:00" {
		t.Fatalf("expected follow-on slot 10:00-11:00, got %+v", got)
	}
}

func TestAddSlotWrapsMidnight(t *testing.T) {
	w := NewWeekly()
	w["friday"] = DaySchedule{Enabled: true, Slots: []TimeSlot{{StartTime: "22:00", EndTime: "23:30", Seats: 1}}}

	out, err := AddSlot(w, "friday")
	if err != nil {
		t.Fatalf("AddSlot failed: %v", err)
	}
	got := out["friday"].Slots
	if got[1].StartTime != "23:30" || got[1].EndTime != "00:30" {
		t.Fatalf("expected 23:30-00:30, got %+v", got[1])
	}
}

func TestUpdateSlotStartAutoCorrectsEnd(t *testing.T) {
	w := NewWeekly()
	w["monday"] = DaySchedule{Enabled: true, Slots: []TimeSlot{{StartTime: "09:00", EndTime: "10:00", Seats: 1}}}

	// Moving start past the old end pushes end to start+1h.
	out, err := UpdateSlot(w, "monday", 0, FieldStartTime, "11:00")
	if err != nil {
		t.Fatalf("UpdateSlot failed: %v", err)
	}
	got := out["monday"].Slots[0]
	if got.StartTime != "11:00" || got.EndTime != "12:00" {
		t.Fatalf("expected 11:00-12:00, got %+v", got)
	}

	// Moving start within the range leaves end alone.
	out, err = UpdateSlot(w, "monday", 0, FieldStartTime, "09:30")
	if err != nil {
		t.Fatalf("UpdateSlot failed: %v", err)
	}
	got = out["monday"].Slots[0]
	if got.StartTime != "09:30" || got.EndTime != "10:00" {
		t.Fatalf("expected 09:30-10:00, got %+v", got)
	}
}

func TestUpdateSlotEndNeverAutoCorrects(t *testing.T) {
	w := NewWeekly()
	w["monday"] = DaySchedule{Enabled: true, Slots: []TimeSlot{{StartTime: "09:00", EndTime: "10:00", Seats: 1}}}

	out, err := UpdateSlot(w, "monday", 0, FieldEndTime, "08:00")
	if err != nil {
		t.Fatalf("UpdateSlot failed: %v", err)
	}
	got := out["monday"].Slots[0]
	if got.StartTime != "09:00" || got.EndTime != "08:00" {
		t.Fatalf("expected inverted range to be kept, got %+v", got)
	}
	if err := Validate(out); err == nil {
		t.Fatal("expected Validate to reject the inverted range")
	}
}

func TestUpdateSlotSeats(t *testing.T) {
	w := NewWeekly()
	w["monday"] = DaySchedule{Enabled: true, Slots: []TimeSlot{{StartTime: "09:00", EndTime: "10:00", Seats: 1}}}

	out, err := UpdateSlot(w, "monday", 0, FieldSeats, "5")
	if err != nil {
		t.Fatalf("UpdateSlot failed: %v", err)
	}
	if out["monday"].Slots[0].Seats != 5 {
		t.Fatalf("expected 5 seats, got %d", out["monday"].Slots[0].Seats)
	}
	if _, err := UpdateSlot(w, "monday", 0, FieldSeats, "0"); err == nil {
		t.Fatal("expected error for zero seats")
	}
}

func TestUpdateSlotIndexOutOfRange(t *testing.T) {
	w := NewWeekly()
	if _, err := UpdateSlot(w, "monday", 0, FieldStartTime, "09:00"); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}

func TestRemoveSlot(t *testing.T) {
	w := NewWeekly()
	w["saturday"] = DaySchedule{Enabled: true, Slots: []TimeSlot{
		{StartTime: "09:00", EndTime: "10:00", Seats: 1},
		{StartTime: "10:00", EndTime: "11:00", Seats: 2},
	}}

	out, err := RemoveSlot(w, "saturday", 0)
	if err != nil {
		t.Fatalf("RemoveSlot failed: %v", err)
	}
	got := out["saturday"].Slots
	if len(got) != 1 || got[0].StartTime != "10:00" {
		t.Fatalf("unexpected slots after removal: %+v", got)
	}
	if len(w["saturday"].Slots) != 2 {
		t.Fatal("RemoveSlot mutated its input")
	}

	if _, err := RemoveSlot(out, "saturday", 5); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}

func TestValidateOverlap(t *testing.T) {
	w := NewWeekly()
	w["monday"] = DaySchedule{Enabled: true, Slots: []TimeSlot{
		{StartTime: "09:00", EndTime: "11:00", Seats: 1},
		{StartTime: "10:00", EndTime: "12:00", Seats: 1},
	}}
	if err := Validate(w); err == nil {
		t.Fatal("expected overlap error")
	}

	// Disabled days are not validated; the closed flag wins.
	w["monday"] = DaySchedule{Enabled: false, Slots: w["monday"].Slots}
	if err := Validate(w); err != nil {
		t.Fatalf("disabled day should not be validated: %v", err)
	}
}

func TestMinuteOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"9:00", 0, true},
		{"0930", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		got, err := MinuteOfDay(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("MinuteOfDay(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("MinuteOfDay(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("MinuteOfDay(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestFormatMinute(t *testing.T) {
	if got := FormatMinute(570); got != "09:30" {
		t.Fatalf("FormatMinute(570) = %q", got)
	}
	if got := FormatMinute(1470); got != "00:30" {
		t.Fatalf("FormatMinute(1470) = %q (wrap)", got)
	}
}
