package plan

import (
	"reflect"
	"testing"
	"time"

	"github.com/khidmaapp/availability/internal/exceptions"
	"github.com/khidmaapp/availability/internal/schedule"
)

func TestSortAndResolveDropsLaterOverlap(t *testing.T) {
	slots := []schedule.TimeSlot{
		{StartTime: "09:00", EndTime: "11:00", Seats: 1},
		{StartTime: "10:00", EndTime: "12:00", Seats: 1},
	}

	res := SortAndResolve(slots)

	if len(res.Slots) != 1 {
		t.Fatalf("kept %d slots, want 1", len(res.Slots))
	}
	if res.Slots[0].StartTime != "09:00" {
		t.Fatalf("kept slot starts at %s, want 09:00", res.Slots[0].StartTime)
	}
	if len(res.Dropped) != 1 || res.Dropped[0].StartTime != "10:00" {
		t.Fatalf("dropped = %+v, want the 10:00 slot", res.Dropped)
	}
}

func TestSortAndResolveChain(t *testing.T) {
	// The earliest slot swallows every later slot it overlaps, one at a time.
	slots := []schedule.TimeSlot{
		{StartTime: "10:30", EndTime: "11:30", Seats: 1},
		{StartTime: "09:00", EndTime: "12:00", Seats: 1},
		{StartTime: "13:00", EndTime: "14:00", Seats: 1},
		{StartTime: "11:00", EndTime: "13:30", Seats: 1},
	}

	res := SortAndResolve(slots)

	got := make([]string, 0, len(res.Slots))
	for _, s := range res.Slots {
		got = append(got, s.StartTime)
	}
	want := []string{"09:00", "13:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("kept starts = %v, want %v", got, want)
	}
}

func TestSortAndResolveIdempotent(t *testing.T) {
	slots := []schedule.TimeSlot{
		{StartTime: "14:00", EndTime: "15:00", Seats: 2},
		{StartTime: "09:00", EndTime: "11:00", Seats: 1},
		{StartTime: "10:00", EndTime: "12:00", Seats: 1},
	}

	first := SortAndResolve(slots)
	second := SortAndResolve(first.Slots)

	if !reflect.DeepEqual(first.Slots, second.Slots) {
		t.Fatalf("second pass changed slots: %+v vs %+v", first.Slots, second.Slots)
	}
	if len(second.Dropped) != 0 {
		t.Fatalf("second pass dropped %+v, want nothing", second.Dropped)
	}
}

func TestSortAndResolveAdjacentSlotsKept(t *testing.T) {
	slots := []schedule.TimeSlot{
		{StartTime: "09:00", EndTime: "10:00", Seats: 1},
		{StartTime: "10:00", EndTime: "11:00", Seats: 1},
	}

	res := SortAndResolve(slots)
	if len(res.Slots) != 2 || len(res.Dropped) != 0 {
		t.Fatalf("adjacent slots should both survive, got %+v dropped %+v", res.Slots, res.Dropped)
	}
}

func TestToWireSkipsDisabledAndEmptyDays(t *testing.T) {
	weekly := schedule.NewWeekly()
	d := weekly["monday"]
	d.Enabled = true
	d.Slots = []schedule.TimeSlot{{StartTime: "09:00", EndTime: "17:00", Seats: 3}}
	weekly["monday"] = d
	// Enabled but slotless day contributes nothing.
	e := weekly["tuesday"]
	e.Enabled = true
	weekly["tuesday"] = e

	wire, dropped := ToWire(weekly, "Europe/Berlin")

	if wire.Type != PlanTypeTime {
		t.Fatalf("type = %q, want %q", wire.Type, PlanTypeTime)
	}
	if wire.Timezone != "Europe/Berlin" {
		t.Fatalf("timezone = %q", wire.Timezone)
	}
	if len(wire.Entries) != 1 {
		t.Fatalf("entries = %+v, want exactly one", wire.Entries)
	}
	got := wire.Entries[0]
	if got.DayOfWeek != "mon" || got.StartTime != "09:00" || got.EndTime != "17:00" || got.Seats != 3 {
		t.Fatalf("entry = %+v", got)
	}
	if len(dropped) != 0 {
		t.Fatalf("unexpected dropped slots: %+v", dropped)
	}
}

func TestToWireEmptyScheduleUsesDefaultTimezone(t *testing.T) {
	wire, _ := ToWire(schedule.NewWeekly(), "")

	if wire.Timezone != DefaultTimezone {
		t.Fatalf("timezone = %q, want %q", wire.Timezone, DefaultTimezone)
	}
	if len(wire.Entries) != 0 {
		t.Fatalf("entries = %+v, want none", wire.Entries)
	}
	if wire.Entries == nil {
		t.Fatal("entries must marshal as [], not null")
	}
}

func TestToWireReportsDroppedSlots(t *testing.T) {
	weekly := schedule.NewWeekly()
	d := weekly["friday"]
	d.Enabled = true
	d.Slots = []schedule.TimeSlot{
		{StartTime: "09:00", EndTime: "11:00", Seats: 1},
		{StartTime: "10:00", EndTime: "12:00", Seats: 1},
	}
	weekly["friday"] = d

	wire, dropped := ToWire(weekly, "")

	if len(wire.Entries) != 1 {
		t.Fatalf("entries = %+v", wire.Entries)
	}
	if len(dropped["friday"]) != 1 || dropped["friday"][0].StartTime != "10:00" {
		t.Fatalf("dropped = %+v", dropped)
	}
}

func TestWireRoundTrip(t *testing.T) {
	weekly := schedule.NewWeekly()
	for _, day := range []string{"monday", "wednesday"} {
		d := weekly[day]
		d.Enabled = true
		d.Slots = []schedule.TimeSlot{
			{StartTime: "08:00", EndTime: "12:00", Seats: 2},
			{StartTime: "13:00", EndTime: "17:00", Seats: 2},
		}
		weekly[day] = d
	}

	wire, _ := ToWire(weekly, "Asia/Riyadh")
	back, tz := FromWire(wire)

	if tz != "Asia/Riyadh" {
		t.Fatalf("timezone = %q", tz)
	}
	if !reflect.DeepEqual(back, weekly) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back, weekly)
	}
}

func TestFromWireUnknownType(t *testing.T) {
	weekly, tz := FromWire(Wire{Type: "availability-plan/fancy", Timezone: "Asia/Riyadh"})

	if tz != "Asia/Riyadh" {
		t.Fatalf("timezone = %q", tz)
	}
	for _, day := range schedule.Days {
		if weekly[day].Enabled {
			t.Fatalf("%s should be closed for an unknown plan type", day)
		}
	}
}

func TestToWireExceptionSeatsSentinel(t *testing.T) {
	blocked := exceptions.Exception{StartDate: "2024-01-10", EndDate: "2024-01-15", Available: false}
	open := exceptions.Exception{StartDate: "2024-01-10", EndDate: "2024-01-15", Available: true}

	wb, err := ToWireException(blocked, "listing-1")
	if err != nil {
		t.Fatal(err)
	}
	if wb.Seats != SeatsUnavailable {
		t.Fatalf("blocked seats = %d, want %d", wb.Seats, SeatsUnavailable)
	}
	if wb.ListingID != "listing-1" {
		t.Fatalf("listing id = %q", wb.ListingID)
	}
	if wb.Start.Format("2006-01-02") != "2024-01-10" || wb.End.Format("2006-01-02") != "2024-01-15" {
		t.Fatalf("range = %s..%s", wb.Start, wb.End)
	}

	wo, err := ToWireException(open, "listing-1")
	if err != nil {
		t.Fatal(err)
	}
	if wo.Seats != SeatsAvailable {
		t.Fatalf("open seats = %d, want %d", wo.Seats, SeatsAvailable)
	}
}

func TestToWireExceptionRejectsInvalid(t *testing.T) {
	_, err := ToWireException(exceptions.Exception{StartDate: "2024-02-10", EndDate: "2024-02-01"}, "listing-1")
	if err == nil {
		t.Fatal("inverted range should not convert")
	}
}

func TestFromWireExceptionUsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Riyadh")
	if err != nil {
		t.Fatal(err)
	}
	// Midnight UTC is already 03:00 the same day in Riyadh, so the local
	// date matches. 22:00 UTC the day before rolls over.
	res := ExceptionResource{
		ID:    "exc-1",
		Start: time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
		Seats: 0,
	}

	exc := FromWireException(res, loc)

	if exc.StartDate != "2024-03-10" {
		t.Fatalf("start = %s, want 2024-03-10", exc.StartDate)
	}
	if exc.EndDate != "2024-03-12" {
		t.Fatalf("end = %s", exc.EndDate)
	}
	if exc.Available {
		t.Fatal("zero seats should read as unavailable")
	}
}

func TestFilterForSubmit(t *testing.T) {
	list := []exceptions.Exception{
		{ID: "a", StartDate: "2024-05-01", EndDate: "2024-05-03", Available: false},
		{ID: "b", StartDate: "", EndDate: "2024-05-03"},
		{ID: "c", StartDate: "2024-05-10", EndDate: "2024-05-01"},
	}

	valid, dropped := FilterForSubmit(list)

	if len(valid) != 1 || valid[0].ID != "a" {
		t.Fatalf("valid = %+v", valid)
	}
	if len(dropped) != 2 {
		t.Fatalf("dropped = %+v", dropped)
	}
}
