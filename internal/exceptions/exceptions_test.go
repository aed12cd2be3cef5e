package exceptions

import (
	"errors"
	"testing"
	"time"

	"github.com/khidmaapp/availability/internal/schedule"
)

func TestAddAssignsID(t *testing.T) {
	list, err := Add(nil, Exception{StartDate: "2024-01-10", EndDate: "2024-01-15", Available: false})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(list) != 1 || list[0].ID == "" {
		t.Fatalf("expected one exception with id, got %+v", list)
	}

	list2, err := Add(list, Exception{StartDate: "2024-02-01", EndDate: "2024-02-01", Available: true})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(list2) != 2 {
		t.Fatalf("expected two exceptions, got %d", len(list2))
	}
	if list2[0].ID == list2[1].ID {
		t.Fatal("expected unique ids")
	}
	if len(list) != 1 {
		t.Fatal("Add mutated its input")
	}
}

func TestAddRejectsMissingDates(t *testing.T) {
	if _, err := Add(nil, Exception{StartDate: "", EndDate: "2024-01-15"}); !errors.Is(err, ErrMissingDates) {
		t.Fatalf("expected ErrMissingDates, got %v", err)
	}
	if _, err := Add(nil, Exception{StartDate: "2024-01-15", EndDate: ""}); !errors.Is(err, ErrMissingDates) {
		t.Fatalf("expected ErrMissingDates, got %v", err)
	}
	if _, err := Add(nil, Exception{StartDate: "2024-01-20", EndDate: "2024-01-10"}); !errors.Is(err, ErrInvertedRange) {
		t.Fatalf("expected ErrInvertedRange, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	list := []Exception{
		{ID: "a", StartDate: "2024-01-01", EndDate: "2024-01-02"},
		{ID: "b", StartDate: "2024-02-01", EndDate: "2024-02-02"},
	}
	out := Remove(list, "a")
	if len(out) != 1 || out[0].ID != "b" {
		t.Fatalf("unexpected result: %+v", out)
	}
	if len(Remove(list, "missing")) != 2 {
		t.Fatal("removing an unknown id should be a no-op")
	}
}

func TestDisabledDatesWindow(t *testing.T) {
	ref := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	disabled := DisabledDates(nil, ref)

	if _, ok := disabled["2024-06-14"]; !ok {
		t.Fatal("expected yesterday to be disabled")
	}
	if _, ok := disabled["2023-06-16"]; !ok {
		t.Fatal("expected the full 365-day window to be disabled")
	}
	if _, ok := disabled["2024-06-15"]; ok {
		t.Fatal("the reference date itself must stay selectable")
	}
	if _, ok := disabled["2024-06-16"]; ok {
		t.Fatal("future dates must stay selectable")
	}
	if len(disabled) != 365 {
		t.Fatalf("expected exactly 365 past dates, got %d", len(disabled))
	}
}

func TestDisabledDatesIncludesExceptionRanges(t *testing.T) {
	ref := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	existing := []Exception{{ID: "x", StartDate: "2024-07-01", EndDate: "2024-07-03", Available: false}}

	disabled := DisabledDates(existing, ref)
	for _, d := range []string{"2024-07-01", "2024-07-02", "2024-07-03"} {
		if _, ok := disabled[d]; !ok {
			t.Fatalf("expected %s disabled", d)
		}
	}
	if _, ok := disabled["2024-07-04"]; ok {
		t.Fatal("date after the exception range must stay selectable")
	}
}

func TestIsDayAvailableExceptionPrecedence(t *testing.T) {
	weekly := schedule.NewWeekly()
	weekly["monday"] = schedule.DaySchedule{Enabled: true}

	// 2024-06-10 is a Monday.
	excs := []Exception{{ID: "x", StartDate: "2024-06-09", EndDate: "2024-06-11", Available: false}}

	got, err := IsDayAvailable(weekly, excs, "2024-06-10")
	if err != nil {
		t.Fatalf("IsDayAvailable failed: %v", err)
	}
	if got {
		t.Fatal("exception must override the enabled template")
	}

	got, err = IsDayAvailable(weekly, nil, "2024-06-10")
	if err != nil {
		t.Fatalf("IsDayAvailable failed: %v", err)
	}
	if !got {
		t.Fatal("template says Monday is open")
	}

	got, err = IsDayAvailable(weekly, nil, "2024-06-11") // a Tuesday, disabled
	if err != nil {
		t.Fatalf("IsDayAvailable failed: %v", err)
	}
	if got {
		t.Fatal("template says Tuesday is closed")
	}
}

func TestIsDayAvailableFirstExceptionWins(t *testing.T) {
	weekly := schedule.NewWeekly()
	excs := []Exception{
		{ID: "first", StartDate: "2024-06-10", EndDate: "2024-06-12", Available: true},
		{ID: "second", StartDate: "2024-06-11", EndDate: "2024-06-13", Available: false},
	}
	got, err := IsDayAvailable(weekly, excs, "2024-06-11")
	if err != nil {
		t.Fatalf("IsDayAvailable failed: %v", err)
	}
	if !got {
		t.Fatal("first matching exception in list order must win")
	}
}

func TestOverlaps(t *testing.T) {
	a := Exception{StartDate: "2024-01-10", EndDate: "2024-01-15"}
	cases := []struct {
		b    Exception
		want bool
	}{
		{Exception{StartDate: "2024-01-15", EndDate: "2024-01-20"}, true},  // touching endpoint
		{Exception{StartDate: "2024-01-01", EndDate: "2024-01-09"}, false}, // before
		{Exception{StartDate: "2024-01-16", EndDate: "2024-01-20"}, false}, // after
		{Exception{StartDate: "2024-01-12", EndDate: "2024-01-13"}, true},  // inside
	}
	for _, c := range cases {
		if got := a.Overlaps(c.b); got != c.want {
			t.Errorf("Overlaps(%s..%s) = %v, want %v", c.b.StartDate, c.b.EndDate, got, c.want)
		}
	}
}
