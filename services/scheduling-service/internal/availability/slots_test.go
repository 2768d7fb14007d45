package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

func clocks(slots []time.Time) []string {
	return FormatSlots(slots, time.UTC)
}

func assertClocks(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestQuantize_NinetyMinutesInSixtyMinuteRange(t *testing.T) {
	ranges := FilterByDuration([]Interval{span(9, 0, 10, 0)}, 90*time.Minute)
	if got := QuantizeSlots(ranges, 90*time.Minute, DefaultStep, time.Time{}); len(got) != 0 {
		t.Fatalf("expected no slots, got %v", clocks(got))
	}
}

func TestQuantize_NinetyMinutesInShortRangeStartsAtRangeStart(t *testing.T) {
	got := QuantizeSlots([]Interval{span(9, 0, 10, 45)}, 90*time.Minute, DefaultStep, time.Time{})
	assertClocks(t, clocks(got), "09:00")
}

func TestQuantize_EndMayTouchRangeEnd(t *testing.T) {
	// 09:30 + 90m ends exactly at 11:00, which is still inside [09:00, 11:00).
	got := QuantizeSlots([]Interval{span(9, 0, 11, 0)}, 90*time.Minute, DefaultStep, time.Time{})
	assertClocks(t, clocks(got), "09:00", "09:30")
}

func TestQuantize_StepsFromRangeStart(t *testing.T) {
	got := QuantizeSlots([]Interval{span(11, 15, 13, 0)}, 60*time.Minute, DefaultStep, time.Time{})
	assertClocks(t, clocks(got), "11:15", "11:45")
}

func TestQuantize_DeduplicatesAndSorts(t *testing.T) {
	ranges := []Interval{span(14, 0, 15, 0), span(9, 0, 10, 0), span(9, 0, 10, 0)}
	got := QuantizeSlots(ranges, 30*time.Minute, DefaultStep, time.Time{})
	assertClocks(t, clocks(got), "09:00", "09:30", "14:00", "14:30")
}

func TestQuantize_SkipsPast(t *testing.T) {
	got := QuantizeSlots([]Interval{span(9, 0, 11, 0)}, 30*time.Minute, DefaultStep, at(9, 31))
	assertClocks(t, clocks(got), "10:00", "10:30")
}

func TestQuantize_RejectsNonPositiveInputs(t *testing.T) {
	ranges := []Interval{span(9, 0, 11, 0)}
	if QuantizeSlots(ranges, 0, DefaultStep, time.Time{}) != nil {
		t.Fatalf("zero duration must yield nothing")
	}
	if QuantizeSlots(ranges, time.Hour, 0, time.Time{}) != nil {
		t.Fatalf("zero step must yield nothing")
	}
}

func TestBaySlots_Pipeline(t *testing.T) {
	got := BaySlots(span(8, 0, 12, 0), []Interval{span(9, 0, 10, 30)}, time.Hour, DefaultStep, time.Time{})
	assertClocks(t, clocks(got), "08:00", "10:30", "11:00")
}

func TestFormatSlotsUsesLocation(t *testing.T) {
	ict := time.FixedZone("ICT", 7*3600)
	got := FormatSlots([]time.Time{at(1, 0), at(2, 30)}, ict)
	assertClocks(t, got, "08:00", "09:30")
}

func TestWorkingWindow(t *testing.T) {
	branch := model.Branch{
		ID:   "br-1",
		Name: "District 1",
		Hours: []model.WorkingHours{
			{Weekday: time.Monday, OpenMinute: 8 * 60, CloseMinute: 18 * 60},
			{Weekday: time.Saturday, OpenMinute: 9 * 60, CloseMinute: 9 * 60},
		},
	}
	ict := time.FixedZone("ICT", 7*3600)

	window, err := WorkingWindow(branch, day, ict)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if window.Start.Format("15:04") != "08:00" || window.End.Format("15:04") != "18:00" || window.Start.Location() != ict {
		t.Fatalf("unexpected window %v", window)
	}

	for _, closed := range []time.Time{day.AddDate(0, 0, 1), day.AddDate(0, 0, 5)} {
		_, err := WorkingWindow(branch, closed, ict)
		var closedErr *model.BranchClosedError
		if !errors.As(err, &closedErr) {
			t.Fatalf("%s: expected BranchClosedError, got %v", closed.Weekday(), err)
		}
		if closedErr.BranchID != "br-1" || closedErr.Date.Weekday() != closed.Weekday() {
			t.Fatalf("unexpected error detail %+v", closedErr)
		}
	}
}
