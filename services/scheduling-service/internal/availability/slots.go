package availability

import (
	"slices"
	"time"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

// DefaultStep is the booking granularity offered to customers.
const DefaultStep = 30 * time.Minute

// QuantizeSlots expands each range into start times range.Start + k*step for which a job of
// length duration still ends within the range. A job may end exactly at range.End, so a
// 90-minute job in [09:00, 11:00) is offered 09:00 and 09:30. Starts before notBefore are
// skipped; pass the zero time to keep them all. The result is sorted and free of duplicates.
func QuantizeSlots(ranges []Interval, duration, step time.Duration, notBefore time.Time) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}

	var slots []time.Time
	for _, r := range ranges {
		for t := r.Start; !t.Add(duration).After(r.End); t = t.Add(step) {
			if t.Before(notBefore) {
				continue
			}
			slots = append(slots, t)
		}
	}

	slices.SortFunc(slots, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(slots, func(a, b time.Time) bool { return a.Equal(b) })
}

// FormatSlots renders slot starts as sorted, distinct "HH:mm" strings in loc.
func FormatSlots(slots []time.Time, loc *time.Location) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.In(loc).Format(model.ClockLayout))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// BaySlots runs the per-bay pipeline: free ranges, duration filter, quantization.
func BaySlots(window Interval, busy []Interval, duration, step time.Duration, notBefore time.Time) []time.Time {
	free := FreeRanges(window, busy)
	return QuantizeSlots(FilterByDuration(free, duration), duration, step, notBefore)
}
