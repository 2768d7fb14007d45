package availability

import (
	"slices"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Overlaps uses half-open semantics, so back-to-back intervals do not overlap.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// Contains reports whether o lies entirely inside iv.
func (iv Interval) Contains(o Interval) bool {
	return !o.Start.Before(iv.Start) && !o.End.After(iv.End)
}

// FreeRanges subtracts busy intervals from window and returns the remaining gaps in
// order. Busy intervals may overlap, touch, or extend past the window.
func FreeRanges(window Interval, busy []Interval) []Interval {
	if !window.End.After(window.Start) {
		return nil
	}

	clipped := make([]Interval, 0, len(busy))
	for _, b := range busy {
		s, e := b.Start, b.End
		if !e.After(window.Start) || !s.Before(window.End) {
			continue
		}
		if s.Before(window.Start) {
			s = window.Start
		}
		if e.After(window.End) {
			e = window.End
		}
		if e.After(s) {
			clipped = append(clipped, Interval{Start: s, End: e})
		}
	}
	if len(clipped) == 0 {
		return []Interval{window}
	}

	slices.SortFunc(clipped, func(a, b Interval) int { return a.Start.Compare(b.Start) })

	var free []Interval
	cursor := window.Start
	for _, b := range clipped {
		if b.Start.After(cursor) {
			free = append(free, Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if window.End.After(cursor) {
		free = append(free, Interval{Start: cursor, End: window.End})
	}
	return free
}

// FilterByDuration keeps the ranges long enough to hold d.
func FilterByDuration(ranges []Interval, d time.Duration) []Interval {
	out := make([]Interval, 0, len(ranges))
	for _, r := range ranges {
		if r.Duration() >= d {
			out = append(out, r)
		}
	}
	return out
}

// Fits reports whether want lies entirely within one of ranges.
func Fits(ranges []Interval, want Interval) bool {
	for _, r := range ranges {
		if r.Contains(want) {
			return true
		}
	}
	return false
}
