// Package schedule contains the pure time-interval algebra the conflict
// detector and slot suggestion are built on. Every interval is half-open
// [Start, End) in minutes since midnight. The package performs no I/O.
package schedule

// Default scheduling policy. The working window and slot length are
// configuration knobs; these are the fallbacks.
const (
	// DefaultWorkStart is 08:00 in minutes since midnight.
	DefaultWorkStart = 8 * 60

	// DefaultWorkEnd is 16:00 in minutes since midnight.
	DefaultWorkEnd = 16 * 60

	// DefaultSlotMinutes is the default length of a suggested slot.
	DefaultSlotMinutes = 60

	// DefaultSessionMinutes is the assumed duration of a mentoring session
	// whose end time was never recorded.
	DefaultSessionMinutes = 60
)

// Interval is a half-open [Start, End) span of minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// IsValid reports whether the interval is non-empty and within a day.
func (iv Interval) IsValid() bool {
	return iv.Start >= 0 && iv.End <= 24*60 && iv.Start < iv.End
}

// Duration returns the interval length in minutes.
func (iv Interval) Duration() int {
	return iv.End - iv.Start
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
//
// The comparison is strict, so back-to-back intervals (10:00-11:00 and
// 11:00-12:00) do NOT conflict: abutting sessions are allowed.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// OverlapsInterval is Overlaps on the Interval type.
func OverlapsInterval(a, b Interval) bool {
	return Overlaps(a.Start, a.End, b.Start, b.End)
}

// MergeSorted merges intervals already sorted by Start ascending into a
// disjoint, sorted set of busy spans.
//
// Unlike Overlaps, merging is non-strict: an interval whose start equals the
// previous end is folded in, because free-slot computation must treat exact
// abutment as contiguous busy time.
func MergeSorted(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	merged := make([]Interval, 0, len(intervals))
	current := intervals[0]

	for _, iv := range intervals[1:] {
		if current.End >= iv.Start {
			if iv.End > current.End {
				current.End = iv.End
			}
			continue
		}
		merged = append(merged, current)
		current = iv
	}

	return append(merged, current)
}

// FreeSlots enumerates the start minutes of fixed-duration slots that fit
// inside [workStart, workEnd) without touching any merged busy interval.
//
// busyMerged must be disjoint and sorted (the output of MergeSorted). A slot
// is emitted only when cursor+slotDuration fits entirely before the next
// boundary, so partial trailing gaps produce nothing.
func FreeSlots(workStart, workEnd, slotDuration int, busyMerged []Interval) []int {
	if slotDuration <= 0 || workStart >= workEnd {
		return nil
	}

	slots := make([]int, 0, (workEnd-workStart)/slotDuration)
	cursor := workStart

	for _, busy := range busyMerged {
		if busy.End <= cursor {
			continue
		}
		for cursor+slotDuration <= busy.Start {
			slots = append(slots, cursor)
			cursor += slotDuration
		}
		if busy.End > cursor {
			cursor = busy.End
		}
	}

	for cursor+slotDuration <= workEnd {
		slots = append(slots, cursor)
		cursor += slotDuration
	}

	return slots
}

// SortByStart sorts intervals in place by Start ascending (insertion sort;
// busy sets per advisor per day are tiny).
func SortByStart(intervals []Interval) {
	for i := 1; i < len(intervals); i++ {
		for j := i; j > 0 && intervals[j].Start < intervals[j-1].Start; j-- {
			intervals[j], intervals[j-1] = intervals[j-1], intervals[j]
		}
	}
}
