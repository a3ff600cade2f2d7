package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Slot is one scheduled meeting: a half-open interval [Start, End) of
// seconds since midnight on a fixed weekday. Label identifies the owning
// course (or candidate slot) and is only used for conflict reporting.
type Slot struct {
	Label string
	Day   time.Weekday
	Start int
	End   int
}

// Interval formats the slot's time range as "HH:MM:SS-HH:MM:SS".
func (s Slot) Interval() string {
	return FormatClock(s.Start) + "-" + FormatClock(s.End)
}

// Overlaps reports whether two slots collide: same weekday and
// intersecting half-open intervals. Back-to-back slots do not overlap.
func Overlaps(a, b Slot) bool {
	return a.Day == b.Day && a.Start < b.End && a.End > b.Start
}

// Conflict describes the first pair of overlapping slots found in a scan.
// First is the slot that arrived earlier in the input sequence.
type Conflict struct {
	Day    time.Weekday
	First  Slot
	Second Slot
}

// String renders the conflict for error messages, naming the weekday,
// both labels, and both intervals.
func (c *Conflict) String() string {
	return fmt.Sprintf("%s: %s (%s) overlaps %s (%s)",
		c.Day, c.First.Label, c.First.Interval(), c.Second.Label, c.Second.Interval())
}

// Labels returns the two conflicting labels in arrival order.
func (c *Conflict) Labels() []string {
	return []string{c.First.Label, c.Second.Label}
}

// FindConflict scans the slots in input order, bucketing them by weekday,
// and returns the first overlapping pair or nil if the set is
// conflict-free. Each incoming slot is compared against every slot
// already placed in its weekday bucket, so the reported pair is
// deterministic for a given input order. O(n²) per bucket, which is fine
// for realistic course loads.
func FindConflict(slots []Slot) *Conflict {
	var buckets [7][]Slot
	for _, s := range slots {
		for _, placed := range buckets[s.Day] {
			if s.Start < placed.End && s.End > placed.Start {
				return &Conflict{Day: s.Day, First: placed, Second: s}
			}
		}
		buckets[s.Day] = append(buckets[s.Day], s)
	}
	return nil
}

// FindConflictWith checks a single candidate slot against an existing
// set, returning the first existing slot the candidate overlaps. The
// existing set is assumed to be internally conflict-free; only pairs
// involving the candidate are considered.
func FindConflictWith(candidate Slot, existing []Slot) *Conflict {
	for _, s := range existing {
		if Overlaps(candidate, s) {
			return &Conflict{Day: candidate.Day, First: s, Second: candidate}
		}
	}
	return nil
}

// ParseClock converts an "HH:MM:SS" time-of-day string into seconds
// since midnight. Fields must be zero-padded to two digits and the
// string must contain nothing else.
func ParseClock(raw string) (int, error) {
	t, err := time.Parse("15:04:05", raw)
	if err != nil || len(raw) != len("15:04:05") {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM:SS", raw)
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
}

// FormatClock converts seconds since midnight back to "HH:MM:SS".
func FormatClock(sec int) string {
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, sec%3600/60, sec%60)
}

// ParseWeekday resolves an English weekday name ("Monday", case
// insensitive) to its time.Weekday value.
func ParseWeekday(raw string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(raw, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", raw)
}
