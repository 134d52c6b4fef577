/*
dates.go - Date type and interval math for coverage periods

PURPOSE:
  All span boundary logic in the engine goes through this file. The source
  of most timeline bugs in enrollment systems is inconsistent boundary
  handling (is an end date inclusive? is a one-day gap a gap?), so the
  contract is centralized here and every other component calls these
  helpers instead of comparing time.Time values ad hoc.

CONTRACT:
  - Dates are day-granularity, UTC, inclusive on both ends of a range.
  - Overlaps(aStart, aEnd, bStart, bEnd) is true iff aEnd > bStart AND
    aStart < bEnd. Ranges that merely touch on a single endpoint day
    (a ends Jun 1, b starts Jun 1) do NOT overlap, and neither do
    back-to-back ranges (a ends Jan 31, b starts Feb 1).
  - GapDays(priorEnd, nextStart) = nextStart - priorEnd in days.
      1  => adjacent, no gap in coverage
      >1 => gap in coverage
      <=0 => overlap

SEE ALSO:
  - overlap.go: Uses Overlaps to build the candidate set
  - status.go: Uses GapDays for the gap-in-coverage rule
*/
package enrollment

import "time"

// =============================================================================
// DATE - Day-granularity calendar date
// =============================================================================

// Date is a calendar date at day granularity, always UTC midnight.
type Date struct {
	Time time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func Today() Date {
	return DateOf(time.Now().UTC())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date  { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddYears(n int) Date { return Date{Time: d.Time.AddDate(n, 0, 0)} }

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

func StartOfYear(year int) Date { return NewDate(year, time.January, 1) }
func EndOfYear(year int) Date   { return NewDate(year, time.December, 31) }

// =============================================================================
// INTERVAL MATH
// =============================================================================

// Overlaps reports whether the inclusive ranges [aStart, aEnd] and
// [bStart, bEnd] overlap: aEnd > bStart AND aStart < bEnd. Endpoints
// that coincide exactly do not count.
func Overlaps(aStart, aEnd, bStart, bEnd Date) bool {
	return aEnd.After(bStart) && aStart.Before(bEnd)
}

// GapDays returns nextStart - priorEnd in whole days.
// 1 means adjacent (no gap in coverage), >1 a gap, <=0 an overlap.
func GapDays(priorEnd, nextStart Date) int {
	return int(nextStart.normalize().Sub(priorEnd.normalize()).Hours() / 24)
}

// DaysBetween returns to - from in whole days.
func DaysBetween(from, to Date) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// DateRange is an inclusive [Start, End] day range.
type DateRange struct {
	Start Date
	End   Date
}

// Contains returns true if d is within the range [Start, End].
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}
