package farm

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Calendar date without time of day
// =============================================================================

// Day is a calendar date. The zero value means "unset".
type Day struct {
	Time time.Time // always midnight UTC
}

const dayLayout = "2006-01-02"

func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates t to its calendar date in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc != nil {
		t = t.In(loc)
	}
	return NewDay(t.Year(), t.Month(), t.Day())
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return NewDay(t.Year(), t.Month(), t.Day()), nil
}

func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Day) Before(other Day) bool { return d.Time.Before(other.Time) }
func (d Day) After(other Day) bool  { return d.Time.After(other.Time) }
func (d Day) Equal(other Day) bool  { return d.Time.Equal(other.Time) }
func (d Day) IsZero() bool          { return d.Time.IsZero() }

// Arithmetic
func (d Day) AddDays(n int) Day { return Day{Time: d.Time.AddDate(0, 0, n)} }

func (d Day) String() string { return d.Time.Format(dayLayout) }

// Compact renders the date as YYYYMMDD for batch and order numbers.
func (d Day) Compact() string { return d.Time.Format("20060102") }

// DaysBetween counts whole calendar days from -> to. Negative when to is earlier.
func DaysBetween(from, to Day) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies "now". today and daysInStock derive from it on every read.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns At. Advance moves it forward.
type FixedClock struct {
	At time.Time
}

func (c *FixedClock) Now() time.Time { return c.At }

func (c *FixedClock) Advance(d time.Duration) { c.At = c.At.Add(d) }
