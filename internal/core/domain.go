package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a single ledger record. Its month ledger is always MonthOf(Date).
	Expense struct {
		ID          string
		Date        Date
		Description string
		Amount      Money
		Category    string // derived from the description, may be empty
		CreatedAt   time.Time
	}

	// MonthKey identifies one month ledger.
	MonthKey struct {
		Year  int
		Month time.Month
	}

	// DateRange is inclusive on both ends.
	DateRange struct {
		From Date
		To   Date
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrAmountTooLarge   = errors.New("amount too large")
	ErrEmptyDescription = errors.New("empty description")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrMonthMismatch    = errors.New("record date outside its month ledger")
)

const MaxDescriptionLen = 200

// MaxAmountCents caps a single record at $10,000,000 so month and all-time
// sums stay far inside int64.
const MaxAmountCents int64 = 1_000_000_000

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day. Out of range values
// normalize the way time.Date does.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO calendar date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year(), d.Month(), d.Day()+n)
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Equal reports whether d and o are the same calendar day.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

// IsWeekend reports whether d falls on a Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	return nil
}

// Validate checks the fields an add operation must satisfy.
func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > MaxDescriptionLen {
		return ErrDescriptionLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	return nil
}

// Month returns the key of the ledger the record belongs to.
func (e Expense) Month() MonthKey {
	return MonthOf(e.Date)
}

// MonthOf derives the month ledger key from a date.
func MonthOf(d Date) MonthKey {
	return MonthKey{Year: d.Year(), Month: d.Time.Month()}
}

// ParseMonthKey parses the 2006-01 form produced by MonthKey.String.
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return MonthKey{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}, nil
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Label is the human form, e.g. "October 2026".
func (k MonthKey) Label() string {
	return fmt.Sprintf("%s %d", k.Month, k.Year)
}

func (k MonthKey) IsZero() bool { return k.Year == 0 && k.Month == 0 }

// First returns the first day of the month.
func (k MonthKey) First() Date { return NewDate(k.Year, int(k.Month), 1) }

// Last returns the last day of the month.
func (k MonthKey) Last() Date { return NewDate(k.Year, int(k.Month)+1, 0) }

// Range covers the whole month.
func (k MonthKey) Range() DateRange { return DateRange{From: k.First(), To: k.Last()} }

// Prev returns the month before k.
func (k MonthKey) Prev() MonthKey { return MonthOf(NewDate(k.Year, int(k.Month)-1, 1)) }

// Next returns the month after k.
func (k MonthKey) Next() MonthKey { return MonthOf(NewDate(k.Year, int(k.Month)+1, 1)) }

// Before orders month keys chronologically.
func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// Contains reports whether d falls inside r, both ends inclusive.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// Days returns the number of calendar days in r.
func (r DateRange) Days() int {
	if r.To.Before(r.From) {
		return 0
	}
	return int(r.To.Sub(r.From.Time).Hours()/24) + 1
}

// Overlaps reports whether r and o share at least one day.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.To.Before(o.From) && !o.To.Before(r.From)
}

// Months lists every month key the range touches, oldest first.
func (r DateRange) Months() []MonthKey {
	if r.To.Before(r.From) {
		return nil
	}
	var out []MonthKey
	last := MonthOf(r.To)
	for k := MonthOf(r.From); !last.Before(k); k = k.Next() {
		out = append(out, k)
	}
	return out
}

// SingleMonth reports whether the range lies inside one month ledger.
func (r DateRange) SingleMonth() bool {
	return MonthOf(r.From) == MonthOf(r.To)
}

func (r DateRange) String() string {
	if r.From.Equal(r.To) {
		return r.From.String()
	}
	return r.From.String() + " to " + r.To.String()
}
