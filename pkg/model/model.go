// Package model defines the core data types shared across the mirror pipeline:
// datecodes, capture and bucket metadata, and the closed set of error kinds.
package model

import (
	"fmt"
	"time"
)

// DateCode identifies one capture or one output bucket: an 8-digit
// calendar date in YYYYMMDD form with no separators.
type DateCode struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDateCode parses an 8-digit YYYYMMDD string. It returns a *ParseError
// when the input is not exactly 8 digits or does not name a real calendar day.
func ParseDateCode(s string) (DateCode, error) {
	if len(s) != 8 {
		return DateCode{}, &ParseError{Input: s, Err: fmt.Errorf("want 8 digits, got %d bytes", len(s))}
	}
	n := 0
	for i := 0; i < 8; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return DateCode{}, &ParseError{Input: s, Err: fmt.Errorf("non-digit at position %d", i)}
		}
		n = n*10 + int(c-'0')
	}
	dc := DateCode{
		Year:  n / 10000,
		Month: time.Month((n / 100) % 100),
		Day:   n % 100,
	}
	// Round-trip through time.Date to reject e.g. 20210231. time.Date
	// normalizes out-of-range components instead of failing.
	t := time.Date(dc.Year, dc.Month, dc.Day, 0, 0, 0, 0, time.UTC)
	if t.Year() != dc.Year || t.Month() != dc.Month || t.Day() != dc.Day {
		return DateCode{}, &ParseError{Input: s, Err: fmt.Errorf("no such calendar day")}
	}
	return dc, nil
}

// DateCodeOf returns the datecode of the calendar day containing t,
// in t's own location.
func DateCodeOf(t time.Time) DateCode {
	y, m, d := t.Date()
	return DateCode{Year: y, Month: m, Day: d}
}

// String renders the datecode as YYYYMMDD.
func (d DateCode) String() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

// Time returns the first instant of the day (00:00:00) in loc.
func (d DateCode) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// EndOfDay returns the last whole second of the day (23:59:59) in loc.
func (d DateCode) EndOfDay(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, 0, loc)
}

// Before reports whether d is an earlier calendar day than other.
func (d DateCode) Before(other DateCode) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// CaptureState is one row of the sync index: the cache manager's view of a
// single UTC-day capture after the most recent size probe.
type CaptureState struct {
	DateCode   string    `json:"datecode"`
	RemoteSize int64     `json:"remote_size"`
	LocalSize  int64     `json:"local_size"`
	ModifiedAt time.Time `json:"modified_at"`
	CheckedAt  time.Time `json:"checked_at"`
	Downloads  int       `json:"downloads"`
}

// BucketState is one row of the sync index describing the latest conversion
// of an output bucket.
type BucketState struct {
	DateCode    string    `json:"datecode"`
	Strategy    string    `json:"strategy"`
	Sources     []string  `json:"sources"`
	RowCount    int       `json:"row_count"`
	Written     bool      `json:"written"`
	ConvertedAt time.Time `json:"converted_at"`
}
