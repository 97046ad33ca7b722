package searchapi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SolrTimeLayout is the timestamp form both engines are given.
const SolrTimeLayout = "2006-01-02T15:04:05Z"

var (
	timeRangePattern = regexp.MustCompile(`^\[\s*(\S+)\s+TO\s+(\S+)\s*\]$`)
	bceYearPattern   = regexp.MustCompile(`^-(\d{1,4})$`)

	ceLayouts = []string{
		"2006",
		"2006-01",
		"2006-01-02",
		"2006-01-02T15:04",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		time.RFC3339Nano,
	}
)

// TimeValue is one end of a time range.
type TimeValue struct {
	Open bool // "*"
	BCE  bool // only the year is known
	Year int  // negative for BCE values
	Time time.Time
}

// String renders v the way Solr expects it; open ends render as "*".
func (v TimeValue) String() string {
	switch {
	case v.Open:
		return "*"
	case v.BCE:
		return fmt.Sprintf("-%04d-01-01T00:00:00Z", -v.Year)
	default:
		return v.Time.UTC().Format(SolrTimeLayout)
	}
}

// TimeRange is a parsed "[start TO end]" filter.
type TimeRange struct {
	Start TimeValue
	End   TimeValue
}

// Open reports whether either end is "*".
func (r TimeRange) Open() bool { return r.Start.Open || r.End.Open }

// HasBCE reports whether either end is a BCE year.
func (r TimeRange) HasBCE() bool { return r.Start.BCE || r.End.BCE }

// String renders the range for Solr.
func (r TimeRange) String() string {
	return fmt.Sprintf("[%s TO %s]", r.Start, r.End)
}

// ParseTimeRange parses "[A TO B]". Either end may be "*"; a BCE end is a
// bare year with a leading minus ("-500").
func ParseTimeRange(s string) (TimeRange, error) {
	m := timeRangePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return TimeRange{}, BadRequest("q_time %q is not of the form [start TO end]", s)
	}
	start, err := ParseTimeValue(m[1])
	if err != nil {
		return TimeRange{}, err
	}
	end, err := ParseTimeValue(m[2])
	if err != nil {
		return TimeRange{}, err
	}

	r := TimeRange{Start: start, End: end}
	if !r.Open() && r.after() {
		return TimeRange{}, BadRequest("q_time start %s is after end %s", start, end)
	}
	return r, nil
}

func (r TimeRange) after() bool {
	switch {
	case r.Start.BCE && r.End.BCE:
		return r.Start.Year > r.End.Year
	case r.Start.BCE:
		return false
	case r.End.BCE:
		return true
	default:
		return r.Start.Time.After(r.End.Time)
	}
}

// ParseTimeValue parses one end of a range.
func ParseTimeValue(s string) (TimeValue, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return TimeValue{Open: true}, nil
	}
	// An empty segment before the first "-" marks a BCE year.
	if parts := strings.SplitN(s, "-", 2); len(parts) == 2 && parts[0] == "" {
		m := bceYearPattern.FindStringSubmatch(s)
		if m == nil {
			return TimeValue{}, BadRequest("BCE time %q must be a bare year", s)
		}
		y, _ := strconv.Atoi(m[1])
		return TimeValue{BCE: true, Year: -y}, nil
	}
	for _, layout := range ceLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return TimeValue{Year: t.Year(), Time: t.UTC()}, nil
		}
	}
	return TimeValue{}, BadRequest("cannot parse time %q", s)
}

var indexedBCEPattern = regexp.MustCompile(`^-(\d{1,4})-`)

// ParseIndexedTime parses a timestamp read back from an engine. Negative
// years keep only the year, like BCE request values.
func ParseIndexedTime(s string) (TimeValue, error) {
	s = strings.TrimSpace(s)
	if m := indexedBCEPattern.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		return TimeValue{BCE: true, Year: -y}, nil
	}
	return ParseTimeValue(s)
}

// daysBetween counts whole days from a to b without time.Duration, which
// overflows past 292 years.
func daysBetween(a, b time.Time) int64 {
	return (b.Unix() - a.Unix()) / 86400
}
