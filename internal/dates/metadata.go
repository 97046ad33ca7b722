package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxYear bounds plausible dates. Later values come from garbled metadata.
const MaxYear = 2300

// defaultDate fills the components a partial metadata date leaves out.
var defaultDate = time.Date(2016, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	yearOnly      = regexp.MustCompile(`^(\d{1,4})$`)
	yearMonth     = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})$`)
	monthNameYear = regexp.MustCompile(`^([A-Za-z]+)\.?,?\s+(\d{4})$`)
	monthNameOnly = regexp.MustCompile(`^([A-Za-z]+)\.?$`)
)

// ParseMetadataDate normalizes a date read from a structured metadata field
// to "YYYY-MM-DD". Components missing from a partial value are taken from
// 2016-01-01. Negative (BCE) values are returned verbatim.
func ParseMetadataDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.HasPrefix(raw, "-") {
		return raw, true
	}

	if m := yearOnly.FindStringSubmatch(raw); m != nil {
		year, _ := strconv.Atoi(m[1])
		return checked(time.Date(year, defaultDate.Month(), defaultDate.Day(), 0, 0, 0, 0, time.UTC))
	}
	if m := yearMonth.FindStringSubmatch(raw); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return "", false
		}
		return checked(time.Date(year, time.Month(month), defaultDate.Day(), 0, 0, 0, 0, time.UTC))
	}
	if m := monthNameYear.FindStringSubmatch(raw); m != nil {
		if month, ok := parseMonth(m[1]); ok {
			year, _ := strconv.Atoi(m[2])
			return checked(time.Date(year, month, defaultDate.Day(), 0, 0, 0, 0, time.UTC))
		}
	}
	if m := monthNameOnly.FindStringSubmatch(raw); m != nil {
		if month, ok := parseMonth(m[1]); ok {
			return checked(time.Date(defaultDate.Year(), month, defaultDate.Day(), 0, 0, 0, 0, time.UTC))
		}
	}

	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return "", false
	}
	return checked(t)
}

func parseMonth(name string) (time.Month, bool) {
	name = cases.Title(language.English).String(strings.ToLower(name))
	for _, layout := range []string{"January", "Jan"} {
		if t, err := time.Parse(layout, name); err == nil {
			return t.Month(), true
		}
	}
	return 0, false
}

func checked(t time.Time) (string, bool) {
	if t.Year() > MaxYear {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day()), true
}
