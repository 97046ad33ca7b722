package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
)

var (
	rangePattern   = regexp.MustCompile(`^\[\s*(\S+)\s+TO\s+(\S+)\s*\]$`)
	partialPattern = regexp.MustCompile(`^(-?)(\d{1,4})(?:-(\d{1,2}))?(?:-(\d{1,2}))?(?:T(\d{2}):(\d{2})(?::(\d{2}))?(?:\.\d+)?Z?)?$`)
)

// Canonical picks the single date (or range) that best describes l and
// renders it in Solr ISO form. The order of preference is:
//  1. WorldMap temporal extents (both ends make a range)
//  2. a stored range date
//  3. the first stored date
//  4. the layer creation date, typed as metadata
//
// Candidates that fail to parse or lie beyond MaxYear are skipped.
func Canonical(l *domain.Layer) (value string, typ domain.DateType, ok bool) {
	if l == nil {
		return "", domain.DateDetected, false
	}

	if wm := l.WorldMap; wm != nil {
		start, end := strings.TrimSpace(wm.TemporalExtentStart), strings.TrimSpace(wm.TemporalExtentEnd)
		var candidate string
		switch {
		case start != "" && end != "":
			candidate = fmt.Sprintf("[%s TO %s]", start, end)
		case start != "":
			candidate = start
		case end != "":
			candidate = end
		}
		if v, ok := Render(candidate); ok {
			return v, domain.DateFromMetadata, true
		}
	}

	for _, d := range l.Dates {
		if !d.IsRange() {
			continue
		}
		if v, ok := Render(d.Date); ok {
			return v, d.Type, true
		}
	}

	for _, d := range l.Dates {
		if v, ok := Render(d.Date); ok {
			return v, d.Type, true
		}
	}

	if !l.Created.IsZero() {
		return l.Created.UTC().Format("2006-01-02T15:04:05Z"), domain.DateFromMetadata, true
	}
	return "", domain.DateDetected, false
}

// Render pads a single date or a "[start TO end]" range to full ISO
// timestamps: "1950" → "1950-01-01T00:00:00Z", "-0019" → "-0019-01-01T00:00:00Z".
func Render(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if m := rangePattern.FindStringSubmatch(s); m != nil {
		start, ok := renderSingle(m[1])
		if !ok {
			return "", false
		}
		end, ok := renderSingle(m[2])
		if !ok {
			return "", false
		}
		return fmt.Sprintf("[%s TO %s]", start, end), true
	}
	return renderSingle(s)
}

// StartOf returns the first end of a rendered range, or v itself.
func StartOf(v string) string {
	if m := rangePattern.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return v
}

// EndOf returns the second end of a rendered range, or v itself.
func EndOf(v string) string {
	if m := rangePattern.FindStringSubmatch(v); m != nil {
		return m[2]
	}
	return v
}

func renderSingle(s string) (string, bool) {
	m := partialPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}

	year, _ := strconv.Atoi(m[2])
	if m[1] == "" && year > MaxYear {
		return "", false
	}
	month, day := atoiOr(m[3], 1), atoiOr(m[4], 1)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	hh, mm, ss := atoiOr(m[5], 0), atoiOr(m[6], 0), atoiOr(m[7], 0)
	if hh > 23 || mm > 59 || ss > 59 {
		return "", false
	}

	return fmt.Sprintf("%s%04d-%02d-%02dT%02d:%02d:%02dZ", m[1], year, month, day, hh, mm, ss), true
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
