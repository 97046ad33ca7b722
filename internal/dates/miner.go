// Package dates extracts and normalizes the dates a layer depicts.
//
// Values are kept as zero-padded, optionally negative ISO-like strings
// ("1950-01-01", "-0019-01-01") rather than time.Time, because BCE years
// must round-trip unchanged into the search index.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "1950CE", "1950 CE", "221 BCE"
	eraPattern = regexp.MustCompile(`(\d{2,4}) ?(B?)CE`)

	// "19BC", "19 BC"; BCE is handled by eraPattern.
	bcPattern = regexp.MustCompile(`(\d{2,4}) ?BC\b`)

	yearPattern = regexp.MustCompile(`\b(\d{4})\b`)
)

// Mine returns the dates found in text, in order of appearance and without
// duplicates. It returns nil when nothing is found.
//
// Patterns are tried in order and the first that matches wins:
//  1. era years: "NNNN CE" and "NNNN BCE" (BCE shifted by one year)
//  2. "NN BC" (negated, no shift)
//  3. bare four digit years
//  4. dynasty names, which yield "[start TO end]" ranges
func Mine(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if m := eraPattern.FindAllStringSubmatch(text, -1); len(m) > 0 {
		out := make([]string, 0, len(m))
		for _, sm := range m {
			year, err := strconv.Atoi(sm[1])
			if err != nil {
				continue
			}
			if sm[2] == "B" {
				year = -(year - 1)
			}
			out = appendUnique(out, FormatYear(year))
		}
		return nilIfEmpty(out)
	}

	if m := bcPattern.FindAllStringSubmatch(text, -1); len(m) > 0 {
		out := make([]string, 0, len(m))
		for _, sm := range m {
			year, err := strconv.Atoi(sm[1])
			if err != nil {
				continue
			}
			out = appendUnique(out, FormatYear(-year))
		}
		return nilIfEmpty(out)
	}

	if m := yearPattern.FindAllStringSubmatch(text, -1); len(m) > 0 {
		out := make([]string, 0, len(m))
		for _, sm := range m {
			year, err := strconv.Atoi(sm[1])
			if err != nil || year > MaxYear {
				continue
			}
			out = appendUnique(out, FormatYear(year))
		}
		if len(out) > 0 {
			return out
		}
	}

	var out []string
	for _, d := range LookupDynasties(text) {
		out = appendUnique(out, d.Range())
	}
	return out
}

// MineLayer mines title and abstract independently and unions the results.
func MineLayer(title, abstract string) []string {
	var out []string
	for _, d := range Mine(title) {
		out = appendUnique(out, d)
	}
	for _, d := range Mine(abstract) {
		out = appendUnique(out, d)
	}
	return out
}

// FormatYear renders January 1st of year, zero-padded to four digits and
// keeping the sign: 1950 → "1950-01-01", -19 → "-0019-01-01".
func FormatYear(year int) string {
	if year < 0 {
		return fmt.Sprintf("-%04d-01-01", -year)
	}
	return fmt.Sprintf("%04d-01-01", year)
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
