package searchapi

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/MrSnakeDoc/georegistry/internal/geo"
)

// GapUnit is the unit of a histogram interval.
type GapUnit int

const (
	Second GapUnit = iota
	Minute
	Hour
	Day
	Week
	Month
	Year
)

// BCEGap is used for ranges touching BCE years, whose length is not computed.
var BCEGap = Gap{N: 100, Unit: Year}

var isoGapPattern = regexp.MustCompile(`^P(?:(\d+)([YMWD])|T(\d+)([HMS]))$`)

// Gap is a histogram interval such as "6 days".
type Gap struct {
	N    int
	Unit GapUnit
}

// ParseISO8601Gap parses the single-component durations the API accepts:
// P<n>Y, P<n>M, P<n>W, P<n>D, PT<n>H, PT<n>M and PT<n>S.
func ParseISO8601Gap(s string) (Gap, error) {
	m := isoGapPattern.FindStringSubmatch(s)
	if m == nil {
		return Gap{}, BadRequest("a_time_gap %q is not an ISO-8601 duration like P1D", s)
	}
	num, unit, timePart := m[1], m[2], false
	if num == "" {
		num, unit, timePart = m[3], m[4], true
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return Gap{}, BadRequest("a_time_gap %q must be positive", s)
	}

	g := Gap{N: n}
	switch {
	case timePart && unit == "H":
		g.Unit = Hour
	case timePart && unit == "M":
		g.Unit = Minute
	case timePart:
		g.Unit = Second
	case unit == "Y":
		g.Unit = Year
	case unit == "M":
		g.Unit = Month
	case unit == "W":
		g.Unit = Week
	default:
		g.Unit = Day
	}
	return g, nil
}

// Solr renders "+NUNITS". Solr has no week unit, so weeks become days.
func (g Gap) Solr() string {
	n, unit := g.N, ""
	switch g.Unit {
	case Second:
		unit = "SECONDS"
	case Minute:
		unit = "MINUTES"
	case Hour:
		unit = "HOURS"
	case Day:
		unit = "DAYS"
	case Week:
		n, unit = g.N*7, "DAYS"
	case Month:
		unit = "MONTHS"
	case Year:
		unit = "YEARS"
	}
	return fmt.Sprintf("+%d%s", n, unit)
}

// Elastic renders the date_histogram interval ("6d", "1M").
func (g Gap) Elastic() string {
	suffix := map[GapUnit]string{
		Second: "s", Minute: "m", Hour: "h", Day: "d", Week: "w", Month: "M", Year: "y",
	}[g.Unit]
	return fmt.Sprintf("%d%s", g.N, suffix)
}

// ISO renders the ISO-8601 form ("P6D").
func (g Gap) ISO() string {
	switch g.Unit {
	case Second:
		return fmt.Sprintf("PT%dS", g.N)
	case Minute:
		return fmt.Sprintf("PT%dM", g.N)
	case Hour:
		return fmt.Sprintf("PT%dH", g.N)
	case Week:
		return fmt.Sprintf("P%dW", g.N)
	case Month:
		return fmt.Sprintf("P%dM", g.N)
	case Year:
		return fmt.Sprintf("P%dY", g.N)
	default:
		return fmt.Sprintf("P%dD", g.N)
	}
}

// GapToSolr converts an ISO-8601 gap to Solr syntax.
func GapToSolr(iso string) (string, error) {
	g, err := ParseISO8601Gap(iso)
	if err != nil {
		return "", err
	}
	return g.Solr(), nil
}

// GapToElastic converts an ISO-8601 gap to an Elasticsearch interval.
func GapToElastic(iso string) (string, error) {
	g, err := ParseISO8601Gap(iso)
	if err != nil {
		return "", err
	}
	return g.Elastic(), nil
}

// ComputeGap splits r into about limit buckets of whole days. Ranges with
// a BCE end get BCEGap. Both ends must be bound.
func ComputeGap(r TimeRange, limit int) (Gap, error) {
	if limit <= 0 {
		return Gap{}, BadRequest("a_time_limit must be positive")
	}
	if r.Open() {
		return Gap{}, BadRequest("time range %s is open; set a_time_gap or bound both ends", r)
	}
	if r.HasBCE() {
		return BCEGap, nil
	}
	days := daysBetween(r.Start.Time, r.End.Time)
	n := int(math.Ceil(float64(days) / float64(limit)))
	return Gap{N: max(n, 1), Unit: Day}, nil
}

// MaxHeatmapCells bounds columns*rows of a heatmap grid. It matches Solr's
// facet.heatmap.maxCells default so both engines agree on the ceiling.
const MaxHeatmapCells = 100000

// HeatmapDistErr approximates the cell size giving about limit cells over
// box: the mean side length divided by sqrt(limit).
func HeatmapDistErr(box geo.BBox, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return box.Perimeter() / 4 / math.Sqrt(float64(limit))
}
