package dates

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Dynasty is a named historical period with its year span.
type Dynasty struct {
	Name  string
	Start int
	End   int
}

// Range renders the dynasty as "[start TO end]".
func (d Dynasty) Range() string {
	return fmt.Sprintf("[%s TO %s]", FormatYear(d.Start), FormatYear(d.End))
}

var dynasties = []Dynasty{
	{Name: "Xia", Start: -2070, End: -1600},
	{Name: "Shang", Start: -1600, End: -1046},
	{Name: "Zhou", Start: -1046, End: -256},
	{Name: "Qin", Start: -221, End: -206},
	{Name: "Han", Start: -206, End: 220},
	{Name: "Jin", Start: 266, End: 420},
	{Name: "Sui", Start: 581, End: 618},
	{Name: "Tang", Start: 618, End: 907},
	{Name: "Liao", Start: 907, End: 1125},
	{Name: "Song", Start: 960, End: 1279},
	{Name: "Yuan", Start: 1271, End: 1368},
	{Name: "Ming", Start: 1368, End: 1644},
	{Name: "Qing", Start: 1644, End: 1912},
	{Name: "Joseon", Start: 1392, End: 1897},
	{Name: "Goryeo", Start: 918, End: 1392},
	{Name: "Tokugawa", Start: 1603, End: 1868},
	{Name: "Mughal", Start: 1526, End: 1857},
	{Name: "Ottoman", Start: 1299, End: 1922},
	{Name: "Safavid", Start: 1501, End: 1736},
	{Name: "Abbasid", Start: 750, End: 1258},
	{Name: "Umayyad", Start: 661, End: 750},
	{Name: "Byzantine", Start: 330, End: 1453},
}

// LookupDynasties intersects the words of text with the dynasty table.
// Matching is case-insensitive; results follow table order.
func LookupDynasties(text string) []Dynasty {
	folder := cases.Fold()
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) }) {
		words[folder.String(w)] = struct{}{}
	}
	if len(words) == 0 {
		return nil
	}

	var out []Dynasty
	for _, d := range dynasties {
		if _, ok := words[folder.String(d.Name)]; ok {
			out = append(out, d)
		}
	}
	return out
}
