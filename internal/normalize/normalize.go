// Package normalize maps raw tokens scraped from bulletins and sensor pages
// to canonical values.
//
// Every function here follows the same policy: tokens that cannot be
// recognized collapse to the lowest-severity value (green, 0.0) instead of
// failing. Callers that need to tell "absent" from "zero" use the variants
// returning an ok flag.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/abelzeko/allerta-bot/internal/entities"
)

// colorKeywords is checked from the most to the least severe level
var colorKeywords = []struct {
	level    entities.Criticality
	keywords []string
}{
	{entities.Red, []string{"ROSS", "ELEVAT"}},
	{entities.Orange, []string{"ARANC", "MODERAT"}},
	{entities.Yellow, []string{"GIALL", "ORDINARI"}},
}

// Color maps an Italian colour or criticality keyword to a level.
// ROSSA/ELEVATA → red, ARANCIONE/MODERATA → orange, GIALLA/ORDINARIA → yellow,
// anything else (VERDE, ASSENZA, empty) → green.
func Color(token string) entities.Criticality {
	t := strings.ToUpper(CleanText(token))
	if t == "" {
		return entities.Green
	}
	for _, ck := range colorKeywords {
		for _, kw := range ck.keywords {
			if strings.Contains(t, kw) {
				return ck.level
			}
		}
	}
	return entities.Green
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CleanText replaces non-breaking spaces, collapses runs of whitespace and trims
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

var numberToken = regexp.MustCompile(`[-+]?\d[\d.,]*`)

// ParseItalianNumber parses a number written with '.' as thousands separator
// and ',' as decimal separator, ignoring surrounding units.
func ParseItalianNumber(s string) (float64, error) {
	tok := numberToken.FindString(strings.ReplaceAll(CleanText(s), " ", ""))
	if tok == "" {
		return 0, strconv.ErrSyntax
	}
	tok = strings.ReplaceAll(tok, ".", "")
	tok = strings.Replace(tok, ",", ".", 1)
	tok = strings.TrimSuffix(tok, ".")
	return strconv.ParseFloat(tok, 64)
}

// CleanNumeric is ParseItalianNumber with the 0.0 default for unparseable input.
// "1.234,56" → 1234.56, "60.143.000" → 60143000.
func CleanNumeric(s string) float64 {
	v, err := ParseItalianNumber(s)
	if err != nil {
		return 0
	}
	return v
}

var readingToken = regexp.MustCompile(`[-+]?\d*\.?\d+`)

// ParseReading parses a sensor value such as "4,5 mm" or "0.5". Values that
// carry both separators are read with the Italian convention.
func ParseReading(s string) (float64, bool) {
	s = CleanText(s)
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		v, err := ParseItalianNumber(s)
		return v, err == nil
	}
	tok := readingToken.FindString(strings.ReplaceAll(s, ",", "."))
	if tok == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var dmsRegex = regexp.MustCompile(`(\d+)\D+(\d+)\D+(\d+(?:[.,]\d+)?)`)

// DMSToDecimal converts a coordinate such as 40° 9' 39" N to decimal degrees,
// rounded to six places. Southern and western hemispheres are negative.
func DMSToDecimal(dms string) (float64, bool) {
	clean := CleanText(dms)
	m := dmsRegex.FindStringSubmatch(clean)
	if m == nil {
		return 0, false
	}
	deg, _ := strconv.ParseFloat(m[1], 64)
	min, _ := strconv.ParseFloat(m[2], 64)
	sec, _ := strconv.ParseFloat(strings.Replace(m[3], ",", ".", 1), 64)

	decimal := Round(deg+min/60+sec/3600, 6)
	upper := strings.ToUpper(clean)
	if strings.HasSuffix(upper, "S") || strings.HasSuffix(upper, "W") {
		decimal = -decimal
	}
	return decimal, true
}

// Round rounds x to the given number of decimal places
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

var dangerWords = []struct {
	word  string
	level int
}{
	{"MOLTO FORTE", 5},
	{"FORTE", 4},
	{"MARCATO", 3},
	{"MODERATO", 2},
	{"DEBOLE", 1},
}

var dangerLabels = map[int]string{
	1: "Debole",
	2: "Moderato",
	3: "Marcato",
	4: "Forte",
	5: "Molto forte",
}

var leadingDigit = regexp.MustCompile(`^\D*([1-5])\b`)

// DangerLevel maps an avalanche danger token ("3", "3 - Marcato", "MARCATO")
// to the European scale 1..5 and its Italian label. Unknown tokens give 0.
func DangerLevel(token string) (int, string) {
	t := strings.ToUpper(CleanText(token))
	if m := leadingDigit.FindStringSubmatch(t); m != nil {
		level, _ := strconv.Atoi(m[1])
		return level, dangerLabels[level]
	}
	for _, dw := range dangerWords {
		if strings.Contains(t, dw.word) {
			return dw.level, dangerLabels[dw.level]
		}
	}
	return 0, entities.NotAvailable
}

var unitSuffix = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]\s*$`)

// StationName cleans a station label scraped from a listing, dropping a
// trailing bracketed unit such as "(mm)" or "[m]".
func StationName(s string) string {
	s = CleanText(s)
	s = unitSuffix.ReplaceAllString(s, "")
	return strings.TrimRight(s, " -:")
}
