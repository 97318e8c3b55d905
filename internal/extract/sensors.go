package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/normalize"
)

var clockOnly = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// ParseSensorTable reads one category page of the real-time sensor network.
// The first table with more than MinRows rows is used, or failing that the
// largest one. A time cell holding only HH:MM is prefixed with refDate.
func ParseSensorTable(doc *goquery.Document, layout SensorLayout, cat entities.SensorCategory, refDate string) ([]entities.SensorReading, error) {
	table := sensorTable(doc, layout.MinRows)
	if table == nil {
		return nil, &entities.ParseError{Source: "sensors/" + cat.Key, Reason: "no data table"}
	}
	idRe, err := regexp.Compile(layout.IDPattern)
	if err != nil {
		return nil, &entities.ParseError{Source: "sensors/" + cat.Key, Reason: "invalid id pattern", Err: err}
	}

	maxCol := max(layout.NameColumn, layout.TimeColumn, layout.ValueColumn)
	var out []entities.SensorReading
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() <= maxCol {
			return
		}
		nameCell := tds.Eq(layout.NameColumn)
		name := normalize.CleanText(nameCell.Text())
		if name == "" || isHeaderName(name, layout.HeaderNames) {
			return
		}
		value, ok := normalize.ParseReading(tds.Eq(layout.ValueColumn).Text())
		if !ok {
			return
		}

		ts := normalize.CleanText(tds.Eq(layout.TimeColumn).Text())
		if clockOnly.MatchString(ts) && refDate != "" {
			ts = refDate + " " + ts
		}

		var id string
		tr.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if m := idRe.FindStringSubmatch(href); len(m) > 1 {
				id = m[1]
				return false
			}
			return true
		})

		out = append(out, entities.SensorReading{
			ID:     id,
			Name:   name,
			Time:   ts,
			Value:  value,
			Status: cat.StatusFor(value),
		})
	})
	return out, nil
}

func sensorTable(doc *goquery.Document, minRows int) *goquery.Selection {
	var best *goquery.Selection
	bestRows := 0
	var first *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		rows := t.Find("tr").Length()
		if rows > minRows {
			first = t
			return false
		}
		if rows > bestRows {
			best, bestRows = t, rows
		}
		return true
	})
	if first != nil {
		return first
	}
	return best
}

func isHeaderName(name string, headers []string) bool {
	for _, h := range headers {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

// ParseStationList collects the stations linked from a listing page. Links
// whose label is a reading ("4,5 mm") rather than a name are skipped.
// Duplicates keep their first position.
func ParseStationList(doc *goquery.Document, layout SensorLayout) []entities.Station {
	idRe, err := regexp.Compile(layout.IDPattern)
	if err != nil {
		return nil
	}
	seen := map[entities.Station]bool{}
	var out []entities.Station
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := idRe.FindStringSubmatch(href)
		if len(m) < 2 {
			return
		}
		label := normalize.CleanText(a.Text())
		if label == "" || isReadingLabel(label, layout.StationUnits) {
			return
		}
		s := entities.Station{ID: m[1], Name: label}
		if seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	})
	return out
}

func isReadingLabel(label string, units []string) bool {
	if _, ok := normalize.ParseReading(label); !ok {
		return false
	}
	lower := strings.ToLower(label)
	for _, u := range units {
		if strings.HasSuffix(lower, strings.TrimSpace(u)) {
			return true
		}
	}
	return false
}

// ParseHistoryValues returns the numeric readings of a station detail page,
// newest first as printed.
func ParseHistoryValues(doc *goquery.Document, layout SensorLayout) []float64 {
	var values []float64
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() <= layout.HistoryColumn {
			return
		}
		if v, ok := normalize.ParseReading(tds.Eq(layout.HistoryColumn).Text()); ok {
			values = append(values, v)
		}
	})
	return values
}

// RainfallWindowsFrom sums the first 4, 12, 24, 48 and 96 readings. The
// readings are 15 minute steps so these are the 1h to 24h accumulations.
// A shorter series sums what is available.
func RainfallWindowsFrom(values []float64) entities.RainfallWindows {
	sum := func(n int) float64 {
		if n > len(values) {
			n = len(values)
		}
		total := 0.0
		for _, v := range values[:n] {
			total += v
		}
		return normalize.Round(total, 1)
	}
	return entities.RainfallWindows{
		H1:  sum(4),
		H3:  sum(12),
		H6:  sum(24),
		H12: sum(48),
		H24: sum(96),
	}
}

// ParseStationCoordinates reads latitude and longitude from a station page.
// Coordinates are printed in degrees, minutes and seconds.
func ParseStationCoordinates(doc *goquery.Document, layout StationLayout) (lat, lon float64, ok bool) {
	latText := labelledValue(doc, layout.LatLabel)
	lonText := labelledValue(doc, layout.LonLabel)
	lat, okLat := normalize.DMSToDecimal(latText)
	lon, okLon := normalize.DMSToDecimal(lonText)
	return lat, lon, okLat && okLon
}

func labelledValue(doc *goquery.Document, label string) string {
	var value string
	doc.Find("th, td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(cell.Text()), strings.ToLower(label)) {
			return true
		}
		next := cell.NextFiltered("td")
		if next.Length() == 0 {
			return true
		}
		value = normalize.CleanText(next.Text())
		return false
	})
	return value
}

// FindBulletinLink returns the first link on the listing page pointing to a
// bulletin PDF, resolved against base.
func FindBulletinLink(doc *goquery.Document, base *url.URL, layout ListingLayout) (string, bool) {
	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !strings.Contains(href, layout.LinkMarker) {
			return true
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		link = base.ResolveReference(ref).String()
		return false
	})
	return link, link != ""
}
