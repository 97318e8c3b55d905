package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/normalize"
)

// ParseBulletin extracts the criticality bulletin from a PDF. Table layouts
// are tried first, then the text layouts. The result carries the download
// URL and the given timestamp as last update.
func ParseBulletin(data []byte, layouts Layouts, url string, now time.Time) (entities.Bulletin, error) {
	doc, err := ReadPDF(data)
	if err != nil {
		return entities.Bulletin{}, err
	}
	return BulletinFromDocument(doc, layouts, url, now)
}

// BulletinFromDocument is ParseBulletin over an already decoded PDF
func BulletinFromDocument(doc PDFDocument, layouts Layouts, url string, now time.Time) (entities.Bulletin, error) {
	b := entities.Bulletin{
		LastUpdate:    now.Format("02/01/2006 15:04"),
		URL:           url,
		ValidityStart: entities.NotAvailable,
		ValidityEnd:   entities.NotAvailable,
		Date:          now.Format(entities.BulletinDateLayout),
	}

	text := doc.Text()
	candidates := append(layouts.BulletinCandidates(now, ModeTable), layouts.BulletinCandidates(now, ModeText)...)
	if len(candidates) == 0 {
		return b, &entities.ParseError{Source: "bulletin", Reason: "no bulletin layout configured"}
	}
	if err := readHeader(&b, firstPageText(doc), candidates[0]); err != nil {
		return b, err
	}

	for _, layout := range candidates {
		var zones map[string]entities.ZoneRisk
		var err error
		switch layout.Mode {
		case ModeTable:
			zones, err = zonesFromDocument(doc, layout)
		case ModeText:
			zones, err = ZonesFromText(text, layout)
		default:
			err = fmt.Errorf("unknown layout mode %q", layout.Mode)
		}
		if err != nil {
			return b, &entities.ParseError{Source: "bulletin", Reason: "layout " + layout.Version, Err: err}
		}
		if len(zones) > 0 {
			b.Zones = zones
			return b, nil
		}
	}
	return b, &entities.ParseError{Source: "bulletin", Reason: "no zone found in document"}
}

func firstPageText(doc PDFDocument) string {
	if len(doc.Pages) == 0 {
		return ""
	}
	return PDFDocument{Pages: doc.Pages[:1]}.Text()
}

func readHeader(b *entities.Bulletin, text string, layout BulletinLayout) error {
	fields := []struct {
		pattern string
		dst     *string
	}{
		{layout.ValidityStart, &b.ValidityStart},
		{layout.ValidityEnd, &b.ValidityEnd},
		{layout.DatePattern, &b.Date},
	}
	for _, f := range fields {
		if f.pattern == "" {
			continue
		}
		re, err := regexp.Compile(f.pattern)
		if err != nil {
			return &entities.ParseError{Source: "bulletin", Reason: "invalid header pattern", Err: err}
		}
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			if v := normalize.CleanText(m[1]); v != "" {
				*f.dst = v
			}
		}
	}
	return nil
}

// zonesFromDocument aligns the zone rows of every page on their columns
// before reading them, so a blank risk cell does not shift the ones after it.
func zonesFromDocument(doc PDFDocument, layout BulletinLayout) (map[string]entities.ZoneRisk, error) {
	zoneRe, err := regexp.Compile(layout.ZonePattern)
	if err != nil {
		return nil, err
	}
	isZone := func(row []Cell) bool {
		return len(row) > 0 && zoneName(row[0].Text, zoneRe) != ""
	}
	return ZonesFromRows(doc.Table(layout.RowTolerance, layout.CellGap, isZone), layout)
}

// ZonesFromRows reads the zone tables out of the rows of a PDF. Risk columns
// are read by index, so rows must keep blank cells as "".
func ZonesFromRows(rows [][]string, layout BulletinLayout) (map[string]entities.ZoneRisk, error) {
	zoneRe, err := regexp.Compile(layout.ZonePattern)
	if err != nil {
		return nil, err
	}
	return ZonesFromTables(SplitZoneTables(rows, zoneRe), layout)
}

// SplitZoneTables cuts a row stream into tables of zone rows. A table ends
// when a zone already seen in it shows up again.
func SplitZoneTables(rows [][]string, zoneRe *regexp.Regexp) [][][]string {
	var tables [][][]string
	var cur [][]string
	seen := map[string]bool{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		name := zoneName(row[0], zoneRe)
		if name == "" {
			continue
		}
		if seen[name] {
			tables = append(tables, cur)
			cur = nil
			seen = map[string]bool{}
		}
		seen[name] = true
		cur = append(cur, row)
	}
	if len(cur) > 0 {
		tables = append(tables, cur)
	}
	return tables
}

// ZonesFromTables fills today from the first table and tomorrow from the
// second. Rows whose first cell is not a zone are ignored.
func ZonesFromTables(tables [][][]string, layout BulletinLayout) (map[string]entities.ZoneRisk, error) {
	zoneRe, err := regexp.Compile(layout.ZonePattern)
	if err != nil {
		return nil, err
	}
	days := layout.Days
	if days <= 0 {
		days = 2
	}

	zones := map[string]entities.ZoneRisk{}
	for day, table := range tables {
		if day >= days {
			break
		}
		for _, row := range table {
			if len(row) == 0 {
				continue
			}
			name := zoneName(row[0], zoneRe)
			if name == "" {
				continue
			}
			level, desc := AnalyzeRiskRow(row, layout.RiskColumns)
			z, ok := zones[name]
			if !ok {
				z = entities.NewZoneRisk()
			}
			if day == 0 {
				z.Today, z.TodayRisk = level, desc
			} else {
				z.Tomorrow, z.TomorrowRisk = level, desc
			}
			zones[name] = z
		}
	}
	return zones, nil
}

// AnalyzeRiskRow returns the most severe level across the risk columns and
// the labels of the columns at that level joined by " + ".
func AnalyzeRiskRow(row []string, columns []RiskColumn) (entities.Criticality, string) {
	max := entities.Green
	var labels []string
	for _, col := range columns {
		if col.Index >= len(row) {
			continue
		}
		level := normalize.Color(row[col.Index])
		switch {
		case level.Score() > max.Score():
			max = level
			labels = []string{col.Label}
		case level == max && level != entities.Green:
			labels = append(labels, col.Label)
		}
	}
	if max == entities.Green {
		return max, entities.NoSignificantRisk
	}
	return max, strings.Join(labels, " + ")
}

func zoneName(cell string, zoneRe *regexp.Regexp) string {
	m := zoneRe.FindString(normalize.CleanText(cell))
	if m == "" {
		return ""
	}
	m = strings.ToUpper(strings.ReplaceAll(m, "-", " "))
	return normalize.CleanText(m)
}

// ZonesFromText reads today's level of every known zone from the plain
// text of older bulletins. Zones not mentioned stay green.
func ZonesFromText(text string, layout BulletinLayout) (map[string]entities.ZoneRisk, error) {
	text = normalize.CleanText(text)
	if layout.DaySplit != "" {
		split, err := regexp.Compile(layout.DaySplit)
		if err != nil {
			return nil, err
		}
		if loc := split.FindStringIndex(text); loc != nil {
			text = text[:loc[0]]
		}
	}
	window := layout.Window
	if window <= 0 {
		window = 30
	}

	zones := map[string]entities.ZoneRisk{}
	found := false
	for _, zone := range layout.Zones {
		re, err := regexp.Compile(fmt.Sprintf(`(?i)%s\s*(?:[:\-\s]+)?\s*([A-Z\s]{1,%d})`, regexp.QuoteMeta(zone), window))
		if err != nil {
			return nil, err
		}
		z := entities.NewZoneRisk()
		if m := re.FindStringSubmatch(text); m != nil {
			found = true
			z.Today = normalize.Color(m[1])
			if z.Today == entities.Green {
				z.TodayRisk = entities.NoSignificantRisk
			} else {
				z.TodayRisk = entities.NotAvailable
			}
		}
		zones[zone] = z
	}
	if !found {
		return nil, nil
	}
	return zones, nil
}
