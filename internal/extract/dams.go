package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/normalize"
)

type damColumns struct {
	name, capacity, volume, fill, rainfall int
}

// ParseReservoirs reads the dam availability table. Columns are located by
// header keywords. A column named by the header is authoritative: a cell that
// does not hold a number there counts as missing. Only columns the header does
// not name fall back to the layout's candidate positions, skipping positions
// already taken by another field. fallbackDate is used
// when the page does not print a DD/MM/YYYY date.
func ParseReservoirs(doc *goquery.Document, layout DamLayout, fallbackDate string) ([]entities.Reservoir, error) {
	table := doc.Find(layout.TableSelector).First()
	if table.Length() == 0 {
		return nil, &entities.ParseError{Source: "dams", Reason: "table not found"}
	}

	date := fallbackDate
	if layout.DatePattern != "" {
		re, err := regexp.Compile(layout.DatePattern)
		if err != nil {
			return nil, &entities.ParseError{Source: "dams", Reason: "invalid date pattern", Err: err}
		}
		if m := re.FindStringSubmatch(doc.Text()); len(m) > 1 {
			date = m[1]
		}
	}

	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td, th").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, normalize.CleanText(td.Text()))
		})
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	})

	cols := damColumns{name: -1, capacity: -1, volume: -1, fill: -1, rainfall: -1}
	start := 0
	for i, row := range rows {
		if resolved, ok := resolveDamHeader(row, layout); ok {
			cols = resolved
			start = i + 1
			break
		}
	}

	claimed := cols.claimed()
	var out []entities.Reservoir
	for _, cells := range rows[start:] {
		if len(cells) < layout.MinCells {
			continue
		}
		name := pickText(cells, cols.name, layout.Name.Candidates, claimed)
		if name == "" || skipDamName(name, layout.SkipNames) {
			continue
		}
		capacity, okCap := pickNumber(cells, cols.capacity, layout.Capacity.Candidates, claimed)
		volume, okVol := pickNumber(cells, cols.volume, layout.Volume.Candidates, claimed)
		if !okCap && !okVol {
			continue
		}
		fill, okFill := pickNumber(cells, cols.fill, layout.Fill.Candidates, claimed)
		if (!okFill || fill == 0) && capacity > 0 {
			fill = normalize.Round(volume/capacity*100, 2)
		}
		rain, _ := pickNumber(cells, cols.rainfall, layout.Rainfall.Candidates, claimed)

		out = append(out, entities.Reservoir{
			DamName:        name,
			MaxCapacity:    capacity,
			CurrentVolume:  volume,
			FillPercentage: fill,
			RainfallMM:     rain,
			Date:           date,
		})
	}
	if len(out) == 0 {
		return nil, &entities.ParseError{Source: "dams", Reason: "no reservoir rows"}
	}
	return out, nil
}

func resolveDamHeader(row []string, layout DamLayout) (damColumns, bool) {
	claimed := map[int]bool{}
	find := func(anchors []string) int {
		for i, cell := range row {
			if claimed[i] {
				continue
			}
			lc := strings.ToLower(cell)
			for _, a := range anchors {
				if strings.Contains(lc, strings.ToLower(a)) {
					claimed[i] = true
					return i
				}
			}
		}
		return -1
	}
	cols := damColumns{
		name:     find(layout.Name.Anchors),
		capacity: find(layout.Capacity.Anchors),
		volume:   find(layout.Volume.Anchors),
		fill:     find(layout.Fill.Anchors),
		rainfall: find(layout.Rainfall.Anchors),
	}
	// a header row names the dam and at least one quantity
	return cols, cols.name >= 0 && (cols.capacity >= 0 || cols.volume >= 0)
}

// claimed returns the positions resolved from the header row
func (c damColumns) claimed() map[int]bool {
	out := map[int]bool{}
	for _, idx := range []int{c.name, c.capacity, c.volume, c.fill, c.rainfall} {
		if idx >= 0 {
			out[idx] = true
		}
	}
	return out
}

// positions lists the cells to try for a field: the header column alone
// when resolved, otherwise the unclaimed candidates
func positions(primary int, candidates []int, claimed map[int]bool) []int {
	if primary >= 0 {
		return []int{primary}
	}
	var out []int
	for _, idx := range candidates {
		if !claimed[idx] {
			out = append(out, idx)
		}
	}
	return out
}

func pickText(cells []string, primary int, candidates []int, claimed map[int]bool) string {
	for _, idx := range positions(primary, candidates, claimed) {
		if idx >= 0 && idx < len(cells) && cells[idx] != "" {
			return cells[idx]
		}
	}
	return ""
}

func pickNumber(cells []string, primary int, candidates []int, claimed map[int]bool) (float64, bool) {
	for _, idx := range positions(primary, candidates, claimed) {
		if idx < 0 || idx >= len(cells) {
			continue
		}
		if v, err := normalize.ParseItalianNumber(cells[idx]); err == nil {
			return v, true
		}
	}
	return 0, false
}

func skipDamName(name string, prefixes []string) bool {
	upper := strings.ToUpper(name)
	for _, p := range prefixes {
		if strings.HasPrefix(upper, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}
