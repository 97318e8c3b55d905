package extract

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/ledongthuc/pdf"
)

// PDFPage is the positioned text of one page
type PDFPage struct {
	Number int
	Runs   []pdf.Text
	Plain  string
}

// PDFDocument is the text content of a PDF file
type PDFDocument struct {
	Pages []PDFPage
}

// ReadPDF loads every page's text runs. The PDF library panics on some
// malformed inputs, those panics come back as a ParseError.
func ReadPDF(data []byte) (doc PDFDocument, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &entities.ParseError{Source: "pdf", Reason: "malformed document", Err: fmt.Errorf("%v", r)}
		}
	}()

	if len(data) == 0 {
		return doc, &entities.ParseError{Source: "pdf", Reason: "empty document"}
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return doc, &entities.ParseError{Source: "pdf", Reason: "cannot open document", Err: err}
	}

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		page := PDFPage{Number: i, Runs: pageRuns(p)}
		if plain, err := p.GetPlainText(nil); err == nil {
			page.Plain = plain
		}
		doc.Pages = append(doc.Pages, page)
	}
	if len(doc.Pages) == 0 {
		return doc, &entities.ParseError{Source: "pdf", Reason: "no pages"}
	}
	return doc, nil
}

func pageRuns(p pdf.Page) (runs []pdf.Text) {
	defer func() {
		if recover() != nil {
			runs = nil
		}
	}()
	return p.Content().Text
}

// Rows returns the rows of every page in reading order
func (d PDFDocument) Rows(tolerance, gap float64) [][]string {
	var rows [][]string
	for _, p := range d.Pages {
		rows = append(rows, Rows(p.Runs, tolerance, gap)...)
	}
	return rows
}

// Table is Rows with the rows accepted by keep aligned on the columns of the
// page they are on. A blank cell in a kept row comes back as "" so the cells
// after it keep their index.
func (d PDFDocument) Table(tolerance, gap float64, keep func([]Cell) bool) [][]string {
	var rows [][]string
	for _, p := range d.Pages {
		page := CellRows(p.Runs, tolerance, gap)
		cols := Columns(page, keep)
		for _, row := range page {
			if keep(row) {
				rows = append(rows, Align(row, cols))
			} else {
				rows = append(rows, texts(row))
			}
		}
	}
	return rows
}

// Text returns the document text one line per row. Pages without
// positioned runs fall back to the library's plain text.
func (d PDFDocument) Text() string {
	var sb strings.Builder
	for _, p := range d.Pages {
		rows := Rows(p.Runs, 2.0, 1.0)
		if len(rows) == 0 {
			sb.WriteString(p.Plain)
			sb.WriteString("\n")
			continue
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, " "))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Cell is the text of a table cell and its horizontal extent
type Cell struct {
	X, End float64
	Text   string
}

func (c Cell) center() float64 { return (c.X + c.End) / 2 }

func texts(row []Cell) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = c.Text
	}
	return out
}

// Rows groups glyph runs into table rows. Runs whose baselines are within
// tolerance points share a row; inside a row a horizontal gap wider than
// gap times the font size starts a new cell.
func Rows(runs []pdf.Text, tolerance, gap float64) [][]string {
	var rows [][]string
	for _, row := range CellRows(runs, tolerance, gap) {
		rows = append(rows, texts(row))
	}
	return rows
}

// CellRows is Rows keeping the position of every cell
func CellRows(runs []pdf.Text, tolerance, gap float64) [][]Cell {
	glyphs := make([]pdf.Text, 0, len(runs))
	for _, r := range runs {
		if r.S != "" {
			glyphs = append(glyphs, r)
		}
	}
	if len(glyphs) == 0 {
		return nil
	}
	// PDF y grows upwards
	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].Y > glyphs[j].Y })

	var rows [][]Cell
	start := 0
	for i := 1; i <= len(glyphs); i++ {
		if i < len(glyphs) && math.Abs(glyphs[i].Y-glyphs[start].Y) <= tolerance {
			continue
		}
		if cells := splitCells(glyphs[start:i], gap); len(cells) > 0 {
			rows = append(rows, cells)
		}
		start = i
	}
	return rows
}

func splitCells(line []pdf.Text, gap float64) []Cell {
	line = append([]pdf.Text(nil), line...)
	sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })

	var cells []Cell
	var cur strings.Builder
	cell := Cell{X: line[0].X}
	flush := func(next float64) {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			cell.Text = s
			cells = append(cells, cell)
		}
		cur.Reset()
		cell = Cell{X: next}
	}

	prevEnd := line[0].X
	for i, g := range line {
		size := g.FontSize
		if size <= 0 {
			size = 1
		}
		if i > 0 {
			space := g.X - prevEnd
			switch {
			case space > gap*size:
				flush(g.X)
			case space > 0.2*size:
				cur.WriteString(" ")
			}
		}
		cur.WriteString(g.S)
		prevEnd = math.Max(prevEnd, g.X+g.W)
		cell.End = prevEnd
	}
	flush(0)
	return cells
}

// Columns merges the cells of the rows accepted by keep into column
// extents, left to right. Cells whose extents overlap share a column, so
// centered and left aligned text both land in the right one. A column that
// is blank in every kept row cannot be seen and is missing from the result.
func Columns(rows [][]Cell, keep func([]Cell) bool) []Cell {
	var spans []Cell
	for _, row := range rows {
		if keep(row) {
			spans = append(spans, row...)
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].X < spans[j].X })

	var cols []Cell
	for _, s := range spans {
		if n := len(cols); n > 0 && s.X <= cols[n-1].End {
			cols[n-1].End = math.Max(cols[n-1].End, s.End)
			continue
		}
		cols = append(cols, Cell{X: s.X, End: s.End})
	}
	return cols
}

// Align places the cells of row into cols by the column nearest to each
// cell's center. Empty slots stay "".
func Align(row []Cell, cols []Cell) []string {
	if len(cols) == 0 {
		return texts(row)
	}
	out := make([]string, len(cols))
	for _, c := range row {
		best, dist := 0, math.Inf(1)
		for i, col := range cols {
			if d := math.Abs(c.center() - col.center()); d < dist {
				best, dist = i, d
			}
		}
		if out[best] != "" {
			out[best] += " "
		}
		out[best] += c.Text
	}
	return out
}
