// Package extract turns raw upstream documents (bulletin PDFs, HTML tables,
// JSON feeds) into domain entities. Everything that depends on the shape of
// an upstream page is described by a Layout so that a format change means a
// new layout entry rather than a code change.
package extract

import (
	"sort"
	"time"
)

// Bulletin extraction modes
const (
	ModeTable = "table"
	ModeText  = "text"
)

// RiskColumn is one risk column of the zone table
type RiskColumn struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// BulletinLayout describes one version of the criticality bulletin PDF
type BulletinLayout struct {
	Version string `json:"version"`
	// Since is the first issue date (YYYY-MM-DD) the layout applies to.
	Since string `json:"since"`
	Mode  string `json:"mode"`

	ZonePattern string       `json:"zone_pattern"`
	RiskColumns []RiskColumn `json:"risk_columns"`
	// Days is the number of zone tables read, today first.
	Days int `json:"days"`
	// CellGap is the horizontal gap, in font sizes, that separates two cells.
	CellGap      float64 `json:"cell_gap"`
	RowTolerance float64 `json:"row_tolerance"`

	Zones    []string `json:"zones"`
	DaySplit string   `json:"day_split"`
	Window   int      `json:"window"`

	ValidityStart string `json:"validity_start"`
	ValidityEnd   string `json:"validity_end"`
	DatePattern   string `json:"date_pattern"`
}

// ColumnSpec locates a column by header keywords, falling back to positions
type ColumnSpec struct {
	Anchors    []string `json:"anchors"`
	Candidates []int    `json:"candidates"`
}

// DamLayout describes the reservoir availability table
type DamLayout struct {
	Version       string     `json:"version"`
	TableSelector string     `json:"table_selector"`
	MinCells      int        `json:"min_cells"`
	SkipNames     []string   `json:"skip_names"`
	Name          ColumnSpec `json:"name"`
	Capacity      ColumnSpec `json:"capacity"`
	Volume        ColumnSpec `json:"volume"`
	Fill          ColumnSpec `json:"fill"`
	Rainfall      ColumnSpec `json:"rainfall"`
	DatePattern   string     `json:"date_pattern"`
}

// SensorLayout describes the real-time sensor tables
type SensorLayout struct {
	Version       string   `json:"version"`
	MinRows       int      `json:"min_rows"`
	NameColumn    int      `json:"name_column"`
	TimeColumn    int      `json:"time_column"`
	ValueColumn   int      `json:"value_column"`
	HeaderNames   []string `json:"header_names"`
	IDPattern     string   `json:"id_pattern"`
	HistoryColumn int      `json:"history_column"`
	// StationUnits are the unit suffixes of readings that leak into station
	// link labels on the listing page ("mm", " m", "°c").
	StationUnits []string `json:"station_units"`
}

// StationLayout describes the station detail page
type StationLayout struct {
	LatLabel string `json:"lat_label"`
	LonLabel string `json:"lon_label"`
}

// ListingLayout describes the bulletin listing page
type ListingLayout struct {
	LinkMarker string `json:"link_marker"`
}

// Layouts is the full set of upstream page descriptions
type Layouts struct {
	Bulletins []BulletinLayout `json:"bulletins"`
	Dams      DamLayout        `json:"dams"`
	Sensors   SensorLayout     `json:"sensors"`
	Stations  StationLayout    `json:"stations"`
	Listing   ListingLayout    `json:"listing"`
}

var basilicataZones = []string{"BASI A1", "BASI A2", "BASI B", "BASI C", "BASI D", "BASI E1", "BASI E2"}

var bulletinHeader = BulletinLayout{
	ValidityStart: `(?i)Inizio\s+validit[àa][:.]?\s*(.*?)(?:\n|$)`,
	ValidityEnd:   `(?i)Fine\s+validit[àa][:.]?\s*(.*?)(?:\n|$)`,
	DatePattern:   `(?i)DEL\s+(\d{2}/\d{2}/\d{4})`,
}

// DefaultLayouts returns the layouts matching the pages as currently published
func DefaultLayouts() Layouts {
	table := bulletinHeader
	table.Version = "2020-table"
	table.Since = "2020-01-01"
	table.Mode = ModeTable
	table.ZonePattern = `(?i)^BASI[\s\-]*[A-E]\d?\b`
	table.RiskColumns = []RiskColumn{
		{Index: 1, Label: "Criticità Idrogeologica"},
		{Index: 2, Label: "Criticità Idrogeologica per Temporali"},
		{Index: 3, Label: "Criticità Idraulica"},
	}
	table.Days = 2
	table.CellGap = 1.0
	table.RowTolerance = 2.0

	text := bulletinHeader
	text.Version = "2016-text"
	text.Since = "2016-03-03"
	text.Mode = ModeText
	text.Zones = append([]string(nil), basilicataZones...)
	text.DaySplit = `(?i)DOMANI|validità`
	text.Window = 30

	return Layouts{
		Bulletins: []BulletinLayout{table, text},
		Dams: DamLayout{
			Version:       "adb-2019",
			TableSelector: `table[border="1"]`,
			MinCells:      4,
			SkipNames:     []string{"TOTAL"},
			Name:          ColumnSpec{Anchors: []string{"diga", "invaso"}, Candidates: []int{0}},
			Capacity:      ColumnSpec{Anchors: []string{"capacit", "autorizzat"}, Candidates: []int{1, 2}},
			Volume:        ColumnSpec{Anchors: []string{"volume", "invasato"}, Candidates: []int{2, 3, 4}},
			Fill:          ColumnSpec{Anchors: []string{"%", "riempimento", "percentual"}, Candidates: []int{3, 5}},
			Rainfall:      ColumnSpec{Anchors: []string{"pioggia", "precipitazion"}, Candidates: []int{6, 4}},
			DatePattern:   `(\d{2}/\d{2}/\d{4})`,
		},
		Sensors: SensorLayout{
			Version:       "cfd-2022",
			MinRows:       5,
			NameColumn:    0,
			TimeColumn:    1,
			ValueColumn:   2,
			HeaderNames:   []string{"Stazione", "Nome stazione", "Nome"},
			IDPattern:     `id=(\d+)`,
			HistoryColumn: 1,
			StationUnits:  []string{"mm", " m", "°c"},
		},
		Stations: StationLayout{LatLabel: "Latitudine", LonLabel: "Longitudine"},
		Listing:  ListingLayout{LinkMarker: "Bollettino_Criticita"},
	}
}

// BulletinCandidates returns the layouts of the given mode applicable to day,
// most recent first. When none starts on or before day every layout of that
// mode is returned in the same order.
func (l Layouts) BulletinCandidates(day time.Time, mode string) []BulletinLayout {
	var all []BulletinLayout
	for _, b := range l.Bulletins {
		if b.Mode == mode {
			all = append(all, b)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Since > all[j].Since })

	key := day.Format("2006-01-02")
	var applicable []BulletinLayout
	for _, b := range all {
		if b.Since == "" || b.Since <= key {
			applicable = append(applicable, b)
		}
	}
	if len(applicable) == 0 {
		return all
	}
	return applicable
}
