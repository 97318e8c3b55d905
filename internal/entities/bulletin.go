package entities

import (
	"sort"
	"time"
)

// NotAvailable is written in place of fields the bulletin did not provide
const NotAvailable = "N/D"

// NoSignificantRisk is the description used for zones without any risk column set
const NoSignificantRisk = "Assenza di fenomeni significativi"

// BulletinDateLayout is the DD/MM/YYYY format printed on bulletins
const BulletinDateLayout = "02/01/2006"

// ZoneRisk holds today's and tomorrow's level for one alert zone
type ZoneRisk struct {
	Today        Criticality `json:"oggi"`
	TodayRisk    string      `json:"rischio_oggi"`
	Tomorrow     Criticality `json:"domani"`
	TomorrowRisk string      `json:"rischio_domani"`
}

// NewZoneRisk returns the defaults used when a zone is first seen
func NewZoneRisk() ZoneRisk {
	return ZoneRisk{
		Today:        Green,
		TodayRisk:    NotAvailable,
		Tomorrow:     Green,
		TomorrowRisk: NotAvailable,
	}
}

// Bulletin is the criticality bulletin published by the regional functional centre
type Bulletin struct {
	LastUpdate    string              `json:"ultimo_aggiornamento"`
	URL           string              `json:"url_bollettino"`
	ValidityStart string              `json:"validita_inizio"`
	ValidityEnd   string              `json:"validita_fine"`
	Date          string              `json:"data_bollettino"`
	Zones         map[string]ZoneRisk `json:"zone"`
}

// ZoneNames returns the zone names in alphabetical order
func (b Bulletin) ZoneNames() []string {
	names := make([]string, 0, len(b.Zones))
	for name := range b.Zones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MaxToday returns the most severe level across all zones for today
func (b Bulletin) MaxToday() Criticality {
	max := Green
	for _, z := range b.Zones {
		max = MaxCriticality(max, z.Today)
	}
	return max
}

// MaxTomorrow returns the most severe level across all zones for tomorrow
func (b Bulletin) MaxTomorrow() Criticality {
	max := Green
	for _, z := range b.Zones {
		max = MaxCriticality(max, z.Tomorrow)
	}
	return max
}

// IssueDate parses the bulletin date in the given location
func (b Bulletin) IssueDate(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(BulletinDateLayout, b.Date, loc)
}

// ArchivedBulletin is the per-day file stored under data/YYYY/MM/DD.json
type ArchivedBulletin struct {
	Date  string              `json:"date"`
	Zones map[string]ZoneRisk `json:"zones"`
}

// IndexEntry is one row of data/index.json
type IndexEntry struct {
	Day            string      `json:"d"`
	File           string      `json:"f"`
	MaxCriticality Criticality `json:"max_criticality"`
}
