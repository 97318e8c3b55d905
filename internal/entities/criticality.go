// Package entities contains the core domain objects for the allerta-bot application
package entities

import "strings"

// Criticality is the severity level assigned to an alert zone
type Criticality string

const (
	Green  Criticality = "green"
	Yellow Criticality = "yellow"
	Orange Criticality = "orange"
	Red    Criticality = "red"
)

// Criticalities lists every level in ascending order of severity
var Criticalities = []Criticality{Green, Yellow, Orange, Red}

// Score returns 0 for green up to 3 for red. Unknown values score as green.
func (c Criticality) Score() int {
	switch c {
	case Yellow:
		return 1
	case Orange:
		return 2
	case Red:
		return 3
	default:
		return 0
	}
}

// Emoji returns the traffic-light icon used in notifications
func (c Criticality) Emoji() string {
	switch c {
	case Green:
		return "🟢"
	case Yellow:
		return "🟡"
	case Orange:
		return "🟠"
	case Red:
		return "🔴"
	default:
		return "⚪"
	}
}

// WebColor returns the fill colour used by the map layers
func (c Criticality) WebColor() string {
	switch c {
	case Yellow:
		return "#ffff00"
	case Orange:
		return "#ff9900"
	case Red:
		return "#ff0000"
	default:
		return "#00ff00"
	}
}

// Label returns the upper-case name shown in messages
func (c Criticality) Label() string {
	if c == "" {
		return strings.ToUpper(string(Green))
	}
	return strings.ToUpper(string(c))
}

// Valid reports whether c belongs to the closed set of levels
func (c Criticality) Valid() bool {
	for _, known := range Criticalities {
		if c == known {
			return true
		}
	}
	return false
}

// MaxCriticality returns the most severe of the given levels (green when empty)
func MaxCriticality(levels ...Criticality) Criticality {
	max := Green
	for _, level := range levels {
		if level.Score() > max.Score() {
			max = level
		}
	}
	return max
}
