// Package geo maps municipalities to alert zones and enriches the GeoJSON
// layers shown on the public map
package geo

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed comuni_zone.json
var defaultMunicipalities []byte

var (
	saintPrefix = regexp.MustCompile(`\bS(?:\.\s*|\s+)`)
	nonAlnum    = regexp.MustCompile(`[^A-Z0-9]`)
)

// Key normalizes a municipality name for lookups: accents folded, upper
// case, a standalone "S." or "S" expanded to SAN, everything but letters
// and digits removed.
func Key(name string) string {
	// a chain keeps state, build one per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}
	s := strings.ToUpper(strings.TrimSpace(folded))
	s = saintPrefix.ReplaceAllString(s, "SAN ")
	return nonAlnum.ReplaceAllString(s, "")
}

// Gazetteer maps municipalities to the alert zone they belong to
type Gazetteer struct {
	zones map[string]string
	names map[string]string
}

// NewGazetteer builds a gazetteer from a municipality name -> zone map
func NewGazetteer(municipalities map[string]string) *Gazetteer {
	g := &Gazetteer{
		zones: make(map[string]string, len(municipalities)),
		names: make(map[string]string, len(municipalities)),
	}
	for name, zone := range municipalities {
		k := Key(name)
		g.zones[k] = zone
		g.names[k] = name
	}
	return g
}

// DefaultGazetteer returns the Basilicata municipality map shipped with the binary
func DefaultGazetteer() (*Gazetteer, error) {
	var m map[string]string
	if err := json.Unmarshal(defaultMunicipalities, &m); err != nil {
		return nil, fmt.Errorf("failed to decode municipality map: %w", err)
	}
	return NewGazetteer(m), nil
}

// ZoneOf returns the alert zone of a municipality
func (g *Gazetteer) ZoneOf(name string) (string, bool) {
	zone, ok := g.zones[Key(name)]
	return zone, ok
}

// Municipalities returns the municipalities of zone, sorted
func (g *Gazetteer) Municipalities(zone string) []string {
	var out []string
	for k, z := range g.zones {
		if z == zone {
			out = append(out, g.names[k])
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of known municipalities
func (g *Gazetteer) Len() int { return len(g.zones) }

// Zones returns the distinct alert zones, sorted
func (g *Gazetteer) Zones() []string {
	seen := map[string]bool{}
	var out []string
	for _, z := range g.zones {
		if !seen[z] {
			seen[z] = true
			out = append(out, z)
		}
	}
	sort.Strings(out)
	return out
}
