package geo

import (
	"strconv"
	"strings"

	"github.com/abelzeko/allerta-bot/internal/entities"
)

// UnmappedColor fills municipalities that belong to no known zone
const UnmappedColor = "#ffffff"

// EnrichMunicipalities adds today's alert level to every municipality
// feature. Features are changed in place and fc is returned.
func EnrichMunicipalities(fc entities.FeatureCollection, b entities.Bulletin, g *Gazetteer) entities.FeatureCollection {
	for i := range fc.Features {
		f := &fc.Features[i]
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
		zone, ok := g.ZoneOf(f.StringProperty("name", "NOME", "COMUNE", "nome"))
		if !ok {
			f.Properties["colore_web"] = UnmappedColor
			continue
		}

		level, risk := entities.Green, ""
		if info, found := b.Zones[zone]; found {
			level, risk = normalizeLevel(info.Today), info.TodayRisk
		}
		f.Properties["allerta_oggi"] = string(level)
		f.Properties["colore_web"] = level.WebColor()
		f.Properties["zona_nome"] = zone
		f.Properties["rischio"] = risk
	}
	return fc
}

// AlertZoneLayer keeps the Basilicata features of the national alert zone
// layer ("BASI-A1" becomes "BASI A1") and adds today's level to each.
func AlertZoneLayer(fc entities.FeatureCollection, b entities.Bulletin) entities.FeatureCollection {
	out := entities.FeatureCollection{Type: "FeatureCollection"}
	for _, f := range fc.Features {
		sigla := f.StringProperty("Sigla", "SIGLA")
		if !strings.HasPrefix(sigla, "BASI") {
			continue
		}
		name := f.StringProperty("Nome_Zona", "NOME_ZONA")
		if name == "" {
			name = sigla
		}
		name = strings.ReplaceAll(name, "-", " ")

		level, desc := entities.Green, ""
		if info, found := b.Zones[name]; found {
			level, desc = normalizeLevel(info.Today), info.TodayRisk
		}
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
		f.Properties["allerta_oggi"] = string(level)
		f.Properties["colore_web"] = level.WebColor()
		f.Properties["descrizione"] = desc
		out.Features = append(out.Features, f)
	}
	return out
}

// RadarColor returns the display colour for a reflectivity value in dBZ
func RadarColor(dbz float64) string {
	switch {
	case dbz < 20:
		return "#00fbff"
	case dbz < 35:
		return "#0000ff"
	case dbz < 45:
		return "#ffff00"
	default:
		return "#ff0000"
	}
}

// ColorRadar sets colore_radar on every radar feature from its value property
func ColorRadar(fc entities.FeatureCollection) entities.FeatureCollection {
	for i := range fc.Features {
		f := &fc.Features[i]
		if f.Properties == nil {
			f.Properties = map[string]any{}
		}
		f.Properties["colore_radar"] = RadarColor(numberProperty(f.Properties["value"]))
	}
	return fc
}

func normalizeLevel(c entities.Criticality) entities.Criticality {
	c = entities.Criticality(strings.ToLower(string(c)))
	if !c.Valid() {
		return entities.Green
	}
	return c
}

func numberProperty(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err == nil {
			return f
		}
	}
	return 0
}
