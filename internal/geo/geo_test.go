package geo

import (
	"encoding/json"
	"testing"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	tests := map[string]string{
		"Sant'Angelo Le Fratte":      "SANTANGELOLEFRATTE",
		"SANT ANGELO LE FRATTE":      "SANTANGELOLEFRATTE",
		"S. Fele":                    "SANFELE",
		"S.Chirico Raparo":           "SANCHIRICORAPARO",
		"San Martino d'Agri":         "SANMARTINODAGRI",
		"  Rionero in Vulture ":      "RIONEROINVULTURE",
		"Castronuovo di Sant'Andrea": "CASTRONUOVODISANTANDREA",
		"Sasso di Castalda":          "SASSODICASTALDA",
		"Potenzà":                    "POTENZA",
	}
	for in, want := range tests {
		require.Equal(t, want, Key(in), in)
	}
}

func TestDefaultGazetteer(t *testing.T) {
	g, err := DefaultGazetteer()
	require.NoError(t, err)
	require.Equal(t, 131, g.Len())

	zone, ok := g.ZoneOf("San Fele")
	require.True(t, ok)
	require.Equal(t, "BASI A1", zone)

	zone, ok = g.ZoneOf("Sant'Arcangelo")
	require.True(t, ok)
	require.Equal(t, "BASI C", zone)

	_, ok = g.ZoneOf("Bari")
	require.False(t, ok)

	require.Equal(t, []string{"BERNALDA", "FERRANDINA", "MONTESCAGLIOSO", "PISTICCI"}, g.Municipalities("BASI E2"))
	require.Equal(t, []string{"BASI A1", "BASI A2", "BASI B", "BASI C", "BASI D", "BASI E1", "BASI E2"}, g.Zones())
}

func featureCollection(t *testing.T, raw string) entities.FeatureCollection {
	t.Helper()
	var fc entities.FeatureCollection
	require.NoError(t, json.Unmarshal([]byte(raw), &fc))
	return fc
}

func TestEnrichMunicipalities(t *testing.T) {
	fc := featureCollection(t, `{"type":"FeatureCollection","features":[
{"type":"Feature","geometry":null,"properties":{"name":"Potenza"}},
{"type":"Feature","geometry":null,"properties":{"name":"Melfi"}},
{"type":"Feature","geometry":null,"properties":{"name":"Altamura"}}]}`)
	b := entities.Bulletin{Zones: map[string]entities.ZoneRisk{
		"BASI B": {Today: entities.Orange, TodayRisk: "Criticità Idraulica"},
	}}
	g, err := DefaultGazetteer()
	require.NoError(t, err)

	out := EnrichMunicipalities(fc, b, g)
	potenza := out.Features[0].Properties
	require.Equal(t, "orange", potenza["allerta_oggi"])
	require.Equal(t, "#ff9900", potenza["colore_web"])
	require.Equal(t, "BASI B", potenza["zona_nome"])
	require.Equal(t, "Criticità Idraulica", potenza["rischio"])

	melfi := out.Features[1].Properties
	require.Equal(t, "green", melfi["allerta_oggi"], "mapped zone without bulletin data")
	require.Equal(t, "#00ff00", melfi["colore_web"])

	require.Equal(t, UnmappedColor, out.Features[2].Properties["colore_web"])
	require.NotContains(t, out.Features[2].Properties, "zona_nome")
}

func TestAlertZoneLayer(t *testing.T) {
	fc := featureCollection(t, `{"type":"FeatureCollection","features":[
{"type":"Feature","geometry":null,"properties":{"Sigla":"BASI-A1","Nome_Zona":"BASI-A1"}},
{"type":"Feature","geometry":null,"properties":{"SIGLA":"BASI-E2"}},
{"type":"Feature","geometry":null,"properties":{"Sigla":"CAMP-1","Nome_Zona":"CAMP-1"}}]}`)
	b := entities.Bulletin{Zones: map[string]entities.ZoneRisk{
		"BASI A1": {Today: entities.Red, TodayRisk: "Criticità Idrogeologica"},
	}}

	out := AlertZoneLayer(fc, b)
	require.Equal(t, "FeatureCollection", out.Type)
	require.Len(t, out.Features, 2)
	require.Equal(t, "red", out.Features[0].Properties["allerta_oggi"])
	require.Equal(t, "#ff0000", out.Features[0].Properties["colore_web"])
	require.Equal(t, "Criticità Idrogeologica", out.Features[0].Properties["descrizione"])
	require.Equal(t, "green", out.Features[1].Properties["allerta_oggi"])
}

func TestColorRadar(t *testing.T) {
	require.Equal(t, "#00fbff", RadarColor(5))
	require.Equal(t, "#0000ff", RadarColor(20))
	require.Equal(t, "#ffff00", RadarColor(44.9))
	require.Equal(t, "#ff0000", RadarColor(45))

	fc := featureCollection(t, `{"type":"FeatureCollection","features":[
{"type":"Feature","geometry":null,"properties":{"value":38}},
{"type":"Feature","geometry":null,"properties":{"value":"50"}},
{"type":"Feature","geometry":null,"properties":null}]}`)
	out := ColorRadar(fc)
	require.Equal(t, "#ffff00", out.Features[0].Properties["colore_radar"])
	require.Equal(t, "#ff0000", out.Features[1].Properties["colore_radar"])
	require.Equal(t, "#00fbff", out.Features[2].Properties["colore_radar"])
}
