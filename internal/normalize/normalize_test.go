package normalize

import (
	"testing"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/stretchr/testify/require"
)

func TestColorKeywords(t *testing.T) {
	cases := map[string]entities.Criticality{
		"ROSSA":                   entities.Red,
		"elevata":                 entities.Red,
		"Allerta ROSSA":           entities.Red,
		"ARANCIONE":               entities.Orange,
		"MODERATA":                entities.Orange,
		"GIALLA":                  entities.Yellow,
		"ordinaria":               entities.Yellow,
		"VERDE":                   entities.Green,
		"ASSENZA":                 entities.Green,
		"ASSENZA DI FENOMENI":     entities.Green,
		"NON SIGNIFICATIVA":       entities.Green,
		"":                        entities.Green,
		"???":                     entities.Green,
		"BLU":                     entities.Green,
		"GIALLA\u00a0/ ARANCIONE": entities.Orange,
	}
	for token, want := range cases {
		require.Equal(t, want, Color(token), "token %q", token)
	}
}

func TestCleanNumeric(t *testing.T) {
	cases := map[string]float64{
		"1.234,56":      1234.56,
		"60.143.000":    60143000,
		"12":            12,
		"0,5":           0.5,
		"45,2 %":        45.2,
		"  3.500 mc ":   3500,
		"-1,25":         -1.25,
		"n.d.":          0,
		"":              0,
		"\u00a01.000,0": 1000,
	}
	for in, want := range cases {
		require.InDelta(t, want, CleanNumeric(in), 1e-9, "input %q", in)
	}

	_, err := ParseItalianNumber("---")
	require.Error(t, err)
}

func TestParseReading(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"4,5 mm", 4.5, true},
		{"0.5", 0.5, true},
		{"12", 12, true},
		{"-3,2 °C", -3.2, true},
		{"1.234,5", 1234.5, true},
		{"n.d.", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseReading(c.in)
		require.Equal(t, c.ok, ok, c.in)
		require.InDelta(t, c.want, got, 1e-9, c.in)
	}
}

func TestDMSToDecimal(t *testing.T) {
	lat, ok := DMSToDecimal(`40° 9' 39" N`)
	require.True(t, ok)
	require.InDelta(t, 40.160833, lat, 1e-6)

	lon, ok := DMSToDecimal("15°&nbsp;59' 8\" E")
	require.True(t, ok)
	require.InDelta(t, 15.985556, lon, 1e-6)

	south, ok := DMSToDecimal(`33° 52' 4" S`)
	require.True(t, ok)
	require.Less(t, south, 0.0)

	_, ok = DMSToDecimal("n/d")
	require.False(t, ok)
}

func TestDangerLevel(t *testing.T) {
	cases := []struct {
		in    string
		level int
		label string
	}{
		{"3", 3, "Marcato"},
		{"2 - Moderato", 2, "Moderato"},
		{"MOLTO FORTE", 5, "Molto forte"},
		{"forte", 4, "Forte"},
		{"debole", 1, "Debole"},
		{"", 0, entities.NotAvailable},
		{"N/D", 0, entities.NotAvailable},
	}
	for _, c := range cases {
		level, label := DangerLevel(c.in)
		require.Equal(t, c.level, level, c.in)
		require.Equal(t, c.label, label, c.in)
	}
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "Stazione X", CleanText("  Stazione\u00a0\n X "))
}

func TestStationName(t *testing.T) {
	require.Equal(t, "Potenza", StationName("  Potenza (mm) "))
	require.Equal(t, "Matera Centro", StationName("Matera\u00a0Centro - [m]"))
	require.Equal(t, "Lauria", StationName("Lauria"))
}
