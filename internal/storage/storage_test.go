package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONIndentAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dati_bollettino.json")
	b := entities.Bulletin{
		Date:  "18/04/2025",
		Zones: map[string]entities.ZoneRisk{"BASI A1": entities.NewZoneRisk()},
	}
	require.NoError(t, WriteJSON(path, b))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "{\n    \"ultimo_aggiornamento\""), string(raw))

	var got entities.Bulletin
	found, err := ReadJSON(path, &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, b, got)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteRefusesEmptyPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dati_sensori.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"old":true}`), 0o644))

	var perr *entities.PersistError
	require.ErrorAs(t, WriteFile(path, nil), &perr)
	require.ErrorIs(t, WriteJSON(path, nil), ErrEmptyPayload)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"old":true}`, string(raw), "previous artifact must survive")
}

func TestReadJSONMissingAndMalformed(t *testing.T) {
	dir := t.TempDir()
	var v map[string]any

	found, err := ReadJSON(filepath.Join(dir, "missing.json"), &v)
	require.NoError(t, err)
	require.False(t, found)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	found, err = ReadJSON(bad, &v)
	require.True(t, found)
	var perr *entities.PersistError
	require.ErrorAs(t, err, &perr)
}

func TestAppendCSVHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storico_invasi.csv")
	rows := ReservoirRows([]entities.Reservoir{{DamName: "Pertusillo", MaxCapacity: 155, CurrentVolume: 93.5, Date: "14/03/2025"}})

	require.NoError(t, AppendCSV(path, ReservoirCSVHeader, rows))
	require.NoError(t, AppendCSV(path, ReservoirCSVHeader, rows))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, ReservoirCSVHeader, records[0])
	require.Equal(t, []string{"14/03/2025", "Pertusillo", "155", "93.5", "0", "0"}, records[1])
}

func TestMergeReservoirsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invasi.json")
	first := []entities.Reservoir{{DamName: "Monte Cotugno", CurrentVolume: 250, Date: "14/03/2025"}}
	second := []entities.Reservoir{{DamName: "Monte Cotugno", CurrentVolume: 260, Date: "14/03/2025"}}

	existed, err := MergeReservoirs(path, "14/03/2025", first)
	require.NoError(t, err)
	require.False(t, existed)

	existed, err = MergeReservoirs(path, "14/03/2025", second)
	require.NoError(t, err)
	require.True(t, existed)

	_, err = MergeReservoirs(path, "15/03/2025", first)
	require.NoError(t, err)

	var history map[string][]entities.Reservoir
	_, err = ReadJSON(path, &history)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, second, history["14/03/2025"])
}

func TestArchiveStoreAndDedup(t *testing.T) {
	a := NewArchive(t.TempDir())
	day := time.Date(2025, 4, 18, 0, 0, 0, 0, time.UTC)
	zones := map[string]entities.ZoneRisk{
		"BASI A1": {Today: entities.Yellow},
		"BASI B":  {Today: entities.Orange},
	}

	entry, err := a.Store(day, zones)
	require.NoError(t, err)
	require.Equal(t, entities.IndexEntry{Day: "2025-04-18", File: "2025/04/18.json", MaxCriticality: entities.Orange}, entry)

	// the index points at the day file relative to its own directory
	var archived entities.ArchivedBulletin
	found, err := ReadJSON(filepath.Join(a.Dir, filepath.FromSlash(entry.File)), &archived)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "18/04/2025", archived.Date)

	// same day again with a different level replaces the entry
	zones["BASI B"] = entities.ZoneRisk{Today: entities.Red}
	_, err = a.Store(day, zones)
	require.NoError(t, err)
	_, err = a.Store(day.AddDate(0, 0, -1), zones)
	require.NoError(t, err)

	index, err := a.LoadIndex()
	require.NoError(t, err)
	require.Len(t, index, 2)
	require.Equal(t, "2025-04-17", index[0].Day)
	require.Equal(t, entities.Red, index[1].MaxCriticality)

	days, err := a.Days()
	require.NoError(t, err)
	require.True(t, days["2025-04-18"])
	require.False(t, days["2025-04-16"])
}

func TestArchiveRejectsEmptyDay(t *testing.T) {
	a := NewArchive(t.TempDir())
	_, err := a.Store(time.Now(), nil)
	require.ErrorIs(t, err, ErrEmptyPayload)

	index, err := a.LoadIndex()
	require.NoError(t, err)
	require.Empty(t, index)
}
