package usecases

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/repository"
	"github.com/abelzeko/allerta-bot/internal/storage"
	"github.com/stretchr/testify/require"
)

type fakeReservoirSource struct {
	records []entities.Reservoir
	err     error
}

func (f *fakeReservoirSource) FetchReservoirs(ctx context.Context, runDate string) ([]entities.Reservoir, error) {
	return f.records, f.err
}

type fakeAvalancheSource struct {
	bulletin entities.AvalancheBulletin
	err      error
}

func (f *fakeAvalancheSource) FetchBulletin(ctx context.Context, now time.Time) (entities.AvalancheBulletin, error) {
	return f.bulletin, f.err
}

func newRepo(t *testing.T) *repository.SQLiteAlertRepository {
	t.Helper()
	repo, err := repository.NewSQLiteAlertRepository(filepath.Join(t.TempDir(), "allerta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestDamRunIsIdempotentPerDate(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "invasi.json")
	csvPath := filepath.Join(dir, "storico_invasi.csv")
	repo := newRepo(t)

	source := &fakeReservoirSource{records: []entities.Reservoir{
		{DamName: "Monte Cotugno", MaxCapacity: 433.5, CurrentVolume: 201.3, FillPercentage: 46.4, Date: "17/04/2025"},
		{DamName: "Pertusillo", MaxCapacity: 155, CurrentVolume: 98.1, FillPercentage: 63.3, RainfallMM: 2.4, Date: "17/04/2025"},
	}}
	uc := NewDamUseCase(source, repo, jsonPath, csvPath, rome(t))

	for range 2 {
		outcome, err := uc.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, entities.OutcomeOK, outcome)
	}

	rows := readCSV(t, csvPath)
	require.Len(t, rows, 3, "header plus one row per dam, written once")
	require.Equal(t, storage.ReservoirCSVHeader, rows[0])
	require.Equal(t, []string{"17/04/2025", "Pertusillo", "155", "98.1", "63.3", "2.4"}, rows[2])

	var history map[string][]entities.Reservoir
	_, err := storage.ReadJSON(jsonPath, &history)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Len(t, history["17/04/2025"], 2)

	latest, err := repo.GetLatestReservoirs()
	require.NoError(t, err)
	require.Len(t, latest, 2)

	// a new bulletin date appends
	for i := range source.records {
		source.records[i].Date = "18/04/2025"
	}
	_, err = uc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, readCSV(t, csvPath), 5)
}

func TestDamRunFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "invasi.json")
	source := &fakeReservoirSource{err: &entities.FetchError{URL: "dams", StatusCode: 500}}
	uc := NewDamUseCase(source, nil, jsonPath, filepath.Join(dir, "storico_invasi.csv"), rome(t))

	_, err := uc.Run(context.Background())
	var ferr *entities.FetchError
	require.ErrorAs(t, err, &ferr)
	_, statErr := os.Stat(jsonPath)
	require.True(t, os.IsNotExist(statErr))
}

func TestAvalancheRun(t *testing.T) {
	output := filepath.Join(t.TempDir(), "valanghe.json")
	repo := newRepo(t)
	source := &fakeAvalancheSource{bulletin: entities.AvalancheBulletin{
		Sector:      "Appennino Lucano",
		Date:        "18/04/2025",
		DangerLevel: 2,
		DangerText:  "Moderato",
	}}
	uc := NewAvalancheUseCase(source, repo, output, rome(t))

	outcome, err := uc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, entities.OutcomeOK, outcome)

	var saved entities.AvalancheBulletin
	_, err = storage.ReadJSON(output, &saved)
	require.NoError(t, err)
	require.Equal(t, 2, saved.DangerLevel)

	latest, err := repo.GetLatestAvalanche()
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, "Moderato", latest.DangerText)
}
