package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteAlertRepository {
	t.Helper()
	repo, err := NewSQLiteAlertRepository(filepath.Join(t.TempDir(), "db", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleBulletin(date string, a1 entities.Criticality) entities.Bulletin {
	return entities.Bulletin{
		LastUpdate:    date + " 14:00",
		URL:           "https://example.org/" + date,
		ValidityStart: entities.NotAvailable,
		ValidityEnd:   entities.NotAvailable,
		Date:          date,
		Zones: map[string]entities.ZoneRisk{
			"BASI A1": {Today: a1, TodayRisk: "Criticità Idraulica", Tomorrow: entities.Green, TomorrowRisk: entities.NoSignificantRisk},
			"BASI B":  entities.NewZoneRisk(),
		},
	}
}

func TestBulletinUpsertAndLatest(t *testing.T) {
	repo := newTestRepo(t)

	latest, err := repo.GetLatestBulletin()
	require.NoError(t, err)
	require.Nil(t, latest)

	require.NoError(t, repo.SaveBulletin(sampleBulletin("31/12/2024", entities.Yellow)))
	require.NoError(t, repo.SaveBulletin(sampleBulletin("02/01/2025", entities.Orange)))
	// same day again: updated, not duplicated
	require.NoError(t, repo.SaveBulletin(sampleBulletin("02/01/2025", entities.Red)))

	latest, err = repo.GetLatestBulletin()
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, "02/01/2025", latest.Date)
	require.Equal(t, sampleBulletin("02/01/2025", entities.Red), *latest)

	history, err := repo.GetZoneHistory("BASI A1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "02/01/2025", history[0].Date, "ordered by day, not by text")
	require.Equal(t, entities.Red, history[0].Today)
	require.Equal(t, entities.Yellow, history[1].Today)
}

func TestSensorSnapshotUpsert(t *testing.T) {
	repo := newTestRepo(t)
	lat, lon := 40.64, 15.80
	snap := entities.SensorSnapshot{
		LastUpdate: "18/04/2025 12:35",
		Sensors: map[string]entities.SensorGroup{
			"pluviometria": {Readings: []entities.SensorReading{
				{ID: "1", Name: "Potenza", Time: "18/04/2025 12:30", Value: 4.5, Status: entities.StatusNormal, Lat: &lat, Lon: &lon},
				{ID: "2", Name: "Matera", Time: "18/04/2025 12:30", Value: 41, Status: entities.StatusAlert},
			}},
		},
	}
	first := time.Date(2025, 4, 18, 10, 35, 0, 0, time.UTC)
	require.NoError(t, repo.SaveSensorSnapshot(snap, first))
	require.NoError(t, repo.SaveSensorSnapshot(snap, first.Add(time.Hour)))

	readings, err := repo.GetLatestReadings("pluviometria")
	require.NoError(t, err)
	require.Len(t, readings, 2)
	require.Equal(t, "Matera", readings[0].Name, "highest value first")
	require.Nil(t, readings[0].Lat)
	require.NotNil(t, readings[1].Lat)
	require.InDelta(t, 40.64, *readings[1].Lat, 1e-9)

	none, err := repo.GetLatestReadings("nivometria")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestReservoirsLatestDate(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.SaveReservoirs([]entities.Reservoir{
		{DamName: "Pertusillo", CurrentVolume: 90, Date: "28/02/2025"},
		{DamName: "Pertusillo", CurrentVolume: 93, Date: "14/03/2025"},
		{DamName: "Monte Cotugno", CurrentVolume: 260, Date: "14/03/2025"},
	}))
	require.NoError(t, repo.SaveReservoirs([]entities.Reservoir{
		{DamName: "Pertusillo", CurrentVolume: 94, Date: "14/03/2025"},
	}))

	latest, err := repo.GetLatestReservoirs()
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, "Monte Cotugno", latest[0].DamName)
	require.Equal(t, 94.0, latest[1].CurrentVolume)
}

func TestAvalancheRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	none, err := repo.GetLatestAvalanche()
	require.NoError(t, err)
	require.Nil(t, none)

	b := entities.AvalancheBulletin{Sector: "Appennino Lucano", Date: "18/02/2025", DangerLevel: 3, DangerText: "Marcato",
		Readings: []entities.AvalancheReading{{SnowDepthCM: 85}}}
	require.NoError(t, repo.SaveAvalanche(b))
	require.NoError(t, repo.SaveAvalanche(b))

	got, err := repo.GetLatestAvalanche()
	require.NoError(t, err)
	require.Equal(t, b, *got)
}

func TestRunsAndLastUpdate(t *testing.T) {
	repo := newTestRepo(t)

	last, err := repo.GetLastUpdateTime()
	require.NoError(t, err)
	require.True(t, last.IsZero())

	start := time.Date(2025, 4, 18, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveRun(entities.Run{ID: "a", Job: "bulletin", Outcome: entities.OutcomeOK, StartedAt: start, FinishedAt: start.Add(time.Minute)}))
	require.NoError(t, repo.SaveRun(entities.Run{ID: "b", Job: "sensors", Outcome: entities.OutcomeFailed, Error: "fetch failed", StartedAt: start, FinishedAt: start.Add(2 * time.Minute)}))

	runs, err := repo.GetRecentRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "b", runs[0].ID)
	require.Equal(t, "fetch failed", runs[0].Error)
	require.True(t, runs[1].FinishedAt.Equal(start.Add(time.Minute)))

	last, err = repo.GetLastUpdateTime()
	require.NoError(t, err)
	require.True(t, last.Equal(start.Add(time.Minute)), "failed runs do not count: %s", last)
}
