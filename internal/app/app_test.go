package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelzeko/allerta-bot/internal/config"
	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const radarJSON = `{"type":"FeatureCollection","features":[
	{"type":"Feature","properties":{"value":20},"geometry":{"type":"Point","coordinates":[15.8,40.6]}}
]}`

func testConfig(t *testing.T, upstream string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		OutputDir:      dir,
		ArchiveDir:     filepath.Join(dir, "data"),
		DBPath:         filepath.Join(dir, "allerta.db"),
		HTTPTimeout:    5 * time.Second,
		HTTPRetryWait:  10 * time.Millisecond,
		Workers:        2,
		StationTimeout: time.Second,
		Location:       time.UTC,
		RadarURL:       upstream + "/radar.json",
		ZonesGeoURL:    upstream + "/zones.json",
		MapURL:         "https://map.test",
	}
}

func TestJobNames(t *testing.T) {
	a, err := New(testConfig(t, "http://127.0.0.1:0"))
	require.NoError(t, err)
	defer a.Close()

	require.Equal(t, []string{
		JobAvalanche, JobBulletin, JobDams, JobHistory, JobMaps,
		JobRadar, JobSensors, JobStations, JobSync,
	}, a.JobNames())
	require.Error(t, a.RunJob(context.Background(), "tides"))
}

func TestRunJobRecordsRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/radar.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(radarJSON))
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL)
	a, err := New(cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.RunJob(context.Background(), JobRadar))

	var fc entities.FeatureCollection
	_, err = storage.ReadJSON(cfg.Path(RadarFile), &fc)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	require.Contains(t, fc.Features[0].Properties, "colore_radar")

	// no bulletin on disk yet
	require.NoError(t, a.RunJob(context.Background(), JobMaps))

	runs, err := a.Repo.GetRecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.Runs.WithLabelValues(JobRadar, entities.OutcomeOK)))
	require.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.Runs.WithLabelValues(JobMaps, entities.OutcomeSkipped)))
}

func TestNotifiersWithoutCredentials(t *testing.T) {
	a, err := New(testConfig(t, "http://127.0.0.1:0"))
	require.NoError(t, err)
	defer a.Close()

	bot, err := a.BotAPI()
	require.NoError(t, err)
	require.Nil(t, bot)

	telegram, push, err := a.Notifiers()
	require.NoError(t, err)
	require.False(t, telegram.Enabled())
	require.False(t, push.Enabled())

	_, err = a.BulletinUseCase()
	require.NoError(t, err)
	require.NotNil(t, a.QueryUseCase())
}
