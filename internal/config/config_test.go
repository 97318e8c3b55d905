package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abelzeko/allerta-bot/internal/extract"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123, @allerta_basilicata ,")
	t.Setenv("FORCE_SEND", "yes")
	t.Setenv("HTTP_TIMEOUT", "45")
	t.Setenv("WORKERS", "4")
	t.Setenv("DATA_DIR", "out")
	t.Setenv("CFD_BASE_URL", "http://cfd.test/")
	t.Setenv("TZ_NAME", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "123:abc", cfg.TelegramToken)
	require.Equal(t, []string{"-100123", "@allerta_basilicata"}, cfg.ChatIDs)
	require.True(t, cfg.ForceSend)
	require.Equal(t, 45*time.Second, cfg.HTTPTimeout)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, filepath.Join("out", "data"), cfg.ArchiveDir)
	require.Equal(t, filepath.Join("out", "dati_bollettino.json"), cfg.Path("dati_bollettino.json"))
	require.Equal(t, "http://cfd.test/it/bollettini-avvisi.php?lt=A", cfg.ListURL)
	require.Equal(t, "http://cfd.test/ew/ew_pdf/a/Bollettino_Criticita_Regione_Basilicata_{date}.pdf", cfg.BulletinPDFPattern)
	require.Equal(t, "2016-03-03", cfg.BackfillStart.Format("2006-01-02"))
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TZ_NAME", "Mars/Olympus")
	_, err := Load()
	require.Error(t, err)
}

func TestSplitList(t *testing.T) {
	require.Nil(t, SplitList(""))
	require.Equal(t, []string{"a", "b"}, SplitList(" a,,b "))
}

func TestLoadLayoutsDefaults(t *testing.T) {
	layouts, err := LoadLayouts("")
	require.NoError(t, err)
	require.Equal(t, extract.DefaultLayouts(), layouts)

	layouts, err = LoadLayouts(filepath.Join(t.TempDir(), "missing.json5"))
	require.NoError(t, err)
	require.Equal(t, extract.DefaultLayouts(), layouts)
}

func TestLoadLayoutsWithLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layouts.json5")

	require.NoError(t, os.WriteFile(path, []byte(`{
		// the sensor page grew a leading icon column
		sensors: {name_column: 1, time_column: 2, value_column: 3},
	}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "layouts.local.json5"), []byte(`{
		listing: {link_marker: "Bollettino_Test"},
	}`), 0o644))

	layouts, err := LoadLayouts(path)
	require.NoError(t, err)

	require.Equal(t, 1, layouts.Sensors.NameColumn)
	require.Equal(t, 3, layouts.Sensors.ValueColumn)
	require.Equal(t, "Bollettino_Test", layouts.Listing.LinkMarker)
	// untouched sections keep their defaults
	require.Equal(t, extract.DefaultLayouts().Dams, layouts.Dams)
	require.Equal(t, 5, layouts.Sensors.MinRows)
}

func TestLoadLayoutsMergesBulletinsByVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layouts.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		bulletins: [
			{version: "2020-table", cell_gap: 1.5},
			{version: "2026-table", since: "2026-01-01", mode: "table", zone_pattern: "^ZONA"},
		],
		sensors: {min_rows: 0},
	}`), 0o644))

	layouts, err := LoadLayouts(path)
	require.NoError(t, err)
	require.Len(t, layouts.Bulletins, 3)

	defaults := extract.DefaultLayouts().Bulletins
	table := layouts.Bulletins[0]
	require.Equal(t, "2020-table", table.Version)
	require.Equal(t, 1.5, table.CellGap)
	require.Equal(t, defaults[0].ZonePattern, table.ZonePattern)
	require.Equal(t, defaults[0].RiskColumns, table.RiskColumns)
	require.Equal(t, defaults[1], layouts.Bulletins[1])
	require.Equal(t, "^ZONA", layouts.Bulletins[2].ZonePattern)

	// zero values keep the current setting
	require.Equal(t, 5, layouts.Sensors.MinRows)
}

func TestLoadLayoutsRejectsBulletinWithoutVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layouts.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{bulletins: [{cell_gap: 2}]}`), 0o644))
	_, err := LoadLayouts(path)
	require.Error(t, err)
}

func TestLoadLayoutsRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layouts.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{sensors: `), 0o644))
	_, err := LoadLayouts(path)
	require.Error(t, err)
}
