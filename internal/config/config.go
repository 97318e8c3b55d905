// Package config loads runtime settings from the environment (and an
// optional .env file) plus the extraction layouts file.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Upstream endpoints. They can all be overridden, mostly for tests.
const (
	DefaultCFDBaseURL        = "https://centrofunzionale.regione.basilicata.it"
	DefaultListPath          = "/it/bollettini-avvisi.php?lt=A"
	DefaultBulletinPDFPath   = "/ew/ew_pdf/a/Bollettino_Criticita_Regione_Basilicata_{date}.pdf"
	DefaultSensorsPath       = "/it/sensoriTempoReale.php"
	DefaultStationPath       = "/it/stazione.php"
	DefaultHistoryPath       = "/it/dettaglioStazione.php"
	DefaultDamsURL           = "http://www.adb.basilicata.it/adb/risorseidriche/dispoidriche/sceglidatidighe.asp"
	DefaultSyncURL           = "https://raw.githubusercontent.com/Eatapples15/allerta_bollettino_basilicata/refs/heads/main/dati_bollettino.json"
	DefaultMeteomontStation  = "https://servizimeteomont.csifa.carabinieri.it/api/news/json/datistazione/17"
	DefaultMeteomontDanger   = "https://servizimeteomont.csifa.carabinieri.it/api/news/json/gradopericolo/13"
	DefaultRadarURL          = "https://raw.githubusercontent.com/pcm-dpc/DPC-Mappe/main/allertamento/radar/last/VMI.json"
	DefaultZonesGeoURL       = "https://raw.githubusercontent.com/pcm-dpc/DPC-Mappe/main/allertamento/gu_zone/geojson/gu_zone.json"
	DefaultMapURL            = "https://www.formazionesicurezza.org/protezionecivile/bollettino/mappa.html"
	DefaultScraperAPIURL     = "http://api.scraperapi.com/"
	DefaultOneSignalURL      = "https://onesignal.com/api/v1/notifications"
	DefaultAvalancheSector   = "Appennino Lucano"
	DefaultBackfillStartDate = "2016-03-03"
)

// Config holds every runtime setting
type Config struct {
	TelegramToken string
	ChatIDs       []string
	AdminChatID   string
	ForceSend     bool

	OneSignalAppID  string
	OneSignalAPIKey string
	OneSignalURL    string

	ScraperAPIKey string
	ScraperAPIURL string
	OpenAIAPIKey  string

	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string

	OutputDir         string
	ArchiveDir        string
	DBPath            string
	LayoutsFile       string
	MunicipalitiesGeo string

	HTTPTimeout    time.Duration
	HTTPRetries    int
	HTTPRetryWait  time.Duration
	RatePerSecond  float64
	Workers        int
	StationTimeout time.Duration

	MetricsAddr string
	Location    *time.Location
	LogLevel    string

	CFDBaseURL         string
	ListURL            string
	FeedURL            string
	BulletinPDFPattern string
	SensorsURL         string
	StationURL         string
	HistoryURL         string
	DamsURL            string
	SyncURL            string
	MeteomontStation   string
	MeteomontDanger    string
	AvalancheSector    string
	RadarURL           string
	ZonesGeoURL        string
	MapURL             string
	BackfillStart      time.Time
}

// Load reads .env (if present) and builds the configuration from the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("config: no .env file found, using environment variables")
	}

	loc, err := time.LoadLocation(envOr("TZ_NAME", "Europe/Rome"))
	if err != nil {
		return nil, err
	}
	backfillStart, err := time.ParseInLocation("2006-01-02", envOr("BACKFILL_START", DefaultBackfillStartDate), loc)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(envOr("CFD_BASE_URL", DefaultCFDBaseURL), "/")
	outputDir := envOr("DATA_DIR", ".")

	cfg := &Config{
		TelegramToken: envOr("TELEGRAM_TOKEN", os.Getenv("TELEGRAM_BOT_TOKEN")),
		ChatIDs:       SplitList(os.Getenv("TELEGRAM_CHAT_ID")),
		AdminChatID:   os.Getenv("TELEGRAM_ADMIN_CHAT_ID"),
		ForceSend:     envBool("FORCE_SEND", false),

		OneSignalAppID:  os.Getenv("ONESIGNAL_APP_ID"),
		OneSignalAPIKey: os.Getenv("ONESIGNAL_API_KEY"),
		OneSignalURL:    envOr("ONESIGNAL_URL", DefaultOneSignalURL),

		ScraperAPIKey: os.Getenv("SCRAPERAPI_KEY"),
		ScraperAPIURL: envOr("SCRAPERAPI_URL", DefaultScraperAPIURL),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),

		SentryDSN:         os.Getenv("SENTRY_DSN"),
		SentryEnvironment: envOr("SENTRY_ENVIRONMENT", "production"),
		SentryRelease:     envOr("SENTRY_RELEASE", "allerta-bot@1.0.0"),

		OutputDir:         outputDir,
		ArchiveDir:        envOr("ARCHIVE_DIR", filepath.Join(outputDir, "data")),
		DBPath:            envOr("DB_PATH", filepath.Join(outputDir, "data", "allerta.db")),
		LayoutsFile:       os.Getenv("LAYOUTS_FILE"),
		MunicipalitiesGeo: envOr("MUNICIPALITIES_GEOJSON", filepath.Join(outputDir, "comuni_basilicata.geojson")),

		HTTPTimeout:    envDuration("HTTP_TIMEOUT", 30*time.Second),
		HTTPRetries:    envInt("HTTP_RETRIES", 3),
		HTTPRetryWait:  envDuration("HTTP_RETRY_WAIT", 5*time.Second),
		RatePerSecond:  envFloat64("HTTP_RATE", 2),
		Workers:        envInt("WORKERS", 10),
		StationTimeout: envDuration("STATION_TIMEOUT", 15*time.Second),

		MetricsAddr: envOr("METRICS_ADDR", ":9090"),
		Location:    loc,
		LogLevel:    envOr("LOG_LEVEL", "info"),

		CFDBaseURL:         base,
		ListURL:            envOr("LIST_URL", base+DefaultListPath),
		FeedURL:            os.Getenv("FEED_URL"),
		BulletinPDFPattern: envOr("BULLETIN_PDF_PATTERN", base+DefaultBulletinPDFPath),
		SensorsURL:         envOr("SENSORS_URL", base+DefaultSensorsPath),
		StationURL:         envOr("STATION_URL", base+DefaultStationPath),
		HistoryURL:         envOr("HISTORY_URL", base+DefaultHistoryPath),
		DamsURL:            envOr("DAMS_URL", DefaultDamsURL),
		SyncURL:            envOr("SYNC_URL", DefaultSyncURL),
		MeteomontStation:   envOr("METEOMONT_STATION_URL", DefaultMeteomontStation),
		MeteomontDanger:    envOr("METEOMONT_DANGER_URL", DefaultMeteomontDanger),
		AvalancheSector:    envOr("AVALANCHE_SECTOR", DefaultAvalancheSector),
		RadarURL:           envOr("RADAR_URL", DefaultRadarURL),
		ZonesGeoURL:        envOr("ZONES_GEOJSON_URL", DefaultZonesGeoURL),
		MapURL:             envOr("MAP_URL", DefaultMapURL),
		BackfillStart:      backfillStart,
	}

	slog.Info("config: loaded",
		"chats", len(cfg.ChatIDs),
		"telegram", cfg.TelegramToken != "",
		"onesignal", cfg.OneSignalAppID != "",
		"proxy", cfg.ScraperAPIKey != "",
		"output", cfg.OutputDir)
	return cfg, nil
}

// Path returns name inside the output directory
func (c *Config) Path(name string) string {
	return filepath.Join(c.OutputDir, name)
}

// SplitList splits a comma separated value, dropping blanks
func SplitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "yes", "y", "on":
		return true
	case "no", "n", "off":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat64(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err == nil {
		return d
	}
	// plain seconds, as the scripts used to take them
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
