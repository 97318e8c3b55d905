// Package app wires configuration, scrapers, storage and notifiers into
// the named jobs shared by the daemon, the CLI and the bot
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/abelzeko/allerta-bot/internal/config"
	"github.com/abelzeko/allerta-bot/internal/extract"
	"github.com/abelzeko/allerta-bot/internal/geo"
	"github.com/abelzeko/allerta-bot/internal/integration"
	"github.com/abelzeko/allerta-bot/internal/integration/openai"
	"github.com/abelzeko/allerta-bot/internal/metrics"
	"github.com/abelzeko/allerta-bot/internal/monitoring"
	"github.com/abelzeko/allerta-bot/internal/notify"
	"github.com/abelzeko/allerta-bot/internal/repository"
	"github.com/abelzeko/allerta-bot/internal/schedule"
	"github.com/abelzeko/allerta-bot/internal/storage"
	"github.com/abelzeko/allerta-bot/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Output files, relative to the data directory
const (
	BulletinFile       = "dati_bollettino.json"
	SensorsFile        = "dati_sensori.json"
	StationsFile       = "anagrafica_stazioni.json"
	HistoryFile        = "dati_storici.json"
	ReservoirsFile     = "invasi.json"
	ReservoirsCSVFile  = "storico_invasi.csv"
	AvalancheFile      = "valanghe.json"
	RadarFile          = "radar_live.geojson"
	MunicipalLayerFile = "bollettino_comunale_live.geojson"
	ZoneLayerFile      = "bollettino_zone_live.geojson"
)

// Job names
const (
	JobBulletin  = "bulletin"
	JobSync      = "sync"
	JobSensors   = "sensors"
	JobStations  = "stations"
	JobHistory   = "history"
	JobDams      = "dams"
	JobAvalanche = "avalanche"
	JobRadar     = "radar"
	JobMaps      = "maps"
)

// replyTTL is how long bot replies are cached
const replyTTL = 5 * time.Minute

// App holds the long lived components
type App struct {
	Config    *config.Config
	Repo      *repository.SQLiteAlertRepository
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Reporter  *monitoring.Reporter
	Runner    *usecases.Runner
	State     *schedule.State
	Gazetteer *geo.Gazetteer
	Layouts   extract.Layouts
	Archive   *storage.Archive

	fetcher   *integration.Fetcher
	bulletins *integration.BulletinScraper
	sensors   *integration.SensorScraper

	botOnce sync.Once
	bot     *tgbotapi.BotAPI
	botErr  error

	jobs map[string]usecases.Job
}

// New builds the application from cfg. Nothing is contacted yet.
func New(cfg *config.Config) (*App, error) {
	layouts, err := config.LoadLayouts(cfg.LayoutsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load layouts: %w", err)
	}
	gazetteer, err := geo.DefaultGazetteer()
	if err != nil {
		return nil, err
	}
	repo, err := repository.NewSQLiteAlertRepository(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	reporter := monitoring.NewReporter()

	fetcher := integration.NewFetcher(integration.FetcherOptions{
		Timeout:       cfg.HTTPTimeout,
		Retries:       cfg.HTTPRetries,
		RetryWait:     cfg.HTTPRetryWait,
		RatePerSecond: cfg.RatePerSecond,
		ScraperAPIKey: cfg.ScraperAPIKey,
		ScraperAPIURL: cfg.ScraperAPIURL,
	})

	a := &App{
		Config:    cfg,
		Repo:      repo,
		Registry:  registry,
		Metrics:   m,
		Reporter:  reporter,
		Runner:    usecases.NewRunner(repo, m, reporter),
		State:     &schedule.State{},
		Gazetteer: gazetteer,
		Layouts:   layouts,
		Archive:   storage.NewArchive(cfg.ArchiveDir),
		fetcher:   fetcher,
		bulletins: integration.NewBulletinScraper(fetcher, cfg.ListURL, cfg.FeedURL, cfg.BulletinPDFPattern, layouts.Listing),
		sensors:   integration.NewSensorScraper(fetcher, cfg.SensorsURL, cfg.StationURL, cfg.HistoryURL, layouts.Sensors, layouts.Stations),
	}
	a.jobs = a.buildJobs()
	return a, nil
}

// Close releases the database
func (a *App) Close() error {
	return a.Repo.Close()
}

// BotAPI connects to Telegram once and returns the shared client. It
// returns nil without error when no token is configured.
func (a *App) BotAPI() (*tgbotapi.BotAPI, error) {
	a.botOnce.Do(func() {
		if a.Config.TelegramToken == "" {
			return
		}
		a.bot, a.botErr = tgbotapi.NewBotAPI(a.Config.TelegramToken)
		if a.botErr != nil {
			a.botErr = fmt.Errorf("failed to create bot: %w", a.botErr)
			return
		}
		slog.Info("telegram: authorized", "account", a.bot.Self.UserName)
	})
	return a.bot, a.botErr
}

// Notifiers returns the Telegram and OneSignal notifiers
func (a *App) Notifiers() (*notify.TelegramNotifier, *notify.OneSignalNotifier, error) {
	bot, err := a.BotAPI()
	if err != nil {
		return nil, nil, err
	}
	var telegram *notify.TelegramNotifier
	if bot != nil {
		telegram = notify.NewTelegramNotifier(bot, a.Config.ChatIDs, a.Config.AdminChatID)
	}
	push := notify.NewOneSignalNotifier(a.Config.OneSignalURL, a.Config.OneSignalAppID, a.Config.OneSignalAPIKey)
	return telegram, push, nil
}

// BulletinUseCase builds the bulletin use case with the configured notifiers
func (a *App) BulletinUseCase() (*usecases.BulletinUseCase, error) {
	telegram, push, err := a.Notifiers()
	if err != nil {
		return nil, err
	}
	var broadcaster usecases.Broadcaster
	if telegram != nil {
		broadcaster = telegram
	}
	uc := usecases.NewBulletinUseCase(a.bulletins, a.Layouts, a.Repo, a.Archive, broadcaster, push, a.State, usecases.BulletinOptions{
		OutputPath: a.Config.Path(BulletinFile),
		MapURL:     a.Config.MapURL,
		ForceSend:  a.Config.ForceSend,
		Location:   a.Config.Location,
	})
	return uc.WithMonitoring(a.Metrics, a.Reporter), nil
}

// BackfillUseCase builds the archive backfill use case
func (a *App) BackfillUseCase() *usecases.BackfillUseCase {
	return usecases.NewBackfillUseCase(a.bulletins, a.Layouts, a.Archive, a.Repo, a.Config.Workers, a.Config.StationTimeout, a.Config.Location)
}

// QueryUseCase builds the read side used by the bot
func (a *App) QueryUseCase() *usecases.AlertQueryUseCase {
	var agent openai.OpenAIService
	if a.Config.OpenAIAPIKey != "" {
		svc, err := openai.NewOpenAIService(a.Config.OpenAIAPIKey)
		if err != nil {
			slog.Warn("openai: disabled", "error", err)
		} else {
			agent = svc
		}
	}
	return usecases.NewAlertQueryUseCase(a.Repo, a.Gazetteer, agent, a.Config.MapURL, a.Config.Location, replyTTL)
}

func (a *App) buildJobs() map[string]usecases.Job {
	cfg := a.Config
	geoClient := integration.NewGeoClient(a.fetcher, cfg.RadarURL, cfg.ZonesGeoURL)

	return map[string]usecases.Job{
		JobBulletin: func(ctx context.Context) (string, error) {
			uc, err := a.BulletinUseCase()
			if err != nil {
				return "", err
			}
			return uc.Run(ctx)
		},
		JobSync: usecases.NewSyncUseCase(a.bulletins, cfg.SyncURL, a.Archive, a.Repo, cfg.Location).Run,
		JobSensors: usecases.NewSensorUseCase(a.sensors, a.Repo, a.Metrics,
			cfg.Path(SensorsFile), cfg.Path(StationsFile), cfg.Location).Run,
		JobStations: usecases.NewStationUseCase(a.sensors, cfg.Path(SensorsFile), cfg.Path(StationsFile),
			cfg.Workers, cfg.StationTimeout).Run,
		JobHistory: usecases.NewHistoryUseCase(a.sensors, cfg.Path(HistoryFile), cfg.Workers, cfg.StationTimeout, cfg.Location).Run,
		JobDams: usecases.NewDamUseCase(integration.NewDamScraper(a.fetcher, cfg.DamsURL, a.Layouts.Dams), a.Repo,
			cfg.Path(ReservoirsFile), cfg.Path(ReservoirsCSVFile), cfg.Location).Run,
		JobAvalanche: usecases.NewAvalancheUseCase(
			integration.NewAvalancheClient(a.fetcher, cfg.MeteomontStation, cfg.MeteomontDanger, cfg.AvalancheSector),
			a.Repo, cfg.Path(AvalancheFile), cfg.Location).Run,
		JobRadar: usecases.NewRadarUseCase(geoClient, cfg.Path(RadarFile)).Run,
		JobMaps: usecases.NewMapUseCase(geoClient, a.Gazetteer, usecases.MapPaths{
			Bulletin:       cfg.Path(BulletinFile),
			Municipalities: cfg.MunicipalitiesGeo,
			MunicipalLayer: cfg.Path(MunicipalLayerFile),
			ZoneLayer:      cfg.Path(ZoneLayerFile),
		}).Run,
	}
}

// JobNames lists the available jobs, sorted
func (a *App) JobNames() []string {
	names := make([]string, 0, len(a.jobs))
	for name := range a.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunJob runs one named job through the runner
func (a *App) RunJob(ctx context.Context, name string) error {
	job, ok := a.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return a.Runner.Do(ctx, name, job)
}
