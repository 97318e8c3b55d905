package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/metrics"
	"github.com/abelzeko/allerta-bot/internal/storage"
	"github.com/abelzeko/allerta-bot/internal/workerpool"
)

// SensorStore keeps the sensor history
type SensorStore interface {
	SaveSensorSnapshot(snap entities.SensorSnapshot, scrapedAt time.Time) error
}

// SensorUseCase scrapes every sensor category into dati_sensori.json
type SensorUseCase struct {
	source        SensorSource
	store         SensorStore
	metrics       *metrics.Metrics
	outputPath    string
	gazetteerPath string
	location      *time.Location
	now           func() time.Time
}

// NewSensorUseCase creates a new sensor use case. Readings get coordinates
// from the station gazetteer at gazetteerPath when it exists.
func NewSensorUseCase(source SensorSource, store SensorStore, m *metrics.Metrics, outputPath, gazetteerPath string, loc *time.Location) *SensorUseCase {
	if loc == nil {
		loc = time.Local
	}
	return &SensorUseCase{
		source:        source,
		store:         store,
		metrics:       m,
		outputPath:    outputPath,
		gazetteerPath: gazetteerPath,
		location:      loc,
		now:           time.Now,
	}
}

// Run scrapes the categories one after the other. A failing category is
// written with no readings; when every category fails nothing is written.
func (uc *SensorUseCase) Run(ctx context.Context) (string, error) {
	now := uc.now().In(uc.location)
	refDate := now.Format(entities.BulletinDateLayout)
	coords := uc.loadGazetteer()

	snap := entities.SensorSnapshot{
		LastUpdate: now.Format("02/01/2006 15:04"),
		Sensors:    make(map[string]entities.SensorGroup, len(entities.SensorCategories)),
	}
	var errs []error
	total := 0
	for _, cat := range entities.SensorCategories {
		readings, err := uc.source.FetchCategory(ctx, cat, refDate)
		if err != nil {
			slog.Warn("sensors: category failed", "category", cat.Key, "error", err)
			errs = append(errs, err)
			readings = []entities.SensorReading{}
		}

		alerts := 0
		for i := range readings {
			if c, ok := coords[readings[i].ID]; ok {
				lat, lon := c.Lat, c.Lon
				readings[i].Lat, readings[i].Lon = &lat, &lon
			}
			if readings[i].Status == entities.StatusAlert {
				alerts++
			}
		}
		uc.metrics.SetSensorAlerts(cat.Key, alerts)
		total += len(readings)
		snap.Sensors[cat.Key] = entities.SensorGroup{Meta: cat, Readings: readings}
	}

	if total == 0 {
		err := &entities.ParseError{Source: "sensors", Reason: "no reading in any category"}
		if len(errs) > 0 {
			err.Err = errors.Join(errs...)
		}
		return "", err
	}

	if err := storage.WriteJSON(uc.outputPath, snap); err != nil {
		return "", err
	}
	if uc.store != nil {
		if err := uc.store.SaveSensorSnapshot(snap, now); err != nil {
			return "", fmt.Errorf("failed to store sensor snapshot: %w", err)
		}
	}
	slog.Info("sensors: saved", "path", uc.outputPath, "readings", total)
	return entities.OutcomeOK, nil
}

func (uc *SensorUseCase) loadGazetteer() map[string]entities.StationCoordinates {
	out := map[string]entities.StationCoordinates{}
	if uc.gazetteerPath == "" {
		return out
	}
	var list []entities.StationCoordinates
	if _, err := storage.ReadJSON(uc.gazetteerPath, &list); err != nil {
		slog.Warn("sensors: station gazetteer unreadable", "error", err)
		return out
	}
	for _, c := range list {
		out[c.ID] = c
	}
	return out
}

// StationUseCase keeps anagrafica_stazioni.json up to date with the
// coordinates of every station seen in the sensor snapshot
type StationUseCase struct {
	source        SensorSource
	sensorsPath   string
	gazetteerPath string
	workers       int
	timeout       time.Duration
}

// NewStationUseCase creates a new station gazetteer use case
func NewStationUseCase(source SensorSource, sensorsPath, gazetteerPath string, workers int, timeout time.Duration) *StationUseCase {
	return &StationUseCase{
		source:        source,
		sensorsPath:   sensorsPath,
		gazetteerPath: gazetteerPath,
		workers:       workers,
		timeout:       timeout,
	}
}

// Run fetches coordinates for stations not in the gazetteer yet. Known
// stations are never fetched again.
func (uc *StationUseCase) Run(ctx context.Context) (string, error) {
	var snap entities.SensorSnapshot
	found, err := storage.ReadJSON(uc.sensorsPath, &snap)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &entities.ParseError{Source: uc.sensorsPath, Reason: "sensor snapshot not found, run sensors first"}
	}

	var known []entities.StationCoordinates
	if _, err := storage.ReadJSON(uc.gazetteerPath, &known); err != nil {
		return "", err
	}
	seen := make(map[string]bool, len(known))
	for _, c := range known {
		seen[c.ID] = true
	}

	var missing []string
	for _, group := range snap.Sensors {
		for _, r := range group.Readings {
			if r.ID != "" && !seen[r.ID] {
				seen[r.ID] = true
				missing = append(missing, r.ID)
			}
		}
	}
	if len(missing) == 0 {
		slog.Info("stations: gazetteer up to date", "stations", len(known))
		return entities.OutcomeSkipped, nil
	}
	sort.Strings(missing)
	slog.Info("stations: fetching coordinates", "new", len(missing))

	results := workerpool.Run(ctx, missing, uc.workers, uc.timeout, uc.source.FetchCoordinates)
	fetched, errs := workerpool.Values(results)
	for _, err := range errs {
		slog.Warn("stations: coordinates failed", "error", err)
	}
	if len(fetched) == 0 {
		return "", &entities.ParseError{Source: "stations", Reason: "no coordinates found", Err: errors.Join(errs...)}
	}

	all := append(known, fetched...)
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if err := storage.WriteJSON(uc.gazetteerPath, all); err != nil {
		return "", err
	}
	slog.Info("stations: gazetteer saved", "stations", len(all), "added", len(fetched))
	return entities.OutcomeOK, nil
}

// HistoryUseCase computes the accumulated rainfall of every rain station
// into dati_storici.json
type HistoryUseCase struct {
	source     SensorSource
	outputPath string
	workers    int
	timeout    time.Duration
	location   *time.Location
	now        func() time.Time
}

// NewHistoryUseCase creates a new rainfall history use case
func NewHistoryUseCase(source SensorSource, outputPath string, workers int, timeout time.Duration, loc *time.Location) *HistoryUseCase {
	if loc == nil {
		loc = time.Local
	}
	return &HistoryUseCase{
		source:     source,
		outputPath: outputPath,
		workers:    workers,
		timeout:    timeout,
		location:   loc,
		now:        time.Now,
	}
}

// Run discovers the stations and reads their history with a bounded pool.
// A station that fails or times out is left out.
func (uc *HistoryUseCase) Run(ctx context.Context) (string, error) {
	stations, err := uc.source.ListStations(ctx)
	if err != nil {
		return "", err
	}
	slog.Info("history: stations discovered", "stations", len(stations))

	results := workerpool.Run(ctx, stations, uc.workers, uc.timeout, uc.source.FetchHistory)
	histories := make([]entities.StationHistory, 0, len(results))
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			slog.Warn("history: station failed", "station", r.Item.ID, "error", r.Err)
			failed++
			continue
		}
		histories = append(histories, r.Value)
	}
	if len(histories) == 0 {
		return "", &entities.ParseError{Source: "history", Reason: "no station history read"}
	}

	snap := entities.HistorySnapshot{
		LastUpdate: uc.now().In(uc.location).Format("02/01/2006 15:04"),
		Stations:   histories,
	}
	if err := storage.WriteJSON(uc.outputPath, snap); err != nil {
		return "", err
	}
	slog.Info("history: saved", "path", uc.outputPath, "stations", len(histories), "failed", failed)
	return entities.OutcomeOK, nil
}
