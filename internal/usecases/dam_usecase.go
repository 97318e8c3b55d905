package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/storage"
)

// ReservoirStore keeps the reservoir history
type ReservoirStore interface {
	SaveReservoirs(records []entities.Reservoir) error
}

// DamUseCase scrapes the reservoir levels into invasi.json and storico_invasi.csv
type DamUseCase struct {
	source   ReservoirSource
	store    ReservoirStore
	jsonPath string
	csvPath  string
	location *time.Location
	now      func() time.Time
}

// NewDamUseCase creates a new dam use case. store may be nil.
func NewDamUseCase(source ReservoirSource, store ReservoirStore, jsonPath, csvPath string, loc *time.Location) *DamUseCase {
	if loc == nil {
		loc = time.Local
	}
	return &DamUseCase{
		source:   source,
		store:    store,
		jsonPath: jsonPath,
		csvPath:  csvPath,
		location: loc,
		now:      time.Now,
	}
}

// Run stores the current reservoir table. Records replace those of the same
// bulletin date in the JSON file; CSV rows are appended only for a new date.
func (uc *DamUseCase) Run(ctx context.Context) (string, error) {
	runDate := uc.now().In(uc.location).Format(entities.BulletinDateLayout)
	records, err := uc.source.FetchReservoirs(ctx, runDate)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", &entities.ParseError{Source: "dams", Reason: "no reservoir rows"}
	}
	date := records[0].Date

	existed, err := storage.MergeReservoirs(uc.jsonPath, date, records)
	if err != nil {
		return "", err
	}
	if !existed {
		if err := storage.AppendCSV(uc.csvPath, storage.ReservoirCSVHeader, storage.ReservoirRows(records)); err != nil {
			return "", err
		}
	}
	if uc.store != nil {
		if err := uc.store.SaveReservoirs(records); err != nil {
			return "", fmt.Errorf("failed to store reservoirs: %w", err)
		}
	}
	slog.Info("dams: saved", "date", date, "dams", len(records), "new_date", !existed)
	return entities.OutcomeOK, nil
}

// AvalancheStore keeps the avalanche bulletins
type AvalancheStore interface {
	SaveAvalanche(b entities.AvalancheBulletin) error
}

// AvalancheUseCase stores the Meteomont bulletin into valanghe.json
type AvalancheUseCase struct {
	source     AvalancheSource
	store      AvalancheStore
	outputPath string
	location   *time.Location
	now        func() time.Time
}

// NewAvalancheUseCase creates a new avalanche use case. store may be nil.
func NewAvalancheUseCase(source AvalancheSource, store AvalancheStore, outputPath string, loc *time.Location) *AvalancheUseCase {
	if loc == nil {
		loc = time.Local
	}
	return &AvalancheUseCase{
		source:     source,
		store:      store,
		outputPath: outputPath,
		location:   loc,
		now:        time.Now,
	}
}

// Run fetches and stores the bulletin
func (uc *AvalancheUseCase) Run(ctx context.Context) (string, error) {
	b, err := uc.source.FetchBulletin(ctx, uc.now().In(uc.location))
	if err != nil {
		return "", err
	}
	if err := storage.WriteJSON(uc.outputPath, b); err != nil {
		return "", err
	}
	if uc.store != nil {
		if err := uc.store.SaveAvalanche(b); err != nil {
			return "", fmt.Errorf("failed to store avalanche bulletin: %w", err)
		}
	}
	slog.Info("avalanche: saved", "sector", b.Sector, "danger", b.DangerLevel)
	return entities.OutcomeOK, nil
}
