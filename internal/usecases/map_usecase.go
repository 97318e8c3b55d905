package usecases

import (
	"context"
	"errors"
	"log/slog"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/geo"
	"github.com/abelzeko/allerta-bot/internal/storage"
)

// RadarUseCase colours the latest radar frame into radar_live.geojson
type RadarUseCase struct {
	source     LayerSource
	outputPath string
}

// NewRadarUseCase creates a new radar use case
func NewRadarUseCase(source LayerSource, outputPath string) *RadarUseCase {
	return &RadarUseCase{source: source, outputPath: outputPath}
}

// Run downloads and colours the radar layer
func (uc *RadarUseCase) Run(ctx context.Context) (string, error) {
	fc, err := uc.source.Radar(ctx)
	if err != nil {
		return "", err
	}
	if err := storage.WriteJSONCompact(uc.outputPath, geo.ColorRadar(fc)); err != nil {
		return "", err
	}
	slog.Info("radar: saved", "path", uc.outputPath, "features", len(fc.Features))
	return entities.OutcomeOK, nil
}

// MapPaths are the files read and written by MapUseCase
type MapPaths struct {
	// Bulletin is dati_bollettino.json
	Bulletin string
	// Municipalities is the source municipality boundaries
	Municipalities string
	MunicipalLayer string
	ZoneLayer      string
}

// MapUseCase renders the two alert layers of the public map from the
// stored bulletin
type MapUseCase struct {
	source    LayerSource
	gazetteer *geo.Gazetteer
	paths     MapPaths
}

// NewMapUseCase creates a new map use case
func NewMapUseCase(source LayerSource, gazetteer *geo.Gazetteer, paths MapPaths) *MapUseCase {
	return &MapUseCase{source: source, gazetteer: gazetteer, paths: paths}
}

// Run writes the municipality and zone layers. It is skipped when no
// bulletin is stored yet and fails only when neither layer could be written.
func (uc *MapUseCase) Run(ctx context.Context) (string, error) {
	var b entities.Bulletin
	found, err := storage.ReadJSON(uc.paths.Bulletin, &b)
	if err != nil {
		return "", err
	}
	if !found {
		slog.Info("maps: no bulletin stored yet")
		return entities.OutcomeSkipped, nil
	}

	var errs []error
	written := 0

	var municipalities entities.FeatureCollection
	switch ok, err := storage.ReadJSON(uc.paths.Municipalities, &municipalities); {
	case err != nil:
		errs = append(errs, err)
	case !ok:
		slog.Warn("maps: municipality boundaries missing", "path", uc.paths.Municipalities)
	default:
		layer := geo.EnrichMunicipalities(municipalities, b, uc.gazetteer)
		if err := storage.WriteJSONCompact(uc.paths.MunicipalLayer, layer); err != nil {
			errs = append(errs, err)
		} else {
			written++
		}
	}

	zones, err := uc.source.AlertZones(ctx)
	if err == nil {
		layer := geo.AlertZoneLayer(zones, b)
		if len(layer.Features) == 0 {
			err = &entities.ParseError{Source: "zones", Reason: "no Basilicata zone in layer"}
		} else {
			err = storage.WriteJSONCompact(uc.paths.ZoneLayer, layer)
		}
	}
	if err != nil {
		errs = append(errs, err)
	} else {
		written++
	}

	if written == 0 {
		if len(errs) == 0 {
			return "", &entities.ParseError{Source: "maps", Reason: "no layer written"}
		}
		return "", errors.Join(errs...)
	}
	for _, err := range errs {
		slog.Warn("maps: layer failed", "error", err)
	}
	slog.Info("maps: layers saved", "layers", written, "date", b.Date)
	return entities.OutcomeOK, nil
}
