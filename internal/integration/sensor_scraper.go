package integration

import (
	"context"
	"fmt"
	"net/url"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/extract"
	"github.com/abelzeko/allerta-bot/internal/normalize"
)

// rainListingCode selects the rain gauge listing, the one linking every
// station detail page
const rainListingCode = "P"

// SensorScraper reads the real-time sensor pages of the functional centre
type SensorScraper struct {
	fetcher    *Fetcher
	sensorsURL string
	stationURL string
	historyURL string
	layout     extract.SensorLayout
	stations   extract.StationLayout
}

// NewSensorScraper creates a sensor scraper
func NewSensorScraper(fetcher *Fetcher, sensorsURL, stationURL, historyURL string, layout extract.SensorLayout, stations extract.StationLayout) *SensorScraper {
	return &SensorScraper{
		fetcher:    fetcher,
		sensorsURL: sensorsURL,
		stationURL: stationURL,
		historyURL: historyURL,
		layout:     layout,
		stations:   stations,
	}
}

// FetchCategory returns the current readings of one sensor category.
// refDate (DD/MM/YYYY) completes time cells that only carry the clock.
func (s *SensorScraper) FetchCategory(ctx context.Context, cat entities.SensorCategory, refDate string) ([]entities.SensorReading, error) {
	pageURL := withQuery(s.sensorsURL, "st", cat.Code)
	doc, err := s.fetcher.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	readings, err := extract.ParseSensorTable(doc, s.layout, cat, refDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", cat.Key, err)
	}
	return readings, nil
}

// ListStations discovers the stations linked from the rain gauge listing
func (s *SensorScraper) ListStations(ctx context.Context) ([]entities.Station, error) {
	pageURL := withQuery(s.sensorsURL, "st", rainListingCode)
	doc, err := s.fetcher.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	stations := extract.ParseStationList(doc, s.layout)
	if len(stations) == 0 {
		return nil, &entities.ParseError{Source: pageURL, Reason: "no station links"}
	}
	return stations, nil
}

// FetchHistory returns the accumulated rainfall of one station
func (s *SensorScraper) FetchHistory(ctx context.Context, station entities.Station) (entities.StationHistory, error) {
	pageURL := withQuery(s.historyURL, "id", station.ID)
	doc, err := s.fetcher.GetDocument(ctx, pageURL)
	if err != nil {
		return entities.StationHistory{}, err
	}
	values := extract.ParseHistoryValues(doc, s.layout)
	if len(values) == 0 {
		return entities.StationHistory{}, &entities.ParseError{Source: pageURL, Reason: "no history values"}
	}
	return entities.StationHistory{
		Name:    station.Name,
		ID:      station.ID,
		Windows: extract.RainfallWindowsFrom(values),
	}, nil
}

// FetchCoordinates reads the position of one station from its detail page
func (s *SensorScraper) FetchCoordinates(ctx context.Context, id string) (entities.StationCoordinates, error) {
	pageURL := withQuery(s.stationURL, "id", id)
	doc, err := s.fetcher.GetDocument(ctx, pageURL)
	if err != nil {
		return entities.StationCoordinates{}, err
	}
	lat, lon, ok := extract.ParseStationCoordinates(doc, s.stations)
	if !ok {
		return entities.StationCoordinates{}, &entities.ParseError{Source: pageURL, Reason: "coordinates not found"}
	}
	return entities.StationCoordinates{ID: id, Lat: normalize.Round(lat, 6), Lon: normalize.Round(lon, 6)}, nil
}

// withQuery sets key=value on rawURL, keeping any query already present
func withQuery(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
