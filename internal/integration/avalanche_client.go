package integration

import (
	"context"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/extract"
)

// AvalancheClient reads the Meteomont JSON API
type AvalancheClient struct {
	fetcher    *Fetcher
	stationURL string
	dangerURL  string
	sector     string
}

// NewAvalancheClient creates a client for one sector
func NewAvalancheClient(fetcher *Fetcher, stationURL, dangerURL, sector string) *AvalancheClient {
	return &AvalancheClient{
		fetcher:    fetcher,
		stationURL: stationURL,
		dangerURL:  dangerURL,
		sector:     sector,
	}
}

// FetchBulletin downloads station observations and danger grade and
// combines them
func (c *AvalancheClient) FetchBulletin(ctx context.Context, now time.Time) (entities.AvalancheBulletin, error) {
	accept := map[string]string{"Accept": "application/json"}
	station, err := c.fetcher.Get(ctx, c.stationURL, accept)
	if err != nil {
		return entities.AvalancheBulletin{}, err
	}
	danger, err := c.fetcher.Get(ctx, c.dangerURL, accept)
	if err != nil {
		return entities.AvalancheBulletin{}, err
	}
	return extract.ParseAvalanche(station.Body, danger.Body, c.sector, now)
}
