package integration

import (
	"context"

	"github.com/abelzeko/allerta-bot/internal/entities"
)

// GeoClient downloads the GeoJSON layers published by the national civil
// protection department
type GeoClient struct {
	fetcher  *Fetcher
	radarURL string
	zonesURL string
}

// NewGeoClient creates a client for the radar and alert zone layers
func NewGeoClient(fetcher *Fetcher, radarURL, zonesURL string) *GeoClient {
	return &GeoClient{
		fetcher:  fetcher,
		radarURL: radarURL,
		zonesURL: zonesURL,
	}
}

// Radar returns the latest VMI radar mosaic
func (c *GeoClient) Radar(ctx context.Context) (entities.FeatureCollection, error) {
	return c.collection(ctx, c.radarURL)
}

// AlertZones returns the national alert zone boundaries
func (c *GeoClient) AlertZones(ctx context.Context) (entities.FeatureCollection, error) {
	return c.collection(ctx, c.zonesURL)
}

func (c *GeoClient) collection(ctx context.Context, rawURL string) (entities.FeatureCollection, error) {
	var fc entities.FeatureCollection
	if err := c.fetcher.GetJSON(ctx, rawURL, &fc); err != nil {
		return entities.FeatureCollection{}, err
	}
	if len(fc.Features) == 0 {
		return entities.FeatureCollection{}, &entities.ParseError{Source: rawURL, Reason: "no features"}
	}
	return fc, nil
}
