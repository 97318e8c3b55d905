package usecases

import (
	"context"
	"time"

	"github.com/abelzeko/allerta-bot/internal/entities"
	"github.com/abelzeko/allerta-bot/internal/notify"
)

// BulletinSource discovers and downloads criticality bulletins
type BulletinSource interface {
	LatestPDFURL(ctx context.Context) (string, error)
	PDFURLForDay(day time.Time) string
	DownloadPDF(ctx context.Context, pdfURL string) ([]byte, error)
	FetchPublished(ctx context.Context, rawURL string) (entities.Bulletin, error)
}

// SensorSource reads the real-time sensor network
type SensorSource interface {
	FetchCategory(ctx context.Context, cat entities.SensorCategory, refDate string) ([]entities.SensorReading, error)
	ListStations(ctx context.Context) ([]entities.Station, error)
	FetchHistory(ctx context.Context, station entities.Station) (entities.StationHistory, error)
	FetchCoordinates(ctx context.Context, id string) (entities.StationCoordinates, error)
}

// ReservoirSource reads the dam water availability page
type ReservoirSource interface {
	FetchReservoirs(ctx context.Context, runDate string) ([]entities.Reservoir, error)
}

// AvalancheSource reads the avalanche bulletin
type AvalancheSource interface {
	FetchBulletin(ctx context.Context, now time.Time) (entities.AvalancheBulletin, error)
}

// LayerSource downloads the GeoJSON layers used by the map
type LayerSource interface {
	Radar(ctx context.Context) (entities.FeatureCollection, error)
	AlertZones(ctx context.Context) (entities.FeatureCollection, error)
}

// Broadcaster delivers messages to the configured chats
type Broadcaster interface {
	Enabled() bool
	Broadcast(ctx context.Context, text string, doc *notify.Document) int
	AlertAdmin(text string) error
}

// Pusher sends mobile push notifications
type Pusher interface {
	Enabled() bool
	Push(ctx context.Context, title, body, link string) error
}
